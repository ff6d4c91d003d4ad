// Package localtunnel exposes the local server through a localtunnel relay.
//
// The relay hands out a public URL and a TCP port; the client keeps a pool of
// connections to that port open and proxies whatever arrives on each of them
// to the local server.
package localtunnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yal42d-debug/dosya-paylas/internal/tunnel/service"
	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
)

const (
	// Name is the registry name of this provider
	Name = "localtunnel"
	// DefaultHost is the public relay used when none is configured
	DefaultHost = "https://localtunnel.me"

	localHost   = "localhost"
	redialDelay = 250 * time.Millisecond
	dialTimeout = 10 * time.Second
)

var log = logger.New()

// info is the relay's answer to a tunnel request
type info struct {
	ID           string `json:"id"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	MaxConnCount int    `json:"max_conn_count"`
	URL          string `json:"url"`
	Message      string `json:"message"`
}

// Provider requests tunnels from one relay host
type Provider struct {
	host      *url.URL
	subdomain string
	client    *http.Client
	dialer    *net.Dialer
}

// New creates a provider for cfg.Host, or DefaultHost when empty
func New(cfg service.ProviderConfig) (*Provider, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		host = DefaultHost
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid localtunnel host %q", cfg.Host)
	}
	return &Provider{
		host:      u,
		subdomain: strings.TrimSpace(cfg.Subdomain),
		client:    &http.Client{},
		dialer:    &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second},
	}, nil
}

// Name returns the registry name
func (p *Provider) Name() string {
	return Name
}

// Open requests a tunnel and connects the first relay connection. The rest
// of the pool is filled in the background.
func (p *Provider) Open(ctx context.Context, localPort int) (service.Session, error) {
	ti, err := p.request(ctx)
	if err != nil {
		return nil, err
	}

	remoteHost := ti.IP
	if remoteHost == "" {
		remoteHost = p.host.Hostname()
	}
	s := newSession(
		ti.URL,
		net.JoinHostPort(remoteHost, strconv.Itoa(ti.Port)),
		net.JoinHostPort(localHost, strconv.Itoa(localPort)),
		p.dialer,
	)

	first, err := p.dialer.DialContext(ctx, "tcp", s.remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("connect to relay %s: %w", s.remoteAddr, err)
	}

	conns := ti.MaxConnCount
	if conns <= 0 {
		conns = 1
	}
	log.Debug("localtunnel %s: relay %s, %d connection(s)", ti.ID, s.remoteAddr, conns)
	s.start(first, conns)
	return s, nil
}

func (p *Provider) request(ctx context.Context) (*info, error) {
	endpoint := *p.host
	if p.subdomain != "" {
		endpoint.Path = "/" + url.PathEscape(p.subdomain)
	} else {
		endpoint.Path = "/"
		endpoint.RawQuery = "new"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request tunnel from %s: %w", p.host.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("read relay response: %w", err)
	}

	var ti info
	if err := json.Unmarshal(body, &ti); err != nil {
		return nil, fmt.Errorf("relay returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		msg := ti.Message
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("relay refused tunnel: %s", msg)
	}
	if ti.Port <= 0 || ti.URL == "" {
		return nil, errors.New("relay response is missing port or url")
	}
	return &ti, nil
}

func init() {
	service.Register(Name, func(cfg service.ProviderConfig) (service.Provider, error) {
		return New(cfg)
	})
}
