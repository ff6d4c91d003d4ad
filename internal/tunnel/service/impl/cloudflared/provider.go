// Package cloudflared exposes the local server through a Cloudflare quick
// tunnel run by the cloudflared binary.
package cloudflared

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/yal42d-debug/dosya-paylas/internal/tunnel/service"
	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
)

const (
	// Name is the registry name of this provider
	Name = "cloudflared"
	// DefaultBinary is looked up in PATH when no binary is configured
	DefaultBinary = "cloudflared"

	// Longest output line inspected for the URL
	maxLineSize = 1024 * 1024
)

var (
	log = logger.New()

	urlPattern = regexp.MustCompile(`https://[a-zA-Z0-9-]+\.trycloudflare\.com`)
)

// ParseURL returns the quick tunnel URL announced in a cloudflared log line,
// or "" when the line has none.
func ParseURL(line string) string {
	return urlPattern.FindString(line)
}

// Provider starts one cloudflared process per session
type Provider struct {
	binary string
}

// New creates a provider running cfg.Binary, or DefaultBinary when empty
func New(cfg service.ProviderConfig) (*Provider, error) {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	return &Provider{binary: binary}, nil
}

// Name returns the registry name
func (p *Provider) Name() string {
	return Name
}

// Open runs cloudflared and waits until it logs the public URL
func (p *Provider) Open(ctx context.Context, localPort int) (service.Session, error) {
	path, err := exec.LookPath(p.binary)
	if err != nil {
		return nil, fmt.Errorf("cloudflared not available: %w", err)
	}

	cmd := exec.Command(path, "tunnel", "--no-autoupdate", "--url", fmt.Sprintf("http://localhost:%d", localPort))
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start cloudflared: %w", err)
	}

	s := &session{cmd: cmd, done: make(chan struct{})}
	found := make(chan string, 1)
	lines := make(chan struct{})
	go s.scan(stderr, found, lines)
	go func() {
		// Wait closes the pipe, so let the scanner drain first
		<-lines
		err := cmd.Wait()
		s.mu.Lock()
		if !s.closing && err == nil {
			err = errors.New("cloudflared exited")
		}
		if s.closing {
			err = nil
		}
		s.err = err
		s.mu.Unlock()
		close(s.done)
	}()

	select {
	case u := <-found:
		s.url = u
		log.Debug("cloudflared pid %d published %s", cmd.Process.Pid, u)
		return s, nil
	case <-s.done:
		return nil, fmt.Errorf("cloudflared exited before publishing a URL: %v", s.Err())
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}

func init() {
	service.Register(Name, func(cfg service.ProviderConfig) (service.Provider, error) {
		return New(cfg)
	})
}

type session struct {
	cmd  *exec.Cmd
	url  string
	done chan struct{}

	mu      sync.Mutex
	closing bool
	err     error
}

func (s *session) URL() string {
	return s.url
}

func (s *session) Done() <-chan struct{} {
	return s.done
}

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close kills the process and waits for it to exit
func (s *session) Close() error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	default:
	}
	if err := s.cmd.Process.Kill(); err != nil {
		log.Debug("kill cloudflared: %v", err)
	}
	<-s.done
	return nil
}

// scan reports the first URL on found and keeps draining so the process
// never blocks on a full pipe.
func (s *session) scan(r io.Reader, found chan<- string, finished chan<- struct{}) {
	defer close(finished)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	reported := false
	for scanner.Scan() {
		line := scanner.Text()
		log.Debug("cloudflared: %s", line)
		if reported {
			continue
		}
		if u := ParseURL(line); u != "" {
			found <- u
			reported = true
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug("cloudflared output: %v", err)
	}
	io.Copy(io.Discard, r)
}
