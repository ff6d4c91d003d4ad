package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yal42d-debug/dosya-paylas/internal/events"
	"github.com/yal42d-debug/dosya-paylas/internal/metrics"
	model "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

const (
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultConnectTimeout = 15 * time.Second
)

// Config configures a Manager
type Config struct {
	Provider  Provider
	LocalPort int
	// MaxAttempts bounds connect attempts per Start
	MaxAttempts int
	// RetryDelay is the fixed pause between failed attempts
	RetryDelay time.Duration
	// ConnectTimeout bounds each attempt
	ConnectTimeout time.Duration
}

// Manager owns the single tunnel session.
//
// State changes happen under mu. Start and Stop bump gen, and a connect loop
// or watcher from an older generation drops its results.
type Manager struct {
	cfg    Config
	events *events.Broadcaster

	mu          sync.Mutex
	status      model.Status
	externalURL string
	session     Session
	gen         uint64
	cancel      context.CancelFunc
	// running is true while a connect loop may still change the state
	running bool
	// changed is closed and replaced on every transition
	changed chan struct{}
}

// NewManager creates a manager in the off state. broadcaster may be nil.
func NewManager(cfg Config, broadcaster *events.Broadcaster) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if broadcaster == nil {
		broadcaster = events.NewBroadcaster()
	}
	m := &Manager{
		cfg:     cfg,
		events:  broadcaster,
		status:  model.Status{State: model.StateOff, Provider: cfg.Provider.Name()},
		changed: make(chan struct{}),
	}
	metrics.SetTunnelState(string(model.StateOff))
	return m
}

// Status returns a snapshot of the current state
func (m *Manager) Status() model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Start begins connecting unless a session is already connecting or
// connected, in which case the current status is returned unchanged.
func (m *Manager) Start() model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.State == model.StateConnecting || m.status.State == model.StateConnected {
		return m.snapshot()
	}

	// an error state may still have a retry scheduled; replace that loop
	if m.cancel != nil {
		m.cancel()
	}
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	m.setLocked(model.StateConnecting, "", "", 1)

	go m.run(ctx, m.gen)
	return m.snapshot()
}

// StartAndWait starts the tunnel and waits for it to settle or ctx to end.
// A settled error state is returned as *TunnelError; an unsettled one as
// the plain status with a nil error.
func (m *Manager) StartAndWait(ctx context.Context) (model.Status, error) {
	m.Start()
	status, settled := m.wait(ctx)
	if settled && status.State == model.StateError {
		return status, &TunnelError{
			Provider: status.Provider,
			Attempts: status.Attempt,
			Message:  status.Message,
		}
	}
	return status, nil
}

// Stop tears down any session or pending attempt. It always succeeds.
func (m *Manager) Stop() model.Status {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.running = false
	session := m.session
	m.session = nil
	m.setLocked(model.StateOff, "", "", 0)
	status := m.snapshot()
	m.mu.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			log.Debug("Closing tunnel session: %v", err)
		}
	}
	return status
}

// Wait blocks until the state is settled: connected, off, or error with no
// retry pending. It returns early with the current status when ctx ends.
func (m *Manager) Wait(ctx context.Context) model.Status {
	status, _ := m.wait(ctx)
	return status
}

func (m *Manager) wait(ctx context.Context) (model.Status, bool) {
	for {
		m.mu.Lock()
		status := m.snapshot()
		settled := !m.running
		changed := m.changed
		m.mu.Unlock()

		if settled {
			return status, true
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return m.Status(), false
		}
	}
}

// SetExternalURL records an address of a tunnel this process does not own.
// It takes precedence for display and leaves the state machine alone.
func (m *Manager) SetExternalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	normalized := strings.TrimRight(u.String(), "/")

	m.mu.Lock()
	m.externalURL = normalized
	m.notifyLocked()
	m.mu.Unlock()

	log.Info("External tunnel URL set to %s", log.Highlight(normalized))
	return normalized, nil
}

// ClearExternalURL removes the external override
func (m *Manager) ClearExternalURL() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.externalURL == "" {
		return
	}
	m.externalURL = ""
	m.notifyLocked()
	log.Info("External tunnel URL cleared")
}

// PublicURL is the address to show users, empty when there is none
func (m *Manager) PublicURL() string {
	return m.Status().PublicURL()
}

// Subscribe returns a channel receiving an event for every transition.
// The caller must call Unsubscribe when done.
func (m *Manager) Subscribe() chan events.Event {
	return m.events.Subscribe()
}

// Unsubscribe removes a channel obtained from Subscribe
func (m *Manager) Unsubscribe(ch chan events.Event) {
	m.events.Unsubscribe(ch)
}

func (m *Manager) run(ctx context.Context, gen uint64) {
	name := m.cfg.Provider.Name()
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if attempt > 1 && !m.update(gen, model.StateConnecting, "", "", attempt, true) {
			return
		}

		log.Info("Starting %s tunnel (attempt %d/%d)", name, attempt, m.cfg.MaxAttempts)
		session, err := m.connect(ctx)
		metrics.RecordTunnelAttempt(name, err == nil)
		if err == nil {
			m.mu.Lock()
			if m.gen != gen {
				m.mu.Unlock()
				session.Close()
				return
			}
			m.session = session
			m.finishLoopLocked()
			m.setLocked(model.StateConnected, session.URL(), "", attempt)
			m.mu.Unlock()

			log.Success("Tunnel connected: %s", session.URL())
			go m.watch(gen, session)
			return
		}

		if ctx.Err() != nil {
			return
		}
		last := attempt == m.cfg.MaxAttempts
		log.Warn("Tunnel attempt %d/%d failed: %v", attempt, m.cfg.MaxAttempts, err)
		if !m.update(gen, model.StateError, "", err.Error(), attempt, !last) {
			return
		}
		if last {
			log.Error("Tunnel could not be established after %d attempt(s)", attempt)
			return
		}

		timer := time.NewTimer(m.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connect runs one attempt, enforcing the connect timeout even when the
// provider does not honor its context.
func (m *Manager) connect(ctx context.Context) (Session, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	type result struct {
		session Session
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := m.cfg.Provider.Open(attemptCtx, m.cfg.LocalPort)
		done <- result{s, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrConnectTimeout, m.cfg.ConnectTimeout)
		}
		return r.session, r.err
	case <-attemptCtx.Done():
		go func() {
			if r := <-done; r.session != nil {
				r.session.Close()
			}
		}()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %v", ErrConnectTimeout, m.cfg.ConnectTimeout)
	}
}

// watch resets to off when the session ends on its own
func (m *Manager) watch(gen uint64, session Session) {
	<-session.Done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.session != session {
		return
	}
	m.session = nil
	message := ""
	if err := session.Err(); err != nil {
		message = err.Error()
	}
	m.setLocked(model.StateOff, "", message, 0)
	log.Warn("Tunnel closed by remote side")
}

// update applies a transition from the loop started at gen. It reports false
// when that loop has been superseded.
func (m *Manager) update(gen uint64, state model.State, url, message string, attempt int, running bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	if !running {
		m.finishLoopLocked()
	}
	m.setLocked(state, url, message, attempt)
	return true
}

func (m *Manager) finishLoopLocked() {
	m.running = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Manager) setLocked(state model.State, url, message string, attempt int) {
	m.status.State = state
	m.status.URL = url
	m.status.Message = message
	m.status.Attempt = attempt
	metrics.SetTunnelState(string(state))
	m.notifyLocked()
}

func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
	status := m.snapshot()
	m.events.Publish(events.Event{Type: events.EventTunnel, Tunnel: &status})
}

func (m *Manager) snapshot() model.Status {
	s := m.status
	s.ExternalURL = m.externalURL
	return s
}
