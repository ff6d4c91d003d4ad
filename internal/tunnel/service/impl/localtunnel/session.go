package localtunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// session keeps the relay connection pool alive until closed or until the
// relay can no longer be reached.
type session struct {
	url        string
	remoteAddr string
	localAddr  string
	dialer     *net.Dialer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	err   error
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func newSession(publicURL, remoteAddr, localAddr string, dialer *net.Dialer) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		url:        publicURL,
		remoteAddr: remoteAddr,
		localAddr:  localAddr,
		dialer:     dialer,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
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

// Close shuts every connection and waits for the workers to exit
func (s *session) Close() error {
	s.shutdown(nil)
	s.wg.Wait()
	return nil
}

func (s *session) start(first net.Conn, n int) {
	for i := 0; i < n; i++ {
		var conn net.Conn
		if i == 0 {
			conn = first
		}
		s.wg.Add(1)
		go s.worker(conn)
	}
}

// worker serves one pool slot: proxy the current relay connection, then
// dial a replacement when the relay drops it.
func (s *session) worker(conn net.Conn) {
	defer s.wg.Done()
	for {
		if conn == nil {
			c, err := s.dialer.DialContext(s.ctx, "tcp", s.remoteAddr)
			if err != nil {
				if s.ctx.Err() == nil {
					s.shutdown(fmt.Errorf("relay %s unreachable: %w", s.remoteAddr, err))
				}
				return
			}
			conn = c
		}

		moved := s.serve(conn)
		conn = nil

		if !moved {
			// an idle drop; do not spin against a relay that closes at once
			select {
			case <-s.ctx.Done():
			case <-time.After(redialDelay):
			}
		}
		if s.ctx.Err() != nil {
			return
		}
	}
}

// serve waits for the relay to forward a request on remote, then connects
// it to the local server and copies both ways until either side closes. It
// reports whether any bytes were relayed.
func (s *session) serve(remote net.Conn) bool {
	if !s.track(remote) {
		remote.Close()
		return false
	}
	defer s.untrack(remote)

	// the local connection is opened lazily so idle pool slots do not hold
	// connections the local server would time out
	buf := make([]byte, 32*1024)
	n, _ := remote.Read(buf)
	if n == 0 {
		remote.Close()
		return false
	}

	local, err := s.dialer.DialContext(s.ctx, "tcp", s.localAddr)
	if err != nil {
		log.Warn("localtunnel: local server %s unreachable: %v", s.localAddr, err)
		remote.Close()
		return true
	}
	if !s.track(local) {
		local.Close()
		remote.Close()
		return true
	}
	defer s.untrack(local)

	if _, err := local.Write(buf[:n]); err != nil {
		local.Close()
		remote.Close()
		return true
	}

	var wg sync.WaitGroup
	wg.Add(2)
	copyHalf := func(dst, src net.Conn) {
		defer wg.Done()
		io.Copy(dst, src)
		if tcp, ok := dst.(*net.TCPConn); ok {
			tcp.CloseWrite()
		} else {
			dst.Close()
		}
	}
	go copyHalf(local, remote)
	go copyHalf(remote, local)
	wg.Wait()

	remote.Close()
	local.Close()
	return true
}

func (s *session) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *session) untrack(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// shutdown ends the session once, recording err as the cause
func (s *session) shutdown(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.cancel()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		if err != nil {
			log.Warn("localtunnel session ended: %v", err)
		}
		close(s.done)
	})
}
