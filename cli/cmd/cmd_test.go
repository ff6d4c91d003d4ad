package cmd

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yal42d-debug/dosya-paylas/cli/config"
	"github.com/yal42d-debug/dosya-paylas/cli/internal/client"
	"github.com/yal42d-debug/dosya-paylas/internal/events"
	"github.com/yal42d-debug/dosya-paylas/internal/gateway"
	miscService "github.com/yal42d-debug/dosya-paylas/internal/misc/service"
	shareService "github.com/yal42d-debug/dosya-paylas/internal/share/service"
	tunnelService "github.com/yal42d-debug/dosya-paylas/internal/tunnel/service"
)

type stubSession struct {
	done chan struct{}
	once sync.Once
}

func (s *stubSession) URL() string           { return "https://quiet-fox.loca.lt" }
func (s *stubSession) Done() <-chan struct{} { return s.done }
func (s *stubSession) Err() error            { return nil }
func (s *stubSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Open(ctx context.Context, localPort int) (tunnelService.Session, error) {
	return &stubSession{done: make(chan struct{})}, nil
}

// startServer runs a real gateway and points the CLI config at it
func startServer(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	registry, err := shareService.Resolve([]string{root})
	require.NoError(t, err)
	broadcaster := events.NewBroadcaster()
	tunnel := tunnelService.NewManager(tunnelService.Config{Provider: stubProvider{}, LocalPort: 3000}, broadcaster)
	gw := gateway.New(gateway.Options{
		Share:    shareService.New(registry, broadcaster),
		Tunnel:   tunnel,
		Misc:     miscService.New(t.TempDir()),
		LocalURL: "http://192.168.1.10:3000",
	})
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		tunnel.Stop()
		server.Close()
	})

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Setenv("SHARE_API_BASE", server.URL)
	require.NoError(t, config.Reload())
	t.Cleanup(func() {
		xdg.Reload()
		config.Reload()
	})
	return server.URL, root
}

// run executes cmd with args and returns what it printed to stdout
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	defer func() { os.Stdout = oldStdout }()

	rPipe, wPipe, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = wPipe

	var buf bytes.Buffer
	copied := make(chan struct{})
	go func() {
		io.Copy(&buf, rPipe)
		close(copied)
	}()

	cmd.SetArgs(args)
	cmd.SetErr(io.Discard)
	err = cmd.Execute()

	wPipe.Close()
	<-copied
	return buf.String(), err
}

func TestListCommand(t *testing.T) {
	_, root := startServer(t)

	output, err := run(t, NewListCommand())
	require.NoError(t, err)
	assert.Contains(t, output, "No files shared")

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0644))
	output, err = run(t, NewListCommand())
	require.NoError(t, err)
	assert.Contains(t, output, "notes.txt")
	assert.Contains(t, output, "5 B")

	output, err = run(t, NewListCommand(), "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, output, `"name": "notes.txt"`)
}

func TestTransferCommands(t *testing.T) {
	_, root := startServer(t)
	src := t.TempDir()
	path := filepath.Join(src, "report (draft).pdf")
	require.NoError(t, os.WriteFile(path, []byte("draft"), 0644))

	output, err := run(t, NewUploadCommand(), path)
	require.NoError(t, err)
	assert.Contains(t, output, "Uploaded report (draft).pdf")
	assert.FileExists(t, filepath.Join(root, "report (draft).pdf"))

	dst := t.TempDir()
	output, err = run(t, NewDownloadCommand(), "report (draft).pdf", "--dir", dst)
	require.NoError(t, err)
	assert.Contains(t, output, "Saved")
	data, err := os.ReadFile(filepath.Join(dst, "report (draft).pdf"))
	require.NoError(t, err)
	assert.Equal(t, "draft", string(data))

	output, err = run(t, NewDeleteCommand(), "report (draft).pdf")
	require.NoError(t, err)
	assert.Contains(t, output, "Deleted report (draft).pdf")

	_, err = run(t, NewDeleteCommand(), "report (draft).pdf")
	assert.True(t, client.IsNotFound(err))
}

func TestStatusAndSetDirCommands(t *testing.T) {
	serverURL, root := startServer(t)

	output, err := run(t, NewStatusCommand())
	require.NoError(t, err)
	assert.Contains(t, output, serverURL)
	assert.Contains(t, output, root)
	assert.Contains(t, output, "Tunnel:        off")

	target := filepath.Join(t.TempDir(), "elsewhere")
	output, err = run(t, NewSetDirCommand(), target)
	require.NoError(t, err)
	assert.Contains(t, output, "Now sharing "+target)

	output, err = run(t, NewStatusCommand(), "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, output, target)
}

func TestTunnelCommands(t *testing.T) {
	startServer(t)

	output, err := run(t, NewTunnelCommand(), "start")
	require.NoError(t, err)
	assert.Contains(t, output, "Tunnel started: https://quiet-fox.loca.lt")

	output, err = run(t, NewTunnelCommand(), "status")
	require.NoError(t, err)
	assert.Contains(t, output, "connected")

	output, err = run(t, NewTunnelCommand(), "stop")
	require.NoError(t, err)
	assert.Contains(t, output, "Tunnel stopped")

	output, err = run(t, NewTunnelCommand(), "set-url", "https://share.example.com/")
	require.NoError(t, err)
	assert.Contains(t, output, "Public URL set to https://share.example.com")

	output, err = run(t, NewTunnelCommand(), "status", "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, output, `"externalUrl": "https://share.example.com"`)

	output, err = run(t, NewTunnelCommand(), "clear-url")
	require.NoError(t, err)
	assert.Contains(t, output, "Public URL cleared")

	_, err = run(t, NewTunnelCommand(), "set-url", "not a url")
	assert.Error(t, err)
}

func TestConnectCommand(t *testing.T) {
	serverURL, _ := startServer(t)
	t.Setenv("SHARE_API_BASE", "")
	require.NoError(t, config.Reload())

	output, err := run(t, NewConnectCommand(), serverURL+"/")
	require.NoError(t, err)
	assert.Contains(t, output, "Connected to "+serverURL)
	assert.Equal(t, serverURL, config.GetAPIBase())

	_, err = run(t, NewConnectCommand(), "ftp://files.example.com")
	assert.Error(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closed := "http://" + l.Addr().String()
	l.Close()
	_, err = run(t, NewConnectCommand(), closed)
	assert.Error(t, err)
	assert.Equal(t, serverURL, config.GetAPIBase(), "unreachable address must not be saved")

	_, err = run(t, NewConnectCommand(), "--no-check", strings.TrimPrefix(closed, "http://"))
	require.NoError(t, err)
	assert.Equal(t, closed, config.GetAPIBase())
}

func TestOpenCommand(t *testing.T) {
	startServer(t)
	var opened []string
	oldOpen := openURL
	openURL = func(u string) error {
		opened = append(opened, u)
		return nil
	}
	defer func() { openURL = oldOpen }()

	_, err := run(t, NewOpenCommand())
	require.NoError(t, err)

	_, err = run(t, NewTunnelCommand(), "set-url", "https://share.example.com")
	require.NoError(t, err)
	_, err = run(t, NewOpenCommand())
	require.NoError(t, err)
	_, err = run(t, NewOpenCommand(), "--local")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://192.168.1.10:3000",
		"https://share.example.com",
		"http://192.168.1.10:3000",
	}, opened)
}

func TestMenuContinuesAfterErrors(t *testing.T) {
	_, root := startServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("k"), 0644))

	cmd := NewMenuCommand()
	cmd.SetIn(strings.NewReader(strings.Join([]string{
		"2",           // list
		"42",          // unknown
		"5",           // delete
		"missing.txt", // name
		"y",           // confirm
		"5",           // delete
		"keep.txt",
		"n", // cancel
		"0",
	}, "\n") + "\n"))

	output, err := run(t, cmd)
	require.NoError(t, err)
	assert.Contains(t, output, "keep.txt")
	assert.Contains(t, output, `Unknown choice "42"`)
	assert.Contains(t, output, "Error: server returned 404")
	assert.Contains(t, output, "Cancelled")
	assert.FileExists(t, filepath.Join(root, "keep.txt"))
}

func TestMenuEndOfInput(t *testing.T) {
	startServer(t)
	cmd := NewMenuCommand()
	cmd.SetIn(strings.NewReader("1\n"))

	output, err := run(t, cmd)
	require.NoError(t, err)
	assert.Contains(t, output, "Shared folder:")
}

func TestServerUnreachable(t *testing.T) {
	startServer(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	_, err = run(t, NewRootCommand(), "--server", "http://"+addr, "list")
	var transportErr *client.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, client.ConnectionRefused, transportErr.Kind)
}

func TestVersionCommand(t *testing.T) {
	startServer(t)

	output, err := run(t, NewVersionCommand(), "--short")
	require.NoError(t, err)
	assert.Contains(t, output, "share-cli version dev")

	output, err = run(t, NewVersionCommand())
	require.NoError(t, err)
	assert.Contains(t, output, "Client:")
	assert.Contains(t, output, "Server:")
}

func TestNormalizeBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"192.168.1.20:3000", "http://192.168.1.20:3000", true},
		{"https://quiet-fox.loca.lt/", "https://quiet-fox.loca.lt", true},
		{"ftp://x", "", false},
		{"http://", "", false},
	}
	for _, tt := range tests {
		got, err := normalizeBase(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
