package gateway

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yal42d-debug/dosya-paylas/internal/events"
	miscService "github.com/yal42d-debug/dosya-paylas/internal/misc/service"
	shareService "github.com/yal42d-debug/dosya-paylas/internal/share/service"
	tunnelService "github.com/yal42d-debug/dosya-paylas/internal/tunnel/service"
	shareModel "github.com/yal42d-debug/dosya-paylas/pkg/share"
	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

type stubSession struct {
	url  string
	done chan struct{}
	once sync.Once
}

func (s *stubSession) URL() string           { return s.url }
func (s *stubSession) Done() <-chan struct{} { return s.done }
func (s *stubSession) Err() error            { return nil }
func (s *stubSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type stubProvider struct {
	fail bool
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Open(ctx context.Context, localPort int) (tunnelService.Session, error) {
	if p.fail {
		return nil, errors.New("relay unreachable")
	}
	return &stubSession{url: "https://quiet-fox.loca.lt", done: make(chan struct{})}, nil
}

type testEnv struct {
	server *httptest.Server
	share  *shareService.ShareService
	tunnel *tunnelService.Manager
	root   string
}

func newTestEnv(t *testing.T, provider tunnelService.Provider) *testEnv {
	t.Helper()
	root := t.TempDir()
	registry, err := shareService.Resolve([]string{root})
	require.NoError(t, err)

	broadcaster := events.NewBroadcaster()
	share := shareService.New(registry, broadcaster)
	tunnel := tunnelService.NewManager(tunnelService.Config{
		Provider:       provider,
		LocalPort:      3000,
		MaxAttempts:    2,
		RetryDelay:     10 * time.Millisecond,
		ConnectTimeout: time.Second,
	}, broadcaster)

	gw := New(Options{
		Share:     share,
		Tunnel:    tunnel,
		Misc:      miscService.New(t.TempDir()),
		LocalURL:  "http://192.168.1.10:3000",
		StartWait: 5 * time.Second,
	})
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		tunnel.Stop()
		server.Close()
	})
	return &testEnv{server: server, share: share, tunnel: tunnel, root: root}
}

func (e *testEnv) url(path string) string {
	return e.server.URL + APIRoot + path
}

func (e *testEnv) upload(t *testing.T, files map[string][]byte) *http.Response {
	t.Helper()
	parts := make([]filePart, 0, len(files))
	for name, content := range files {
		parts = append(parts, filePart{name: name, content: content})
	}
	return e.uploadParts(t, parts)
}

type filePart struct {
	name    string
	content []byte
}

// uploadParts sends parts in order in one multipart body
func (e *testEnv) uploadParts(t *testing.T, parts []filePart) *http.Response {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		name, content := p.name, p.content
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, name))
		h.Set("Content-Type", "application/octet-stream")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	resp, err := http.Post(e.url("/upload"), w.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func do(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})

	var info shareModel.ServerInfo
	decode(t, do(t, http.MethodGet, env.url("/info"), nil), &info)
	assert.Equal(t, "http://192.168.1.10:3000", info.LocalURL)
	assert.Nil(t, info.TunnelURL)
	assert.Equal(t, env.share.Root(), info.ShareDir)
}

func TestFileLifecycle(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	const name = "report (draft).pdf"
	content := make([]byte, 10<<20)
	_, err := rand.Read(content)
	require.NoError(t, err)

	resp := env.upload(t, map[string][]byte{name: content})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var uploaded shareModel.UploadResult
	decode(t, resp, &uploaded)
	assert.Equal(t, "Files uploaded successfully", uploaded.Message)
	assert.Equal(t, []string{name}, uploaded.Files)

	var files []shareModel.FileEntry
	decode(t, do(t, http.MethodGet, env.url("/files"), nil), &files)
	require.Len(t, files, 1)
	assert.Equal(t, name, files[0].Name)
	assert.Equal(t, int64(len(content)), files[0].Size)

	resp = do(t, http.MethodGet, env.url("/download/"+url.PathEscape(name)), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="report (draft).pdf"`,
		resp.Header.Get("Content-Disposition"))
	got, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got), "downloaded bytes differ")

	var deleted shareModel.MessageResult
	resp = do(t, http.MethodDelete, env.url("/files/"+url.PathEscape(name)), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &deleted)
	assert.Equal(t, "File deleted successfully", deleted.Message)

	resp = do(t, http.MethodGet, env.url("/download/"+url.PathEscape(name)), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e errorBody
	decode(t, resp, &e)
	assert.Equal(t, http.StatusNotFound, e.Code)

	resp = do(t, http.MethodDelete, env.url("/files/"+url.PathEscape(name)), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadMultipleAndUnicode(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})

	resp := env.upload(t, map[string][]byte{
		"café.png":  []byte("not really a png"),
		"notes.txt": []byte("hello"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var uploaded shareModel.UploadResult
	decode(t, resp, &uploaded)
	assert.ElementsMatch(t, []string{"café.png", "notes.txt"}, uploaded.Files)

	resp = do(t, http.MethodGet, env.url("/download/"+url.PathEscape("café.png")), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename*=utf-8''caf%C3%A9.png`)

	resp = do(t, http.MethodGet, env.url("/download/notes.txt"), nil)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "hello", string(body))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})

	t.Run("no files", func(t *testing.T) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("comment", "nothing attached"))
		require.NoError(t, w.Close())

		resp, err := http.Post(env.url("/upload"), w.FormDataContentType(), &body)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var e errorBody
		decode(t, resp, &e)
		assert.Equal(t, "No files uploaded", e.Message)
	})

	t.Run("traversal", func(t *testing.T) {
		resp := env.upload(t, map[string][]byte{"../evil.txt": []byte("x")})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		_, err := os.Stat(filepath.Join(filepath.Dir(env.root), "evil.txt"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("not multipart", func(t *testing.T) {
		resp, err := http.Post(env.url("/upload"), "multipart/form-data", strings.NewReader("junk"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRejectedUploadLeavesRootUntouched(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "good.txt"), []byte("old"), 0644))

	resp := env.uploadParts(t, []filePart{
		{"good.txt", []byte("new")},
		{"fresh.txt", []byte("fresh")},
		{"../bad.txt", []byte("bad")},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e errorBody
	decode(t, resp, &e)
	assert.Equal(t, "Invalid file name: ../bad.txt", e.Message)

	data, err := os.ReadFile(filepath.Join(env.root, "good.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(env.root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no staged or temp files may remain")
	assert.Equal(t, "good.txt", entries[0].Name())

	resp = env.uploadParts(t, []filePart{
		{"good.txt", []byte("new")},
		{"fresh.txt", []byte("fresh")},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result shareModel.UploadResult
	decode(t, resp, &result)
	assert.Equal(t, []string{"good.txt", "fresh.txt"}, result.Files)
	data, err = os.ReadFile(filepath.Join(env.root, "good.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestDownloadRejections(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	require.NoError(t, os.Mkdir(filepath.Join(env.root, "folder"), 0755))

	resp := do(t, http.MethodGet, env.url("/download/"+url.PathEscape(`a\b.txt`)), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, env.url("/download/missing.txt"), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, env.url("/download/folder"), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetDirectory(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	resp := env.upload(t, map[string][]byte{"old.txt": []byte("old")})
	resp.Body.Close()

	target := filepath.Join(t.TempDir(), "nested", "share")
	resp = do(t, http.MethodPost, env.url("/set-dir"), shareModel.SetDirParams{Dir: target})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result shareModel.SetDirResult
	decode(t, resp, &result)
	assert.Equal(t, target, result.ShareDir)

	var files []shareModel.FileEntry
	decode(t, do(t, http.MethodGet, env.url("/files"), nil), &files)
	assert.Empty(t, files)

	resp = env.upload(t, map[string][]byte{"new.txt": []byte("new")})
	resp.Body.Close()
	assert.FileExists(t, filepath.Join(target, "new.txt"))

	resp = do(t, http.MethodPost, env.url("/set-dir"), shareModel.SetDirParams{Dir: "  "})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	file := filepath.Join(t.TempDir(), "plain-file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	resp = do(t, http.MethodPost, env.url("/set-dir"), shareModel.SetDirParams{Dir: file})
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, target, env.share.Root())
}

func TestTunnelLifecycle(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})

	var status tunnelModel.StatusResponse
	decode(t, do(t, http.MethodGet, env.url("/tunnel/status"), nil), &status)
	assert.False(t, status.Running)
	assert.Nil(t, status.URL)
	assert.Equal(t, tunnelModel.StateOff, status.State)

	resp := do(t, http.MethodPost, env.url("/tunnel/start"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started tunnelModel.StartResult
	decode(t, resp, &started)
	assert.Equal(t, "https://quiet-fox.loca.lt", started.URL)

	decode(t, do(t, http.MethodGet, env.url("/tunnel/status"), nil), &status)
	assert.True(t, status.Running)
	require.NotNil(t, status.URL)
	assert.Equal(t, "https://quiet-fox.loca.lt", *status.URL)

	var info shareModel.ServerInfo
	decode(t, do(t, http.MethodGet, env.url("/info"), nil), &info)
	require.NotNil(t, info.TunnelURL)
	assert.Equal(t, "https://quiet-fox.loca.lt", *info.TunnelURL)

	resp = do(t, http.MethodPost, env.url("/tunnel/stop"), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, tunnelModel.StateOff, env.tunnel.Status().State)
}

func TestTunnelStartFailure(t *testing.T) {
	env := newTestEnv(t, &stubProvider{fail: true})

	resp := do(t, http.MethodPost, env.url("/tunnel/start"), nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var e errorBody
	decode(t, resp, &e)
	assert.Contains(t, e.Message, "relay unreachable")
	assert.Equal(t, tunnelModel.StateError, env.tunnel.Status().State)
}

func TestExternalTunnelURL(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})

	resp := do(t, http.MethodPost, env.url("/tunnel/url"), tunnelModel.SetURLParams{URL: "https://share.example.com/"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result tunnelModel.SetURLResult
	decode(t, resp, &result)
	assert.Equal(t, "https://share.example.com", result.URL)

	var info shareModel.ServerInfo
	decode(t, do(t, http.MethodGet, env.url("/info"), nil), &info)
	require.NotNil(t, info.TunnelURL)
	assert.Equal(t, "https://share.example.com", *info.TunnelURL)

	resp = do(t, http.MethodDelete, env.url("/tunnel/url"), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, do(t, http.MethodGet, env.url("/info"), nil), &info)
	assert.Nil(t, info.TunnelURL)

	resp = do(t, http.MethodPost, env.url("/tunnel/url"), tunnelModel.SetURLParams{URL: "ftp://files"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, env.url("/tunnel/url"), tunnelModel.SetURLParams{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTunnelEvents(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})

	wsURL := "ws" + strings.TrimPrefix(env.url("/tunnel/events"), "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var status tunnelModel.Status
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, tunnelModel.StateOff, status.State)

	env.tunnel.Start()
	for status.State != tunnelModel.StateConnected {
		status = tunnelModel.Status{}
		require.NoError(t, conn.ReadJSON(&status))
	}
	assert.Equal(t, "https://quiet-fox.loca.lt", status.URL)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})

	resp := do(t, http.MethodGet, env.url("/nothing-here"), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e errorBody
	decode(t, resp, &e)
	assert.Equal(t, http.StatusNotFound, e.Code)
}

func TestAuxiliaryEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	resp := env.upload(t, map[string][]byte{"dav.txt": []byte("over webdav")})
	resp.Body.Close()

	resp = do(t, http.MethodGet, env.server.URL+"/healthz", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, env.server.URL+"/dav/dav.txt", nil)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "over webdav", string(body))

	resp = do(t, http.MethodGet, env.server.URL+"/metrics", nil)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "share_http_requests_total")
	assert.Contains(t, string(body), "share_uploads_total")

	var qr struct {
		QRCode string `json:"qrCode"`
	}
	resp = do(t, http.MethodPost, env.url("/qr"), map[string]string{"text": "http://192.168.1.10:3000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &qr)
	assert.True(t, strings.HasPrefix(qr.QRCode, "data:image/png;base64,"))
}

func TestEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	gw := New(Options{
		Share:  env.share,
		Tunnel: env.tunnel,
		Misc:   miscService.New(t.TempDir()),
	})
	paths := map[string]bool{}
	for _, e := range gw.Endpoints() {
		paths[e.Method+" "+e.Path] = true
	}
	assert.True(t, paths["POST /api/v1/upload"])
	assert.True(t, paths["GET /api/v1/download/{name}"])
	assert.True(t, paths["GET /api/v1/tunnel/events"])
}
