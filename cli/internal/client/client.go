// Package client talks to a share-server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	miscModel "github.com/yal42d-debug/dosya-paylas/internal/misc/model"
	shareModel "github.com/yal42d-debug/dosya-paylas/pkg/share"
	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

const (
	apiRoot = "/api/v1"

	dialTimeout           = 5 * time.Second
	responseHeaderTimeout = 30 * time.Second

	// bypassHeader skips the localtunnel interstitial page
	bypassHeader = "Bypass-Tunnel-Reminder"
)

// Client is a share-server API client
type Client struct {
	baseURL string
	// api is used for calls without a payload of unbounded size
	api *http.Client
	// transfer has no response header timeout: the server may take long
	// to answer after a large upload
	transfer *http.Client
	dialer   *websocket.Dialer
}

// New creates a client for the server at baseURL
func New(baseURL string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		api:      &http.Client{Transport: newTransport(responseHeaderTimeout)},
		transfer: &http.Client{Transport: newTransport(0)},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: dialTimeout + responseHeaderTimeout,
			NetDialContext:   (&net.Dialer{Timeout: dialTimeout}).DialContext,
		},
	}
}

func newTransport(headerTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		IdleConnTimeout:       90 * time.Second,
	}
}

// BaseURL returns the server address this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Info returns the server's addresses and shared directory
func (c *Client) Info(ctx context.Context) (*shareModel.ServerInfo, error) {
	var info shareModel.ServerInfo
	if err := c.doJSON(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns the files in the shared directory
func (c *Client) List(ctx context.Context) ([]shareModel.FileEntry, error) {
	files := []shareModel.FileEntry{}
	if err := c.doJSON(ctx, http.MethodGet, "/files", nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// Upload streams the files at paths in a single request
func (c *Client) Upload(ctx context.Context, paths ...string) (*shareModel.UploadResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%s is not a regular file", p)
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, paths))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(c.transfer, req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	defer resp.Body.Close()

	var result shareModel.UploadResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func writeParts(mw *multipart.Writer, paths []string) error {
	for _, p := range paths {
		if err := writePart(mw, p); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// Download saves the named file into dir and returns the written path. The
// file is written under a temporary name and renamed once complete.
func (c *Client) Download(ctx context.Context, name, dir string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/download/"+url.PathEscape(name), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.send(c.transfer, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	target := filepath.Join(dir, localName(resp.Header.Get("Content-Disposition"), name))
	tmp := filepath.Join(dir, ".download-"+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}
	_, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp)
		if copyErr != nil {
			return "", fmt.Errorf("download of %s interrupted: %w", name, copyErr)
		}
		return "", closeErr
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return target, nil
}

// localName picks the file name to save under: the server's disposition
// name when present, reduced to its last element
func localName(disposition, fallback string) string {
	name := fallback
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	name = filepath.Base(filepath.Clean(strings.ReplaceAll(name, `\`, "/")))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "download"
	}
	return name
}

// Delete removes the named file on the server
func (c *Client) Delete(ctx context.Context, name string) error {
	var result shareModel.MessageResult
	return c.doJSON(ctx, http.MethodDelete, "/files/"+url.PathEscape(name), nil, &result)
}

// SetDirectory relocates the server's shared directory
func (c *Client) SetDirectory(ctx context.Context, dir string) (*shareModel.SetDirResult, error) {
	var result shareModel.SetDirResult
	if err := c.doJSON(ctx, http.MethodPost, "/set-dir", shareModel.SetDirParams{Dir: dir}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TunnelStatus returns the tunnel status
func (c *Client) TunnelStatus(ctx context.Context) (*tunnelModel.StatusResponse, error) {
	var status tunnelModel.StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/tunnel/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TunnelStart starts the tunnel. The result's State is connecting when the
// server answered before the tunnel settled.
func (c *Client) TunnelStart(ctx context.Context) (*tunnelModel.StartResult, error) {
	var result tunnelModel.StartResult
	// the server may hold the request while the tunnel connects
	req, err := c.newRequest(ctx, http.MethodPost, "/tunnel/start", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(c.transfer, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TunnelStop stops the tunnel
func (c *Client) TunnelStop(ctx context.Context) error {
	var result shareModel.MessageResult
	return c.doJSON(ctx, http.MethodPost, "/tunnel/stop", nil, &result)
}

// SetExternalURL tells the server about a tunnel it does not manage
func (c *Client) SetExternalURL(ctx context.Context, u string) (*tunnelModel.SetURLResult, error) {
	var result tunnelModel.SetURLResult
	if err := c.doJSON(ctx, http.MethodPost, "/tunnel/url", tunnelModel.SetURLParams{URL: u}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ClearExternalURL removes the external tunnel URL
func (c *Client) ClearExternalURL(ctx context.Context) error {
	var result shareModel.MessageResult
	return c.doJSON(ctx, http.MethodDelete, "/tunnel/url", nil, &result)
}

// Version returns the server's version information
func (c *Client) Version(ctx context.Context) (*miscModel.VersionInfo, error) {
	var info miscModel.VersionInfo
	if err := c.doJSON(ctx, http.MethodGet, "/version", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// WatchTunnel calls fn with every tunnel status the server reports until ctx
// ends, fn returns an error, or the connection drops.
func (c *Client) WatchTunnel(ctx context.Context, fn func(tunnelModel.Status) error) error {
	u, err := url.Parse(c.baseURL + apiRoot + "/tunnel/events")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set(bypassHeader, "true")
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeError(resp)
		}
		return transportError(c.baseURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		var status tunnelModel.Status
		if err := conn.ReadJSON(&status); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return transportError(c.baseURL, err)
		}
		if err := fn(status); err != nil {
			return err
		}
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiRoot+path, body)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", c.baseURL, err)
	}
	req.Header.Set(bypassHeader, "true")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, transportError(c.baseURL, err)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(c.api, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse server response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
	}
	return apiErr
}
