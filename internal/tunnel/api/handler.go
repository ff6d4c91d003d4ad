package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/gorilla/websocket"

	commonErrors "github.com/yal42d-debug/dosya-paylas/internal/common/errors"
	"github.com/yal42d-debug/dosya-paylas/internal/events"
	"github.com/yal42d-debug/dosya-paylas/internal/tunnel/service"
	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
	model "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

// DefaultStartWait bounds how long POST /tunnel/start waits for the tunnel to settle
const DefaultStartWait = 20 * time.Second

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var log = logger.New()

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the server has no notion of origins; any page on the LAN may watch
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TunnelHandler handles tunnel lifecycle requests
type TunnelHandler struct {
	manager   *service.Manager
	startWait time.Duration
}

// NewTunnelHandler creates a new TunnelHandler. A non-positive startWait
// falls back to DefaultStartWait.
func NewTunnelHandler(manager *service.Manager, startWait time.Duration) *TunnelHandler {
	if startWait <= 0 {
		startWait = DefaultStartWait
	}
	return &TunnelHandler{
		manager:   manager,
		startWait: startWait,
	}
}

// GetStatus handles GET /tunnel/status
func (h *TunnelHandler) GetStatus(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndJson(http.StatusOK, statusResponse(h.manager.Status()), restful.MIME_JSON)
}

// Start handles POST /tunnel/start. It answers once the tunnel has settled
// or with 202 when it is still connecting after the start wait.
func (h *TunnelHandler) Start(req *restful.Request, resp *restful.Response) {
	ctx, cancel := context.WithTimeout(req.Request.Context(), h.startWait)
	defer cancel()

	status, err := h.manager.StartAndWait(ctx)
	if err != nil {
		var tunnelErr *service.TunnelError
		if errors.As(err, &tunnelErr) {
			commonErrors.Write(resp, http.StatusInternalServerError, "Tunnel could not be started: "+tunnelErr.Message)
			return
		}
		commonErrors.Write(resp, http.StatusInternalServerError, err.Error())
		return
	}

	switch status.State {
	case model.StateConnected:
		resp.WriteHeaderAndJson(http.StatusOK, model.StartResult{
			Message: "Tunnel started",
			URL:     status.URL,
			State:   status.State,
		}, restful.MIME_JSON)
	case model.StateOff:
		commonErrors.Write(resp, http.StatusConflict, "Tunnel was stopped while connecting")
	default:
		resp.WriteHeaderAndJson(http.StatusAccepted, model.StartResult{
			Message: "Tunnel is connecting",
			State:   status.State,
		}, restful.MIME_JSON)
	}
}

// Stop handles POST /tunnel/stop
func (h *TunnelHandler) Stop(req *restful.Request, resp *restful.Response) {
	h.manager.Stop()
	resp.WriteHeaderAndJson(http.StatusOK, messageResult("Tunnel stopped"), restful.MIME_JSON)
}

// SetURL handles POST /tunnel/url
func (h *TunnelHandler) SetURL(req *restful.Request, resp *restful.Response) {
	var params model.SetURLParams
	if err := req.ReadEntity(&params); err != nil || strings.TrimSpace(params.URL) == "" {
		commonErrors.Write(resp, http.StatusBadRequest, "URL is required")
		return
	}

	u, err := h.manager.SetExternalURL(params.URL)
	if err != nil {
		commonErrors.Write(resp, http.StatusBadRequest, "Invalid URL: "+params.URL)
		return
	}
	resp.WriteHeaderAndJson(http.StatusOK, model.SetURLResult{
		Message: "Tunnel URL updated",
		URL:     u,
	}, restful.MIME_JSON)
}

// ClearURL handles DELETE /tunnel/url
func (h *TunnelHandler) ClearURL(req *restful.Request, resp *restful.Response) {
	h.manager.ClearExternalURL()
	resp.WriteHeaderAndJson(http.StatusOK, messageResult("Tunnel URL cleared"), restful.MIME_JSON)
}

// Events handles GET /tunnel/events. The connection receives the current
// status and then one status message per transition.
func (h *TunnelHandler) Events(req *restful.Request, resp *restful.Response) {
	ch := h.manager.Subscribe()
	defer h.manager.Unsubscribe(ch)

	conn, err := upgrader.Upgrade(resp.ResponseWriter, req.Request, nil)
	if err != nil {
		// Upgrade writes error response itself
		log.Debug("Tunnel events upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// the client never sends data; reading surfaces its close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeStatus(conn, h.manager.Status()); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-req.Request.Context().Done():
			return
		case ev := <-ch:
			if ev.Type != events.EventTunnel || ev.Tunnel == nil {
				continue
			}
			if err := writeStatus(conn, *ev.Tunnel); err != nil {
				log.Debug("Tunnel events write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeStatus(conn *websocket.Conn, status model.Status) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(status)
}

func statusResponse(status model.Status) model.StatusResponse {
	r := model.StatusResponse{
		Running:     status.State == model.StateConnected,
		State:       status.State,
		Message:     status.Message,
		ExternalURL: status.ExternalURL,
	}
	if u := status.PublicURL(); u != "" {
		r.URL = &u
	}
	return r
}

type message struct {
	Message string `json:"message"`
}

func messageResult(msg string) message {
	return message{Message: msg}
}

