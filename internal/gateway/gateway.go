// Package gateway assembles the HTTP surface: the REST API, WebDAV, health
// and metrics endpoints.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	restful "github.com/emicklei/go-restful/v3"

	commonErrors "github.com/yal42d-debug/dosya-paylas/internal/common/errors"
	"github.com/yal42d-debug/dosya-paylas/internal/metrics"
	miscApi "github.com/yal42d-debug/dosya-paylas/internal/misc/api"
	miscService "github.com/yal42d-debug/dosya-paylas/internal/misc/service"
	shareApi "github.com/yal42d-debug/dosya-paylas/internal/share/api"
	shareService "github.com/yal42d-debug/dosya-paylas/internal/share/service"
	tunnelApi "github.com/yal42d-debug/dosya-paylas/internal/tunnel/api"
	tunnelService "github.com/yal42d-debug/dosya-paylas/internal/tunnel/service"
	"github.com/yal42d-debug/dosya-paylas/internal/webdav"
	"github.com/yal42d-debug/dosya-paylas/pkg/format"
	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
)

// APIRoot is the path of the REST web service
const APIRoot = "/api/v1"

var log = logger.New()

// Options are the services the gateway exposes
type Options struct {
	Share    *shareService.ShareService
	Tunnel   *tunnelService.Manager
	Misc     *miscService.MiscService
	LocalURL string
	// StartWait bounds how long a tunnel start request waits
	StartWait time.Duration
}

// Gateway routes HTTP requests onto the services
type Gateway struct {
	container *restful.Container
	ws        *restful.WebService
}

// New builds the container with all routes and filters installed
func New(opts Options) *Gateway {
	container := restful.NewContainer()
	container.DoNotRecover(false)
	container.RecoverHandler(recoverHandler)
	container.ServiceErrorHandler(serviceErrorHandler)

	ws := new(restful.WebService)
	ws.Path(APIRoot).
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	// Register routes
	shareApi.RegisterRoutes(ws, shareApi.NewShareHandler(opts.Share, opts.LocalURL, opts.Tunnel))
	tunnelApi.RegisterRoutes(ws, tunnelApi.NewTunnelHandler(opts.Tunnel, opts.StartWait))
	miscApi.RegisterRoutes(ws, miscApi.NewMiscHandler(opts.Misc))

	container.Add(ws)

	container.Handle(webdav.Prefix+"/", metrics.Middleware(webdav.Prefix, webdav.NewHandler(opts.Share.Root)))
	container.Handle("/metrics", metrics.Handler())
	container.Handle("/healthz", metrics.Middleware("/healthz", http.HandlerFunc(healthz)))

	// Add CORS filter
	cors := restful.CrossOriginResourceSharing{
		AllowedHeaders: []string{"Content-Type", "Accept", "Bypass-Tunnel-Reminder"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedDomains: []string{"*"},
		Container:      container,
	}
	container.Filter(cors.Filter)
	container.Filter(logRequest)
	container.Filter(metrics.Filter)

	return &Gateway{container: container, ws: ws}
}

// Handler returns the root http.Handler
func (g *Gateway) Handler() http.Handler {
	return g.container
}

// Endpoints lists the REST routes for the startup log
func (g *Gateway) Endpoints() []format.APIEndpoint {
	endpoints := make([]format.APIEndpoint, 0, len(g.ws.Routes()))
	for _, route := range g.ws.Routes() {
		endpoints = append(endpoints, format.APIEndpoint{
			Method:      route.Method,
			Path:        route.Path,
			Description: route.Doc,
		})
	}
	return endpoints
}

func logRequest(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	// Print request line with query parameters
	url := req.Request.URL.Path
	if req.Request.URL.RawQuery != "" {
		url += "?" + req.Request.URL.RawQuery
	}
	log.Info("%s %s %s", req.Request.Method, url, req.Request.Proto)

	// Print headers in debug mode
	if log.IsDebugEnabled() && len(req.Request.Header) > 0 {
		headers := make([]string, 0, len(req.Request.Header))
		for name, values := range req.Request.Header {
			headers = append(headers, fmt.Sprintf("%s: %s", name, values[0]))
		}
		log.Debug("Headers: %s", strings.Join(headers, ", "))
	}

	log.Debug("Request route: %s", req.SelectedRoutePath())
	log.Debug("Request parameters: %v", req.PathParameters())

	chain.ProcessFilter(req, resp)

	log.Debug("Response status: %d", resp.StatusCode())
}

func recoverHandler(reason interface{}, w http.ResponseWriter) {
	log.Error("Panic recovered: %v\n%s", reason, debug.Stack())
	w.Header().Set("Content-Type", restful.MIME_JSON)
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(commonErrors.ErrInternalError)
}

func serviceErrorHandler(serviceErr restful.ServiceError, req *restful.Request, resp *restful.Response) {
	for name, values := range serviceErr.Header {
		for _, v := range values {
			resp.AddHeader(name, v)
		}
	}
	message := serviceErr.Message
	if message == "" {
		message = http.StatusText(serviceErr.Code)
	}
	resp.WriteHeaderAndJson(serviceErr.Code, commonErrors.New(serviceErr.Code, message), restful.MIME_JSON)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", restful.MIME_JSON)
	w.Write([]byte(`{"status":"ok"}`))
}
