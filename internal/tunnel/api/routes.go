package api

import (
	"github.com/emicklei/go-restful/v3"

	commonErrors "github.com/yal42d-debug/dosya-paylas/internal/common/errors"
	model "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

// RegisterRoutes registers the tunnel routes
func RegisterRoutes(ws *restful.WebService, handler *TunnelHandler) {
	ws.Route(ws.GET("/tunnel/status").To(handler.GetStatus).
		Doc("get tunnel status").
		Returns(200, "OK", model.StatusResponse{}))

	ws.Route(ws.POST("/tunnel/start").To(handler.Start).
		Doc("start the tunnel").
		Consumes("*/*").
		Notes("Waits for the tunnel to settle. Starting a connecting or connected tunnel is a no-op.").
		Returns(200, "OK", model.StartResult{}).
		Returns(202, "Accepted", model.StartResult{}).
		Returns(409, "Conflict", commonErrors.Error{}).
		Returns(500, "Internal Server Error", commonErrors.Error{}))

	ws.Route(ws.POST("/tunnel/stop").To(handler.Stop).
		Doc("stop the tunnel").
		Consumes("*/*").
		Returns(200, "OK", message{}))

	ws.Route(ws.POST("/tunnel/url").To(handler.SetURL).
		Doc("set an externally managed public URL").
		Reads(model.SetURLParams{}).
		Returns(200, "OK", model.SetURLResult{}).
		Returns(400, "Bad Request", commonErrors.Error{}))

	ws.Route(ws.DELETE("/tunnel/url").To(handler.ClearURL).
		Doc("clear the external public URL").
		Returns(200, "OK", message{}))

	ws.Route(ws.GET("/tunnel/events").To(handler.Events).
		Doc("stream tunnel status changes over a websocket").
		Produces("*/*"))
}
