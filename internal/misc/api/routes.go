package api

import (
	"github.com/emicklei/go-restful/v3"

	commonErrors "github.com/yal42d-debug/dosya-paylas/internal/common/errors"
	"github.com/yal42d-debug/dosya-paylas/internal/misc/model"
)

// RegisterRoutes registers the miscellaneous routes
func RegisterRoutes(ws *restful.WebService, handler *MiscHandler) {
	// Version route
	ws.Route(ws.GET("/version").To(handler.GetVersion).
		Doc("get server version information").
		Returns(200, "OK", model.VersionInfo{}).
		Returns(500, "Internal Server Error", nil))

	ws.Route(ws.POST("/qr").To(handler.CreateQRCode).
		Doc("render text as a QR code PNG data URL").
		Reads(model.QRParams{}).
		Returns(200, "OK", model.QRResult{}).
		Returns(400, "Bad Request", commonErrors.Error{}))

	ws.Route(ws.GET("/network").To(handler.GetNetwork).
		Doc("get the network visitors should join").
		Returns(200, "OK", model.NetworkInfo{}).
		Returns(500, "Internal Server Error", commonErrors.Error{}))

	ws.Route(ws.PUT("/network").To(handler.PutNetwork).
		Doc("save the network visitors should join").
		Reads(model.NetworkInfo{}).
		Returns(200, "OK", model.NetworkInfo{}).
		Returns(400, "Bad Request", commonErrors.Error{}).
		Returns(500, "Internal Server Error", commonErrors.Error{}))
}
