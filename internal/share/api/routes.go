package api

import (
	"github.com/emicklei/go-restful/v3"

	commonErrors "github.com/yal42d-debug/dosya-paylas/internal/common/errors"
	model "github.com/yal42d-debug/dosya-paylas/pkg/share"
)

// RegisterRoutes registers the shared directory routes
func RegisterRoutes(ws *restful.WebService, handler *ShareHandler) {
	ws.Route(ws.GET("/info").To(handler.GetInfo).
		Doc("get server addresses and the shared directory").
		Returns(200, "OK", model.ServerInfo{}))

	ws.Route(ws.GET("/files").To(handler.ListFiles).
		Doc("list files in the shared directory").
		Returns(200, "OK", []model.FileEntry{}))

	ws.Route(ws.POST("/upload").To(handler.Upload).
		Doc("upload files").
		Consumes("multipart/form-data").
		Notes("Every part of the field \"files\" is stored under its file name; "+
			"an existing file with the same name is replaced.").
		Returns(200, "OK", model.UploadResult{}).
		Returns(400, "Bad Request", commonErrors.Error{}).
		Returns(500, "Internal Server Error", commonErrors.Error{}))

	ws.Route(ws.GET("/download/{name}").To(handler.Download).
		Doc("download a file").
		Produces("*/*").
		Param(ws.PathParameter("name", "file name").DataType("string")).
		Notes("The response Content-Type is detected from the file content.").
		Returns(200, "OK", nil).
		Returns(400, "Bad Request", commonErrors.Error{}).
		Returns(404, "Not Found", commonErrors.Error{}))

	ws.Route(ws.DELETE("/files/{name}").To(handler.DeleteFile).
		Doc("delete a file").
		Param(ws.PathParameter("name", "file name").DataType("string")).
		Returns(200, "OK", model.MessageResult{}).
		Returns(400, "Bad Request", commonErrors.Error{}).
		Returns(404, "Not Found", commonErrors.Error{}))

	ws.Route(ws.POST("/set-dir").To(handler.SetDirectory).
		Doc("change the shared directory").
		Reads(model.SetDirParams{}).
		Returns(200, "OK", model.SetDirResult{}).
		Returns(400, "Bad Request", commonErrors.Error{}).
		Returns(500, "Internal Server Error", commonErrors.Error{}))
}
