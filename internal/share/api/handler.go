package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/emicklei/go-restful/v3"

	commonErrors "github.com/yal42d-debug/dosya-paylas/internal/common/errors"
	"github.com/yal42d-debug/dosya-paylas/internal/filename"
	"github.com/yal42d-debug/dosya-paylas/internal/metrics"
	"github.com/yal42d-debug/dosya-paylas/internal/share/service"
	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
	model "github.com/yal42d-debug/dosya-paylas/pkg/share"
)

// uploadField is the multipart field carrying files
const uploadField = "files"

var log = logger.New()

// PublicURLSource reports the current public address, "" when there is none
type PublicURLSource interface {
	PublicURL() string
}

// ShareHandler handles requests against the shared directory
type ShareHandler struct {
	service  *service.ShareService
	localURL string
	tunnel   PublicURLSource
}

// NewShareHandler creates a new ShareHandler
func NewShareHandler(service *service.ShareService, localURL string, tunnel PublicURLSource) *ShareHandler {
	return &ShareHandler{
		service:  service,
		localURL: localURL,
		tunnel:   tunnel,
	}
}

// GetInfo handles GET /info
func (h *ShareHandler) GetInfo(req *restful.Request, resp *restful.Response) {
	info := model.ServerInfo{
		LocalURL: h.localURL,
		ShareDir: h.service.Root(),
	}
	if h.tunnel != nil {
		if u := h.tunnel.PublicURL(); u != "" {
			info.TunnelURL = &u
		}
	}
	resp.WriteHeaderAndJson(http.StatusOK, info, restful.MIME_JSON)
}

// ListFiles handles GET /files
func (h *ShareHandler) ListFiles(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndJson(http.StatusOK, h.service.List(req.Request.Context()), restful.MIME_JSON)
}

// Upload handles POST /upload. Parts are streamed to temp files and
// published together once the whole body has been read; a rejected part
// discards the parts staged before it.
func (h *ShareHandler) Upload(req *restful.Request, resp *restful.Response) {
	reader, err := req.Request.MultipartReader()
	if err != nil {
		commonErrors.Write(resp, http.StatusBadRequest, "No files uploaded")
		return
	}

	staged := 0
	entries, err := h.service.SaveAll(req.Request.Context(), func(stage service.StageFunc) error {
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return errMalformed
			}

			raw := partFileName(part.Header.Get("Content-Disposition"))
			if part.FormName() != uploadField || raw == "" {
				part.Close()
				continue
			}

			_, err = stage(raw, part)
			part.Close()
			if err != nil {
				return &uploadError{raw: raw, err: err}
			}
			staged++
		}
	})

	var upErr *uploadError
	switch {
	case errors.Is(err, errMalformed):
		commonErrors.Write(resp, http.StatusBadRequest, "Malformed multipart body")
		return
	case errors.As(err, &upErr) && errors.Is(upErr.err, filename.ErrInvalidName):
		commonErrors.Write(resp, http.StatusBadRequest, "Invalid file name: "+upErr.raw)
		return
	case err != nil:
		log.Error("Saving upload: %v", err)
		commonErrors.Write(resp, http.StatusInternalServerError, "File could not be saved")
		return
	case staged == 0:
		commonErrors.Write(resp, http.StatusBadRequest, "No files uploaded")
		return
	}

	saved := make([]string, 0, len(entries))
	for _, e := range entries {
		saved = append(saved, e.Name)
	}
	resp.WriteHeaderAndJson(http.StatusOK, model.UploadResult{
		Message: "Files uploaded successfully",
		Files:   saved,
	}, restful.MIME_JSON)
}

var errMalformed = errors.New("malformed multipart body")

// uploadError carries the name as the client sent it
type uploadError struct {
	raw string
	err error
}

func (e *uploadError) Error() string {
	return fmt.Sprintf("%s: %v", e.raw, e.err)
}

func (e *uploadError) Unwrap() error {
	return e.err
}

// Download handles GET /download/{name}
func (h *ShareHandler) Download(req *restful.Request, resp *restful.Response) {
	name := req.PathParameter("name")
	content, err := h.service.Open(req.Request.Context(), name)
	if err != nil {
		writeServiceError(resp, name, err)
		return
	}
	defer content.Close()

	resp.Header().Set("Content-Type", content.MimeType)
	resp.Header().Set("Content-Disposition", ContentDisposition(content.Name))

	w := &countingWriter{ResponseWriter: resp}
	http.ServeContent(w, req.Request, content.Name, content.ModTime, content.File)
	metrics.RecordDownload(w.n, resp.StatusCode() < http.StatusBadRequest)
}

// DeleteFile handles DELETE /files/{name}
func (h *ShareHandler) DeleteFile(req *restful.Request, resp *restful.Response) {
	name := req.PathParameter("name")
	if err := h.service.Delete(req.Request.Context(), name); err != nil {
		writeServiceError(resp, name, err)
		return
	}
	resp.WriteHeaderAndJson(http.StatusOK, model.MessageResult{Message: "File deleted successfully"}, restful.MIME_JSON)
}

// SetDirectory handles POST /set-dir
func (h *ShareHandler) SetDirectory(req *restful.Request, resp *restful.Response) {
	var params model.SetDirParams
	if err := req.ReadEntity(&params); err != nil || strings.TrimSpace(params.Dir) == "" {
		commonErrors.Write(resp, http.StatusBadRequest, "Directory path is required")
		return
	}

	root, err := h.service.SetRoot(req.Request.Context(), params.Dir)
	if err != nil {
		log.Error("Relocation to %s failed: %v", params.Dir, err)
		commonErrors.Write(resp, http.StatusInternalServerError, "Directory could not be used: "+err.Error())
		return
	}
	resp.WriteHeaderAndJson(http.StatusOK, model.SetDirResult{
		Message:  "Shared directory updated",
		ShareDir: root,
	}, restful.MIME_JSON)
}

func writeServiceError(resp *restful.Response, name string, err error) {
	switch {
	case errors.Is(err, filename.ErrInvalidName):
		commonErrors.Write(resp, http.StatusBadRequest, "Invalid file name")
	case errors.Is(err, service.ErrNotFound):
		commonErrors.Write(resp, http.StatusNotFound, commonErrors.ErrNotFound.Message)
	default:
		log.Error("File operation on %q failed: %v", name, err)
		commonErrors.Write(resp, http.StatusInternalServerError, commonErrors.ErrInternalError.Message)
	}
}

// partFileName returns the filename parameter exactly as sent. Unlike
// Part.FileName it keeps directory components so they can be rejected.
func partFileName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

type countingWriter struct {
	http.ResponseWriter
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.n += int64(n)
	return n, err
}
