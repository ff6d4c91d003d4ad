package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/emicklei/go-restful/v3"

	commonErrors "github.com/yal42d-debug/dosya-paylas/internal/common/errors"
	"github.com/yal42d-debug/dosya-paylas/internal/misc/model"
	"github.com/yal42d-debug/dosya-paylas/internal/misc/service"
	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
)

var log = logger.New()

// MiscHandler handles miscellaneous operations
type MiscHandler struct {
	service *service.MiscService
}

// NewMiscHandler creates a new MiscHandler
func NewMiscHandler(service *service.MiscService) *MiscHandler {
	return &MiscHandler{
		service: service,
	}
}

// GetVersion handles GET /version request
func (h *MiscHandler) GetVersion(req *restful.Request, resp *restful.Response) {
	version := h.service.GetVersion()
	resp.WriteHeaderAndJson(http.StatusOK, version, restful.MIME_JSON)
}

// CreateQRCode renders the posted text as a PNG data URL
func (h *MiscHandler) CreateQRCode(req *restful.Request, resp *restful.Response) {
	var params model.QRParams
	if err := req.ReadEntity(&params); err != nil || strings.TrimSpace(params.Text) == "" {
		commonErrors.Write(resp, http.StatusBadRequest, "Text is required")
		return
	}

	code, err := service.DataURL(params.Text)
	if err != nil {
		log.Error("QR generation failed: %v", err)
		commonErrors.Write(resp, http.StatusInternalServerError, "QR code could not be generated")
		return
	}
	resp.WriteHeaderAndJson(http.StatusOK, model.QRResult{QRCode: code}, restful.MIME_JSON)
}

// GetNetwork returns the saved network metadata
func (h *MiscHandler) GetNetwork(req *restful.Request, resp *restful.Response) {
	info, err := h.service.GetNetwork()
	if err != nil {
		log.Error("Loading network info: %v", err)
		commonErrors.Write(resp, http.StatusInternalServerError, "Network info could not be loaded")
		return
	}
	resp.WriteHeaderAndJson(http.StatusOK, info, restful.MIME_JSON)
}

// PutNetwork replaces the saved network metadata
func (h *MiscHandler) PutNetwork(req *restful.Request, resp *restful.Response) {
	var params model.NetworkInfo
	if err := req.ReadEntity(&params); err != nil {
		commonErrors.Write(resp, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := h.service.SaveNetwork(&params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidNetwork) {
			commonErrors.Write(resp, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("Saving network info: %v", err)
		commonErrors.Write(resp, http.StatusInternalServerError, "Network info could not be saved")
		return
	}
	log.Info("Network info saved for %s", info.SSID)
	resp.WriteHeaderAndJson(http.StatusOK, info, restful.MIME_JSON)
}

