package status

import (
	"net/http"

	"bbbpartner/internal/export"
	"bbbpartner/internal/httpx"
	"bbbpartner/internal/region"
)

type HTTPHandler struct {
	loader *region.Loader
	writer *export.Writer
}

func NewHTTPHandler(loader *region.Loader, writer *export.Writer) *HTTPHandler {
	return &HTTPHandler{loader: loader, writer: writer}
}

// Status handles GET /v1/regions/status
func (h *HTTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	rep, err := Check(h.loader, h.writer)
	if err != nil {
		if IsConfigurationError(err) {
			httpx.JSONError(w, r, http.StatusUnprocessableEntity, "CONFIGURATION_ERROR", err.Error(), nil)
			return
		}
		httpx.JSONError(w, r, http.StatusInternalServerError, "STATUS_FAILED", err.Error(), nil)
		return
	}
	httpx.JSONSuccess(w, r, rep, map[string]any{
		"total":     len(rep.Regions),
		"ready":     len(rep.Ready),
		"processed": len(rep.Processed),
	})
}
