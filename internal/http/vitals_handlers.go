package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wisefido-vital-monitor/internal/models"
	"wisefido-vital-monitor/internal/service"

	"go.uber.org/zap"
)

// VitalsSource 体征视图来源（service.Poller）
type VitalsSource interface {
	View() models.VitalsView
	Refresh(ctx context.Context) error
}

// VitalsHandler 体征接口
type VitalsHandler struct {
	source VitalsSource
	logger *zap.Logger
}

func NewVitalsHandler(source VitalsSource, logger *zap.Logger) *VitalsHandler {
	return &VitalsHandler{source: source, logger: logger}
}

// GET /api/v1/vitals
func (h *VitalsHandler) GetVitals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.source.View()))
}

// POST /api/v1/vitals/refresh
// 本轮查询失败时仍返回 200，错误信息在 last_error 中；服务停止后返回 503
func (h *VitalsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.source.Refresh(r.Context())
	if errors.Is(err, service.ErrStopped) {
		writeJSON(w, http.StatusServiceUnavailable, Fail("service is shutting down"))
		return
	}
	if err != nil {
		h.logger.Debug("Manual refresh failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, Ok(h.source.View()))
}

// GET /api/v1/vitals/export
func (h *VitalsHandler) Export(w http.ResponseWriter, r *http.Request) {
	view := h.source.View()
	data, err := GenerateVitalsExport(view)
	if err != nil {
		h.logger.Error("Failed to generate vitals export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("vitals-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GET /healthz
func (h *VitalsHandler) Health(w http.ResponseWriter, r *http.Request) {
	view := h.source.View()
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"status":          "ok",
		"phase":           view.Phase,
		"has_loaded_once": view.HasLoadedOnce,
		"last_error":      view.LastError,
	}))
}
