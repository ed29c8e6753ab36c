// workspace.go — обработчики состояния приложения:
// каталог форматов, активный маршрут, глобальный целевой формат.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/cloudfile/internal/api/errors"
	"github.com/bigkaa/cloudfile/internal/domain/model"
	"github.com/bigkaa/cloudfile/internal/domain/workspace"
	"github.com/bigkaa/cloudfile/internal/service"
)

type formatCatalog struct {
	ConverterFormats []string `json:"converterFormats"`
	CompressorTypes  []string `json:"compressorTypes"`
}

type workspaceState struct {
	Route        model.Route       `json:"route"`
	Mode         model.Mode        `json:"mode"`
	AcceptsFiles bool              `json:"acceptsFiles"`
	TargetFormat string            `json:"targetFormat"`
	Jobs         workspace.Summary `json:"jobs"`
	Processing   bool              `json:"processing"`
	ContentBusy  map[string]bool   `json:"contentBusy"`
	Cleared      *int              `json:"cleared,omitempty"`
}

type switchRouteRequest struct {
	Route string `json:"route"`
}

type setTargetFormatRequest struct {
	Format string `json:"format"`
}

type setTargetFormatResponse struct {
	TargetFormat string `json:"targetFormat"`
	Updated      int    `json:"updated"`
}

// ListFormats — GET /api/v1/formats.
func (h *APIHandler) ListFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, formatCatalog{
		ConverterFormats: model.ConverterFormats,
		CompressorTypes:  model.CompressorTypes,
	})
}

// GetWorkspace — GET /api/v1/workspace.
func (h *APIHandler) GetWorkspace(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.workspaceState())
}

// SwitchRoute — PUT /api/v1/workspace/route.
// Коллекция заданий очищается безусловно, цикл тиков останавливается.
func (h *APIHandler) SwitchRoute(w http.ResponseWriter, r *http.Request) {
	var req switchRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	route, err := model.ParseRoute(req.Route)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	cleared := h.tracker.SwitchRoute(route)
	state := h.workspaceState()
	state.Cleared = &cleared
	writeJSON(w, http.StatusOK, state)
}

// SetTargetFormat — PUT /api/v1/workspace/target-format.
func (h *APIHandler) SetTargetFormat(w http.ResponseWriter, r *http.Request) {
	var req setTargetFormatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Format) == "" {
		apierrors.ValidationError(w, "Поле format обязательно")
		return
	}

	updated, err := h.tracker.SetTargetFormat(req.Format)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedFormat) {
			apierrors.ValidationError(w, "Неподдерживаемый формат, допустимые: "+strings.Join(model.ConverterFormats, ", "))
			return
		}
		h.logger.Error("Ошибка смены формата", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при смене формата")
		return
	}

	writeJSON(w, http.StatusOK, setTargetFormatResponse{
		TargetFormat: h.tracker.Workspace().TargetFormat(),
		Updated:      updated,
	})
}

func (h *APIHandler) workspaceState() workspaceState {
	ws := h.tracker.Workspace()
	route := ws.Route()
	return workspaceState{
		Route:        route,
		Mode:         route.Mode(),
		AcceptsFiles: route.AcceptsFiles(),
		TargetFormat: ws.TargetFormat(),
		Jobs:         ws.Summary(),
		Processing:   h.tracker.Running(),
		ContentBusy:  h.content.Busy(),
	}
}
