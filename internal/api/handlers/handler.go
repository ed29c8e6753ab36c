// handler.go — основной обработчик API, реализующий routes.ServerInterface.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/cloudfile/internal/api/errors"
	"github.com/bigkaa/cloudfile/internal/api/openapi"
	"github.com/bigkaa/cloudfile/internal/api/routes"
	"github.com/bigkaa/cloudfile/internal/notify"
	"github.com/bigkaa/cloudfile/internal/service"
)

// Проверка соответствия интерфейсу на этапе компиляции.
var _ routes.ServerInterface = (*APIHandler)(nil)

// APIHandler — основной обработчик API CloudFile.
type APIHandler struct {
	health    *HealthHandler
	tracker   *service.JobTracker
	content   *service.ContentService
	history   *service.HistoryService
	downloads *service.DownloadService
	bus       *notify.Bus
	spec      *openapi.Spec
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	tracker *service.JobTracker,
	content *service.ContentService,
	history *service.HistoryService,
	downloads *service.DownloadService,
	bus *notify.Bus,
	spec *openapi.Spec,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		tracker:   tracker,
		content:   content,
		history:   history,
		downloads: downloads,
		bus:       bus,
		spec:      spec,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetOpenAPI — контракт API в JSON.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.spec.JSON)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса в dst.
// При ошибке пишет ответ (400 или 413) и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.RequestBodyTooLarge(w, "Тело запроса превышает допустимый размер")
			return false
		}
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return false
	}
	return true
}
