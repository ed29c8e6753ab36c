// downloads.go — скачивание синтетических результатов:
// одного задания и ZIP-архива всей коллекции.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/bigkaa/cloudfile/internal/api/errors"
	"github.com/bigkaa/cloudfile/internal/api/routes"
	"github.com/bigkaa/cloudfile/internal/service"
)

// DownloadJob — GET /api/v1/jobs/{job_id}/download.
func (h *APIHandler) DownloadJob(w http.ResponseWriter, _ *http.Request, jobID routes.JobId) {
	f, err := h.downloads.File(jobID.String())
	if err != nil {
		h.writeDownloadError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(f.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Content)
}

// DownloadArchive — GET /api/v1/jobs/archive.
// Готовность проверяется до записи заголовков, затем архив пишется потоково.
func (h *APIHandler) DownloadArchive(w http.ResponseWriter, _ *http.Request) {
	plan, err := h.downloads.PrepareArchive()
	if err != nil {
		h.writeDownloadError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(plan.Name))
	w.WriteHeader(http.StatusOK)

	if err := h.downloads.WriteArchive(w, plan); err != nil {
		// Заголовки уже отправлены, остаётся только лог
		h.logger.Warn("Ошибка записи ZIP-архива",
			slog.String("name", plan.Name),
			slog.String("error", err.Error()),
		)
	}
}

func (h *APIHandler) writeDownloadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		apierrors.NotFound(w, "Задание не найдено")
	case errors.Is(err, service.ErrJobNotReady):
		apierrors.JobNotReady(w, "Результат ещё не готов: "+err.Error())
	default:
		h.logger.Error("Ошибка скачивания", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при скачивании")
	}
}

// attachment возвращает значение Content-Disposition с очищенным именем файла.
func attachment(name string) string {
	safe := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf(`attachment; filename="%s"`, safe)
}
