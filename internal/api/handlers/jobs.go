// jobs.go — обработчики очереди заданий и истории.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/cloudfile/internal/api/errors"
	"github.com/bigkaa/cloudfile/internal/api/routes"
	"github.com/bigkaa/cloudfile/internal/domain/model"
	"github.com/bigkaa/cloudfile/internal/service"
)

type jobList struct {
	Items []model.FileJob `json:"items"`
	Total int             `json:"total"`
}

type submitFilesRequest struct {
	Files []model.FileDescriptor `json:"files"`
}

type startResponse struct {
	Started    int  `json:"started"`
	Processing bool `json:"processing"`
}

// ListJobs — GET /api/v1/jobs. Новые задания первыми.
func (h *APIHandler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := h.tracker.Jobs()
	writeJSON(w, http.StatusOK, jobList{Items: jobs, Total: len(jobs)})
}

// SubmitFiles — POST /api/v1/jobs.
// Ответ 201 содержит принятые и отклонённые файлы; если отклонены все — 415.
func (h *APIHandler) SubmitFiles(w http.ResponseWriter, r *http.Request) {
	var req submitFilesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateDescriptors(req.Files); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.tracker.Submit(req.Files)
	if err != nil {
		if errors.Is(err, service.ErrRouteNotAccepting) {
			apierrors.RouteNotAccepting(w, fmt.Sprintf("Модуль %s не принимает файлы", h.tracker.Workspace().Route()))
			return
		}
		h.logger.Error("Ошибка добавления файлов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при добавлении файлов")
		return
	}

	if len(res.Accepted) == 0 && len(res.Rejected) > 0 {
		apierrors.UnsupportedFileType(w, res.Rejected[0].Reason)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// StartProcessing — POST /api/v1/jobs/start.
func (h *APIHandler) StartProcessing(w http.ResponseWriter, _ *http.Request) {
	started := h.tracker.StartProcessing()
	writeJSON(w, http.StatusAccepted, startResponse{
		Started:    started,
		Processing: h.tracker.Running(),
	})
}

// GetJob — GET /api/v1/jobs/{job_id}.
func (h *APIHandler) GetJob(w http.ResponseWriter, _ *http.Request, jobID routes.JobId) {
	job, err := h.tracker.Job(jobID.String())
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			apierrors.NotFound(w, "Задание не найдено")
			return
		}
		apierrors.InternalError(w, "Внутренняя ошибка при получении задания")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RemoveJob — DELETE /api/v1/jobs/{job_id}. Отсутствующее задание — не ошибка.
func (h *APIHandler) RemoveJob(w http.ResponseWriter, _ *http.Request, jobID routes.JobId) {
	h.tracker.Remove(jobID.String())
	w.WriteHeader(http.StatusNoContent)
}

// ListHistory — GET /api/v1/history.
func (h *APIHandler) ListHistory(w http.ResponseWriter, _ *http.Request) {
	jobs := h.history.List()
	writeJSON(w, http.StatusOK, jobList{Items: jobs, Total: len(jobs)})
}

// validateDescriptors проверяет описания файлов до постановки в очередь.
func validateDescriptors(files []model.FileDescriptor) error {
	if len(files) == 0 {
		return errors.New("список files не может быть пустым")
	}
	for i, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("files[%d]: поле name обязательно", i)
		}
		if f.Size < 0 {
			return fmt.Errorf("files[%d]: поле size не может быть отрицательным", i)
		}
	}
	return nil
}
