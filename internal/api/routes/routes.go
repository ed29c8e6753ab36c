// Пакет routes — таблица маршрутов CloudFile API поверх chi.
//
// Устроен по образцу chi-server из oapi-codegen: ServerInterface
// перечисляет операции контракта, ServerInterfaceWrapper разбирает
// параметры пути и запроса (oapi-codegen runtime) и вызывает обработчик.
// Операции и пути совпадают с internal/api/openapi/openapi.yaml.
package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/cloudfile/internal/api/errors"
)

// JobId — идентификатор задания в пути.
type JobId = openapi_types.UUID //nolint:revive // имя параметра из контракта

// ListNotificationsParams — параметры запроса GET /api/v1/notifications.
type ListNotificationsParams struct {
	// Since — вернуть уведомления с номером строго больше since
	Since *int64 `form:"since,omitempty" json:"since,omitempty"`
}

// ServerInterface — операции CloudFile API.
type ServerInterface interface {
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/openapi.json)
	GetOpenAPI(w http.ResponseWriter, r *http.Request)

	// (GET /api/v1/formats)
	ListFormats(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/workspace)
	GetWorkspace(w http.ResponseWriter, r *http.Request)
	// (PUT /api/v1/workspace/route)
	SwitchRoute(w http.ResponseWriter, r *http.Request)
	// (PUT /api/v1/workspace/target-format)
	SetTargetFormat(w http.ResponseWriter, r *http.Request)

	// (GET /api/v1/jobs)
	ListJobs(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/jobs)
	SubmitFiles(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/jobs/start)
	StartProcessing(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/jobs/archive)
	DownloadArchive(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/jobs/{job_id})
	GetJob(w http.ResponseWriter, r *http.Request, jobId JobId)
	// (DELETE /api/v1/jobs/{job_id})
	RemoveJob(w http.ResponseWriter, r *http.Request, jobId JobId)
	// (GET /api/v1/jobs/{job_id}/download)
	DownloadJob(w http.ResponseWriter, r *http.Request, jobId JobId)

	// (GET /api/v1/history)
	ListHistory(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/notifications)
	ListNotifications(w http.ResponseWriter, r *http.Request, params ListNotificationsParams)

	// (POST /api/v1/content/ocr)
	PerformOCR(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/content/summarize)
	SummarizeDocument(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/content/web-export)
	FetchWebsiteContent(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/content/web-export)
	GetLastWebExport(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper разбирает параметры и вызывает обработчик.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

// GetJob — обёртка с разбором job_id.
func (siw *ServerInterfaceWrapper) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := bindJobID(w, r)
	if !ok {
		return
	}
	siw.Handler.GetJob(w, r, jobID)
}

// RemoveJob — обёртка с разбором job_id.
func (siw *ServerInterfaceWrapper) RemoveJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := bindJobID(w, r)
	if !ok {
		return
	}
	siw.Handler.RemoveJob(w, r, jobID)
}

// DownloadJob — обёртка с разбором job_id.
func (siw *ServerInterfaceWrapper) DownloadJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := bindJobID(w, r)
	if !ok {
		return
	}
	siw.Handler.DownloadJob(w, r, jobID)
}

// ListNotifications — обёртка с разбором since.
func (siw *ServerInterfaceWrapper) ListNotifications(w http.ResponseWriter, r *http.Request) {
	var params ListNotificationsParams

	if err := runtime.BindQueryParameter("form", true, false, "since", r.URL.Query(), &params.Since); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный параметр since: %v", err))
		return
	}
	if params.Since != nil && *params.Since < 0 {
		apierrors.ValidationError(w, "Параметр since не может быть отрицательным")
		return
	}

	siw.Handler.ListNotifications(w, r, params)
}

// bindJobID разбирает параметр пути job_id как UUID.
// При ошибке пишет 400 и возвращает false.
func bindJobID(w http.ResponseWriter, r *http.Request) (JobId, bool) {
	var jobID JobId

	err := runtime.BindStyledParameterWithOptions("simple", "job_id", chi.URLParam(r, "job_id"), &jobID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный параметр job_id: %v", err))
		return jobID, false
	}
	return jobID, true
}

// HandlerFromMux регистрирует все маршруты API на переданном роутере.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	wrapper := ServerInterfaceWrapper{Handler: si}

	r.Get("/health/live", si.HealthLive)
	r.Get("/health/ready", si.HealthReady)
	r.Get("/metrics", si.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.json", si.GetOpenAPI)
		r.Get("/formats", si.ListFormats)

		r.Get("/workspace", si.GetWorkspace)
		r.Put("/workspace/route", si.SwitchRoute)
		r.Put("/workspace/target-format", si.SetTargetFormat)

		r.Get("/jobs", si.ListJobs)
		r.Post("/jobs", si.SubmitFiles)
		r.Post("/jobs/start", si.StartProcessing)
		r.Get("/jobs/archive", si.DownloadArchive)
		r.Get("/jobs/{job_id}", wrapper.GetJob)
		r.Delete("/jobs/{job_id}", wrapper.RemoveJob)
		r.Get("/jobs/{job_id}/download", wrapper.DownloadJob)

		r.Get("/history", si.ListHistory)
		r.Get("/notifications", wrapper.ListNotifications)

		r.Post("/content/ocr", si.PerformOCR)
		r.Post("/content/summarize", si.SummarizeDocument)
		r.Post("/content/web-export", si.FetchWebsiteContent)
		r.Get("/content/web-export", si.GetLastWebExport)
	})

	return r
}
