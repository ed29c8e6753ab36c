package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/cloudfile/internal/api/middleware"
	"github.com/bigkaa/cloudfile/internal/api/openapi"
	"github.com/bigkaa/cloudfile/internal/api/routes"
	"github.com/bigkaa/cloudfile/internal/domain/model"
	"github.com/bigkaa/cloudfile/internal/domain/simulator"
	"github.com/bigkaa/cloudfile/internal/domain/workspace"
	"github.com/bigkaa/cloudfile/internal/genai"
	"github.com/bigkaa/cloudfile/internal/notify"
	"github.com/bigkaa/cloudfile/internal/service"
)

// stepSim — симулятор, завершающий задание за один тик.
type stepSim struct{}

func (stepSim) Advance(model.FileJob) simulator.Step { return simulator.Step{Increment: 100} }
func (stepSim) OutputSize(model.FileJob) int64       { return 1234 }

// mockGenerator — mock сервиса генерации.
// Если задан block, вызов сигналит в entered и ждёт закрытия block.
type mockGenerator struct {
	text    string
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (m *mockGenerator) GenerateContent(context.Context, genai.Request) (string, error) {
	if m.block != nil {
		m.entered <- struct{}{}
		<-m.block
	}
	return m.text, m.err
}

// staticChecker — ReadinessChecker с фиксированным результатом.
type staticChecker struct{ status, msg string }

func (c staticChecker) CheckReady() (string, string) { return c.status, c.msg }

type testEnv struct {
	router  *chi.Mux
	tracker *service.JobTracker
	bus     *notify.Bus
	gen     *mockGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bus := notify.NewBus(100)
	history := service.NewHistoryService(100, time.Hour)
	ws := workspace.New("PDF", func(j model.FileJob) string {
		return "/api/v1/jobs/" + j.ID + "/download"
	})
	// Цикл тиков в тестах не срабатывает, тики вызываются через RunTick
	tracker := service.NewJobTracker(ws, stepSim{}, bus, history, time.Hour, logger)
	t.Cleanup(tracker.Close)

	gen := &mockGenerator{text: "generated"}
	content := service.NewContentService(gen, bus, logger)
	downloads := service.NewDownloadService(tracker, bus, logger)

	spec, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("openapi.Load: %v", err)
	}

	health := NewHealthHandler(map[string]ReadinessChecker{
		"genai": staticChecker{status: "ok"},
	})
	h := NewAPIHandler(health, tracker, content, history, downloads, bus, spec, logger)

	router := chi.NewRouter()
	router.Use(middleware.MaxBodySize(1 << 20))
	routes.HandlerFromMux(h, router)

	return &testEnv{router: router, tracker: tracker, bus: bus, gen: gen}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("разбор ответа: %v (%s)", err, rec.Body.String())
	}
	return v
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, ожидался %d (%s)", rec.Code, status, rec.Body.String())
	}
	if got := decodeBody[errorResponse](t, rec).Error.Code; got != code {
		t.Errorf("code = %q, ожидался %q", got, code)
	}
}

// --- Health ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/live", "")
	if rec.Code != http.StatusOK {
		t.Errorf("live: status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusOK {
		t.Errorf("ready: status = %d", rec.Code)
	}
	ready := decodeBody[healthReadyResponse](t, rec)
	if ready.Status != "ok" || ready.Checks["genai"].Status != "ok" {
		t.Errorf("ready = %+v", ready)
	}
}

func TestHealthReady_Fail(t *testing.T) {
	h := NewHealthHandler(map[string]ReadinessChecker{
		"genai": staticChecker{status: statusDegraded},
		"other": staticChecker{status: statusFail, msg: "down"},
	})

	rec := httptest.NewRecorder()
	h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, ожидался 503", rec.Code)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, "ok"},
		{[]string{"ok", "ok"}, "ok"},
		{[]string{"ok", "degraded"}, "degraded"},
		{[]string{"degraded", "fail"}, "fail"},
	}
	for _, tt := range tests {
		if got := overallStatus(tt.in...); got != tt.want {
			t.Errorf("overallStatus(%v) = %q, ожидался %q", tt.in, got, tt.want)
		}
	}
}

func TestGetOpenAPI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/openapi.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := decodeBody[map[string]any](t, rec)
	if _, ok := doc["paths"]; !ok {
		t.Error("в контракте нет paths")
	}
}

// --- Workspace ---

func TestWorkspace_SwitchRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/workspace", "")
	state := decodeBody[workspaceState](t, rec)
	if state.Route != model.RouteDashboard || state.AcceptsFiles {
		t.Errorf("начальное состояние = %+v", state)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/workspace/route", `{"route":"converter"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	env.do(t, http.MethodPost, "/api/v1/jobs", `{"files":[{"name":"a.txt","size":1,"type":"text/plain"}]}`)

	rec = env.do(t, http.MethodPut, "/api/v1/workspace/route", `{"route":"compressor"}`)
	state = decodeBody[workspaceState](t, rec)
	if state.Route != model.RouteCompressor || state.Mode != model.ModeCompressor {
		t.Errorf("state = %+v", state)
	}
	if state.Cleared == nil || *state.Cleared != 1 || state.Jobs.Total != 0 {
		t.Errorf("cleared = %v, total = %d", state.Cleared, state.Jobs.Total)
	}
}

func TestWorkspace_SwitchRoute_Invalid(t *testing.T) {
	env := newTestEnv(t)

	expectError(t, env.do(t, http.MethodPut, "/api/v1/workspace/route", `{"route":"admin"}`),
		http.StatusBadRequest, "VALIDATION_ERROR")
	expectError(t, env.do(t, http.MethodPut, "/api/v1/workspace/route", `{`),
		http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestWorkspace_SetTargetFormat(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPut, "/api/v1/workspace/route", `{"route":"converter"}`)
	env.do(t, http.MethodPost, "/api/v1/jobs", `{"files":[{"name":"a.txt","size":1,"type":"text/plain"}]}`)

	rec := env.do(t, http.MethodPut, "/api/v1/workspace/target-format", `{"format":"docx"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeBody[setTargetFormatResponse](t, rec)
	if resp.TargetFormat != "DOCX" || resp.Updated != 1 {
		t.Errorf("resp = %+v", resp)
	}

	expectError(t, env.do(t, http.MethodPut, "/api/v1/workspace/target-format", `{"format":"BMP"}`),
		http.StatusBadRequest, "VALIDATION_ERROR")
	expectError(t, env.do(t, http.MethodPut, "/api/v1/workspace/target-format", `{"format":""}`),
		http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestListFormats(t *testing.T) {
	env := newTestEnv(t)

	cat := decodeBody[formatCatalog](t, env.do(t, http.MethodGet, "/api/v1/formats", ""))
	if len(cat.ConverterFormats) != 6 || cat.ConverterFormats[0] != "PDF" {
		t.Errorf("converterFormats = %v", cat.ConverterFormats)
	}
	if len(cat.CompressorTypes) != 3 {
		t.Errorf("compressorTypes = %v", cat.CompressorTypes)
	}
}

func TestWorkspace_ContentBusy(t *testing.T) {
	env := newTestEnv(t)

	state := decodeBody[workspaceState](t, env.do(t, http.MethodGet, "/api/v1/workspace", ""))
	if len(state.ContentBusy) != 3 || state.ContentBusy["summarize"] {
		t.Fatalf("contentBusy = %v", state.ContentBusy)
	}

	env.gen.block = make(chan struct{})
	env.gen.entered = make(chan struct{}, 1)

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/content/summarize", strings.NewReader(`{"text":"abc"}`))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		done <- rec.Code
	}()

	select {
	case <-env.gen.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("генерация не началась")
	}

	state = decodeBody[workspaceState](t, env.do(t, http.MethodGet, "/api/v1/workspace", ""))
	if !state.ContentBusy["summarize"] || state.ContentBusy["ocr"] {
		t.Errorf("contentBusy во время генерации = %v", state.ContentBusy)
	}

	close(env.gen.block)
	if code := <-done; code != http.StatusOK {
		t.Errorf("summarize: status = %d", code)
	}

	state = decodeBody[workspaceState](t, env.do(t, http.MethodGet, "/api/v1/workspace", ""))
	if state.ContentBusy["summarize"] {
		t.Error("флаг summarize не сброшен после завершения")
	}
}

// --- Jobs ---

func TestSubmitFiles_RouteNotAccepting(t *testing.T) {
	env := newTestEnv(t)

	expectError(t, env.do(t, http.MethodPost, "/api/v1/jobs", `{"files":[{"name":"a.jpg","size":1,"type":"image/jpeg"}]}`),
		http.StatusConflict, "ROUTE_NOT_ACCEPTING_FILES")
}

func TestSubmitFiles_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPut, "/api/v1/workspace/route", `{"route":"converter"}`)

	tests := []struct {
		name string
		body string
	}{
		{"пустой список", `{"files":[]}`},
		{"без имени", `{"files":[{"name":"","size":1,"type":"text/plain"}]}`},
		{"отрицательный размер", `{"files":[{"name":"a","size":-1,"type":"text/plain"}]}`},
		{"не JSON", `files`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.do(t, http.MethodPost, "/api/v1/jobs", tt.body), http.StatusBadRequest, "VALIDATION_ERROR")
		})
	}
}

func TestSubmitFiles_CompressorRejects(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPut, "/api/v1/workspace/route", `{"route":"compressor"}`)

	expectError(t, env.do(t, http.MethodPost, "/api/v1/jobs", `{"files":[{"name":"a.gif","size":1,"type":"image/gif"}]}`),
		http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE")

	rec := env.do(t, http.MethodPost, "/api/v1/jobs",
		`{"files":[{"name":"a.gif","size":1,"type":"image/gif"},{"name":"b.png","size":5,"type":"image/png"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	res := decodeBody[service.SubmitResult](t, rec)
	if len(res.Accepted) != 1 || len(res.Rejected) != 1 {
		t.Errorf("accepted=%d rejected=%d", len(res.Accepted), len(res.Rejected))
	}
	if res.Accepted[0].TargetFormat != "PNG" {
		t.Errorf("targetFormat = %s, ожидался PNG", res.Accepted[0].TargetFormat)
	}

	list := decodeBody[jobList](t, env.do(t, http.MethodGet, "/api/v1/jobs", ""))
	if list.Total != 1 {
		t.Errorf("total = %d, ожидалось 1", list.Total)
	}

	notes := decodeBody[notificationList](t, env.do(t, http.MethodGet, "/api/v1/notifications", ""))
	if len(notes.Items) != 2 || notes.LastSeq != 2 {
		t.Errorf("уведомления = %+v", notes)
	}
	for _, n := range notes.Items {
		if n.Kind != notify.KindFileRejected {
			t.Errorf("kind = %s, ожидался file_rejected", n.Kind)
		}
	}
}

// TestJobs_Lifecycle — добавление, запуск, тик, скачивание, история.
func TestJobs_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPut, "/api/v1/workspace/route", `{"route":"compressor"}`)

	rec := env.do(t, http.MethodPost, "/api/v1/jobs", `{"files":[{"name":"photo.jpg","size":2000000,"type":"image/jpeg"}]}`)
	job := decodeBody[service.SubmitResult](t, rec).Accepted[0]

	// До завершения скачивание недоступно
	expectError(t, env.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID+"/download", ""),
		http.StatusConflict, "JOB_NOT_READY")
	expectError(t, env.do(t, http.MethodGet, "/api/v1/jobs/archive", ""),
		http.StatusConflict, "JOB_NOT_READY")

	rec = env.do(t, http.MethodPost, "/api/v1/jobs/start", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: status = %d", rec.Code)
	}
	if started := decodeBody[startResponse](t, rec); started.Started != 1 || !started.Processing {
		t.Errorf("start = %+v", started)
	}

	env.tracker.RunTick()

	got := decodeBody[model.FileJob](t, env.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, ""))
	if got.Status != model.StatusCompleted || got.Progress != 100 {
		t.Errorf("job = %+v", got)
	}
	if got.OutputSize == nil || *got.OutputSize != 1234 {
		t.Errorf("outputSize = %v", got.OutputSize)
	}
	if got.OutputRef == nil || *got.OutputRef != "/api/v1/jobs/"+job.ID+"/download" {
		t.Errorf("outputUrl = %v", got.OutputRef)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID+"/download", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("download: status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="photo_optimized.jpg"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "Processed photo.jpg" {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/jobs/archive", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("archive: status = %d, type = %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil || len(zr.File) != 1 {
		t.Fatalf("архив: err=%v", err)
	}

	history := decodeBody[jobList](t, env.do(t, http.MethodGet, "/api/v1/history", ""))
	if history.Total != 1 || history.Items[0].ID != job.ID {
		t.Errorf("history = %+v", history)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/jobs/"+job.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d", rec.Code)
	}
	// Повторное удаление — не ошибка
	if rec = env.do(t, http.MethodDelete, "/api/v1/jobs/"+job.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("повторный delete: status = %d", rec.Code)
	}
	expectError(t, env.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, ""), http.StatusNotFound, "NOT_FOUND")
}

func TestGetJob_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	expectError(t, env.do(t, http.MethodGet, "/api/v1/jobs/123", ""), http.StatusBadRequest, "VALIDATION_ERROR")
}

// --- Content ---

func TestContent_OCR(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/content/ocr", `{"data":"aGVsbG8=","mimeType":"image/png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if res := decodeBody[textResult](t, rec); res.Text != "generated" {
		t.Errorf("text = %q", res.Text)
	}

	expectError(t, env.do(t, http.MethodPost, "/api/v1/content/ocr", `{"data":"aGVsbG8=","mimeType":"text/plain"}`),
		http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestContent_Summarize_Fallback(t *testing.T) {
	env := newTestEnv(t)
	env.gen.text = ""

	res := decodeBody[textResult](t, env.do(t, http.MethodPost, "/api/v1/content/summarize", `{"text":"abc"}`))
	if res.Text != "Summary unavailable." {
		t.Errorf("text = %q", res.Text)
	}
}

func TestContent_WebExport(t *testing.T) {
	env := newTestEnv(t)

	expectError(t, env.do(t, http.MethodGet, "/api/v1/content/web-export", ""), http.StatusNotFound, "NOT_FOUND")

	rec := env.do(t, http.MethodPost, "/api/v1/content/web-export", `{"url":"https://example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	doc := decodeBody[service.WebDocument](t, rec)
	if doc.Title != "Export from https://example.com" || doc.Content != "generated" {
		t.Errorf("doc = %+v", doc)
	}

	last := decodeBody[service.WebDocument](t, env.do(t, http.MethodGet, "/api/v1/content/web-export", ""))
	if last.URL != "https://example.com" {
		t.Errorf("last = %+v", last)
	}
}

func TestContent_GenerationFailed(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errors.New("transport")

	expectError(t, env.do(t, http.MethodPost, "/api/v1/content/web-export", `{"url":"https://example.com"}`),
		http.StatusBadGateway, "GENERATION_FAILED")

	notes := decodeBody[notificationList](t, env.do(t, http.MethodGet, "/api/v1/notifications?since=0", ""))
	if len(notes.Items) != 1 || notes.Items[0].Kind != notify.KindContentFailed {
		t.Errorf("уведомления = %+v", notes.Items)
	}
	expectError(t, env.do(t, http.MethodGet, "/api/v1/content/web-export", ""), http.StatusNotFound, "NOT_FOUND")
}

func TestContent_NoAPIKey(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = genai.ErrNoAPIKey

	expectError(t, env.do(t, http.MethodPost, "/api/v1/content/summarize", `{"text":"abc"}`),
		http.StatusServiceUnavailable, "GENERATION_NOT_CONFIGURED")
}

func TestContent_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	big := `{"text":"` + strings.Repeat("a", 2<<20) + `"}`

	expectError(t, env.do(t, http.MethodPost, "/api/v1/content/summarize", big),
		http.StatusRequestEntityTooLarge, "REQUEST_BODY_TOO_LARGE")
}

// --- Notifications ---

func TestNotifications_Since(t *testing.T) {
	env := newTestEnv(t)
	env.bus.Publish(notify.Notification{Kind: notify.KindJobCompleted})
	env.bus.Publish(notify.Notification{Kind: notify.KindJobFailed})

	notes := decodeBody[notificationList](t, env.do(t, http.MethodGet, "/api/v1/notifications?since=1", ""))
	if len(notes.Items) != 1 || notes.Items[0].Seq != 2 || notes.LastSeq != 2 {
		t.Errorf("notes = %+v", notes)
	}

	expectError(t, env.do(t, http.MethodGet, "/api/v1/notifications?since=x", ""), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestAttachment(t *testing.T) {
	if got := attachment("a\"b\n.zip"); got != `attachment; filename="a_b_.zip"` {
		t.Errorf("attachment = %q", got)
	}
}
