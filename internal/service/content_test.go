package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/cloudfile/internal/genai"
	"github.com/bigkaa/cloudfile/internal/notify"
)

// mockGenerator — mock сервиса генерации.
type mockGenerator struct {
	mu        sync.Mutex
	calls     []genai.Request
	text      string
	err       error
	block     chan struct{} // если задан, вызов ждёт закрытия канала
	entered   chan struct{} // сигнал о входе в вызов
	onceEnter sync.Once
}

func (m *mockGenerator) GenerateContent(ctx context.Context, req genai.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.entered != nil {
		m.onceEnter.Do(func() { close(m.entered) })
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.text, m.err
}

func (m *mockGenerator) lastCall(t *testing.T) genai.Request {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		t.Fatal("сервис генерации не вызывался")
	}
	return m.calls[len(m.calls)-1]
}

func newTestContent(gen Generator) (*ContentService, *notify.Bus) {
	bus := notify.NewBus(10)
	return NewContentService(gen, bus, testLogger()), bus
}

func TestPerformOCR(t *testing.T) {
	gen := &mockGenerator{text: "Hello world"}
	svc, _ := newTestContent(gen)

	text, err := svc.PerformOCR(context.Background(), "aGVsbG8=", "image/png")
	if err != nil {
		t.Fatalf("PerformOCR: неожиданная ошибка: %v", err)
	}
	if text != "Hello world" {
		t.Errorf("text = %q", text)
	}

	req := gen.lastCall(t)
	if req.InlineData == nil || req.InlineData.MIMEType != "image/png" || req.InlineData.Data != "aGVsbG8=" {
		t.Errorf("inlineData = %+v", req.InlineData)
	}
	if !strings.HasPrefix(req.Prompt, "Perform high-accuracy OCR") {
		t.Errorf("prompt = %q", req.Prompt)
	}
}

func TestContent_Fallbacks(t *testing.T) {
	gen := &mockGenerator{text: ""}
	svc, _ := newTestContent(gen)
	ctx := context.Background()

	if text, _ := svc.PerformOCR(ctx, "aGVsbG8=", "image/jpeg"); text != "No text extracted." {
		t.Errorf("OCR fallback = %q", text)
	}
	if text, _ := svc.SummarizeDocument(ctx, "some text"); text != "Summary unavailable." {
		t.Errorf("summary fallback = %q", text)
	}
	doc, err := svc.FetchWebsiteContent(ctx, "https://example.com")
	if err != nil {
		t.Fatalf("FetchWebsiteContent: неожиданная ошибка: %v", err)
	}
	if doc.Content != "Content could not be fetched." {
		t.Errorf("web fallback = %q", doc.Content)
	}
	if doc.Title != "Export from https://example.com" {
		t.Errorf("title = %q", doc.Title)
	}
}

func TestSummarizeDocument_Prompt(t *testing.T) {
	gen := &mockGenerator{text: "Short."}
	svc, _ := newTestContent(gen)

	if _, err := svc.SummarizeDocument(context.Background(), "Long text"); err != nil {
		t.Fatalf("SummarizeDocument: неожиданная ошибка: %v", err)
	}
	want := "Summarize the following text briefly and professionally:\n\nLong text"
	if got := gen.lastCall(t).Prompt; got != want {
		t.Errorf("prompt = %q, ожидался %q", got, want)
	}
}

func TestContent_InvalidInput(t *testing.T) {
	gen := &mockGenerator{text: "x"}
	svc, bus := newTestContent(gen)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"OCR пустые данные", func() error { _, err := svc.PerformOCR(ctx, "", "image/png"); return err }},
		{"OCR не base64", func() error { _, err := svc.PerformOCR(ctx, "!!!", "image/png"); return err }},
		{"OCR не изображение", func() error { _, err := svc.PerformOCR(ctx, "aGVsbG8=", "text/plain"); return err }},
		{"пустой текст", func() error { _, err := svc.SummarizeDocument(ctx, "  "); return err }},
		{"URL без схемы", func() error { _, err := svc.FetchWebsiteContent(ctx, "example.com"); return err }},
		{"URL ftp", func() error { _, err := svc.FetchWebsiteContent(ctx, "ftp://example.com"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ошибка = %v, ожидалась ErrInvalidInput", err)
			}
		})
	}

	if len(gen.calls) != 0 {
		t.Errorf("сервис генерации вызван %d раз при некорректных данных", len(gen.calls))
	}
	if len(published(bus)) != 0 {
		t.Error("опубликованы уведомления при ошибке валидации")
	}
}

// TestFetchWebsiteContent_TransportFailure — сбой транспорта даёт ровно одно
// уведомление, а результат экспорта остаётся незаданным.
func TestFetchWebsiteContent_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	client := genai.New(baseURL, "test-model", "test-key", time.Second, testLogger())
	svc, bus := newTestContent(client)

	doc, err := svc.FetchWebsiteContent(context.Background(), "https://example.com")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("ошибка = %v, ожидалась ErrGenerationFailed", err)
	}
	if doc != nil {
		t.Errorf("doc = %+v, ожидался nil", doc)
	}

	items := published(bus)
	if len(items) != 1 || items[0].Kind != notify.KindContentFailed {
		t.Fatalf("уведомления = %+v, ожидалось одно content_failed", items)
	}
	if _, ok := svc.LastWebExport(); ok {
		t.Error("последний экспорт задан после сбоя")
	}
	if svc.Busy()[opWebExport] {
		t.Error("флаг занятости не снят после сбоя")
	}
}

// TestFetchWebsiteContent_KeepsPrevious — сбой не затирает прошлый результат.
func TestFetchWebsiteContent_KeepsPrevious(t *testing.T) {
	gen := &mockGenerator{text: "# Example"}
	svc, _ := newTestContent(gen)
	ctx := context.Background()

	if _, err := svc.FetchWebsiteContent(ctx, "https://example.com"); err != nil {
		t.Fatalf("FetchWebsiteContent: %v", err)
	}

	gen.err = errors.New("503")
	if _, err := svc.FetchWebsiteContent(ctx, "https://other.example"); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("ошибка = %v, ожидалась ErrGenerationFailed", err)
	}

	last, ok := svc.LastWebExport()
	if !ok || last.URL != "https://example.com" || last.Content != "# Example" {
		t.Errorf("last = %+v, ok = %v", last, ok)
	}
}

func TestSummarizeDocument_Busy(t *testing.T) {
	gen := &mockGenerator{
		text:    "ok",
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	svc, _ := newTestContent(gen)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.SummarizeDocument(context.Background(), "first")
		errCh <- err
	}()
	<-gen.entered

	if _, err := svc.SummarizeDocument(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("ошибка = %v, ожидалась ErrBusy", err)
	}
	// Другая операция не блокируется
	if !svc.Busy()[opSummarize] || svc.Busy()[opOCR] {
		t.Errorf("busy = %v", svc.Busy())
	}

	close(gen.block)
	if err := <-errCh; err != nil {
		t.Errorf("первый вызов: неожиданная ошибка: %v", err)
	}
	if svc.Busy()[opSummarize] {
		t.Error("флаг занятости не снят")
	}
}
