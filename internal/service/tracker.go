// tracker.go — сервис заданий (Job Tracker).
//
// Оборачивает Workspace: проверка входящих файлов, запуск обработки,
// фоновый цикл тиков, история завершённых заданий и уведомления.
//
// Цикл тиков — явный отменяемый дескриптор (cancel + done), хранится
// рядом с коллекцией заданий. Цикл завершается сам, когда активных
// заданий не осталось; SwitchRoute и Close останавливают его детерминированно
// и дожидаются выхода горутины.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/cloudfile/internal/domain/model"
	"github.com/bigkaa/cloudfile/internal/domain/simulator"
	"github.com/bigkaa/cloudfile/internal/domain/workspace"
	"github.com/bigkaa/cloudfile/internal/notify"
)

// Prometheus-метрики заданий.
var (
	jobsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cf_jobs_submitted_total",
		Help: "Количество заданий, поставленных в очередь (по режиму).",
	}, []string{"mode"})

	filesRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cf_files_rejected_total",
		Help: "Количество файлов, отклонённых при добавлении.",
	})

	jobsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cf_jobs_finished_total",
		Help: "Количество заданий, завершённых обработкой (по режиму и статусу).",
	}, []string{"mode", "status"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cf_tick_duration_seconds",
		Help:    "Длительность одного тика обработки.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	tickLoopRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cf_tick_loop_running",
		Help: "Запущен ли фоновый цикл тиков (1 — да).",
	})
)

// RejectedFile — файл, не попавший в очередь.
type RejectedFile struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// SubmitResult — итог добавления пачки файлов.
type SubmitResult struct {
	Accepted []model.FileJob `json:"accepted"`
	Rejected []RejectedFile  `json:"rejected"`
}

// JobTracker — сервис заданий поверх Workspace.
type JobTracker struct {
	ws       *workspace.Workspace
	sim      simulator.Simulator
	bus      *notify.Bus
	history  *HistoryService
	interval time.Duration
	logger   *slog.Logger

	// opsMu упорядочивает Submit и SwitchRoute: маршрут не меняется посреди пачки
	opsMu sync.Mutex
	// tickMu — тики не перекрываются
	tickMu sync.Mutex

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJobTracker создаёт сервис заданий.
// interval — период тиков (CF_TICK_INTERVAL). history может быть nil.
func NewJobTracker(
	ws *workspace.Workspace,
	sim simulator.Simulator,
	bus *notify.Bus,
	history *HistoryService,
	interval time.Duration,
	logger *slog.Logger,
) *JobTracker {
	return &JobTracker{
		ws:       ws,
		sim:      sim,
		bus:      bus,
		history:  history,
		interval: interval,
		logger:   logger.With(slog.String("component", "job_tracker")),
	}
}

// Workspace возвращает состояние приложения (только для чтения из обработчиков).
func (t *JobTracker) Workspace() *workspace.Workspace {
	return t.ws
}

// Submit добавляет файлы в очередь.
// В режиме сжатия принимаются только JPEG и PNG: остальные файлы
// в очередь не попадают, и на каждый публикуется уведомление file_rejected.
func (t *JobTracker) Submit(descs []model.FileDescriptor) (SubmitResult, error) {
	t.opsMu.Lock()
	defer t.opsMu.Unlock()

	route := t.ws.Route()
	if !route.AcceptsFiles() {
		return SubmitResult{}, fmt.Errorf("%w: %s", ErrRouteNotAccepting, route)
	}
	mode := route.Mode()

	res := SubmitResult{
		Accepted: make([]model.FileJob, 0, len(descs)),
		Rejected: make([]RejectedFile, 0),
	}
	for _, d := range descs {
		if mode == model.ModeCompressor && !model.IsCompressible(d.Type) {
			reason := "Модуль сжатия поддерживает только изображения JPEG и PNG"
			res.Rejected = append(res.Rejected, RejectedFile{Name: d.Name, Type: d.Type, Reason: reason})
			filesRejectedTotal.Inc()
			t.bus.Publish(notify.Notification{
				Level:   notify.LevelWarn,
				Kind:    notify.KindFileRejected,
				Message: reason,
				Subject: d.Name,
			})
			t.logger.Debug("Файл отклонён",
				slog.String("name", d.Name),
				slog.String("type", d.Type),
			)
			continue
		}

		job := t.ws.AddJob(d)
		jobsSubmittedTotal.WithLabelValues(string(job.Mode)).Inc()
		res.Accepted = append(res.Accepted, job)
	}

	t.logger.Info("Файлы добавлены в очередь",
		slog.String("route", string(route)),
		slog.Int("accepted", len(res.Accepted)),
		slog.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// Remove удаляет задание. Отсутствующее задание — не ошибка.
func (t *JobTracker) Remove(id string) bool {
	removed := t.ws.RemoveJob(id)
	if removed {
		t.logger.Debug("Задание удалено", slog.String("job_id", id))
	}
	return removed
}

// SetTargetFormat меняет глобальный формат и переписывает его у заданий в queued.
func (t *JobTracker) SetTargetFormat(format string) (int, error) {
	if !model.IsConverterFormat(format) {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	changed := t.ws.SetTargetFormat(format)
	t.logger.Info("Целевой формат изменён",
		slog.String("format", t.ws.TargetFormat()),
		slog.Int("queued_updated", changed),
	)
	return changed, nil
}

// SwitchRoute останавливает цикл тиков, меняет маршрут и очищает коллекцию.
// Возвращает количество удалённых заданий.
func (t *JobTracker) SwitchRoute(route model.Route) int {
	t.opsMu.Lock()
	defer t.opsMu.Unlock()

	t.stopLoop()
	cleared := t.ws.SwitchRoute(route)
	t.logger.Info("Маршрут переключён",
		slog.String("route", string(route)),
		slog.Int("cleared", cleared),
	)
	return cleared
}

// StartProcessing переводит queued задания в processing и запускает
// цикл тиков, если он ещё не запущен. Возвращает количество запущенных заданий.
func (t *JobTracker) StartProcessing() int {
	started := t.ws.StartProcessing()
	if t.ws.HasActive() {
		t.ensureLoop()
	}
	t.logger.Info("Обработка запущена", slog.Int("started", started))
	return started
}

// RunTick выполняет один тик синхронно.
// Завершённые задания попадают в историю; на каждое завершение
// и каждый сбой публикуется уведомление.
func (t *JobTracker) RunTick() workspace.TickResult {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	start := time.Now()
	res := t.ws.Tick(t.sim)
	tickDuration.Observe(time.Since(start).Seconds())

	for _, j := range res.Completed {
		jobsFinishedTotal.WithLabelValues(string(j.Mode), string(j.Status)).Inc()
		if t.history != nil {
			t.history.Record(j)
		}
		t.bus.Publish(notify.Notification{
			Level:   notify.LevelInfo,
			Kind:    notify.KindJobCompleted,
			Message: fmt.Sprintf("Файл %s обработан", j.Name),
			JobID:   j.ID,
			Subject: j.Name,
		})
	}
	for _, j := range res.Failed {
		jobsFinishedTotal.WithLabelValues(string(j.Mode), string(j.Status)).Inc()
		msg := "ошибка обработки"
		if j.Error != nil {
			msg = *j.Error
		}
		t.bus.Publish(notify.Notification{
			Level:   notify.LevelError,
			Kind:    notify.KindJobFailed,
			Message: fmt.Sprintf("Файл %s: %s", j.Name, msg),
			JobID:   j.ID,
			Subject: j.Name,
		})
		t.logger.Warn("Задание завершилось ошибкой",
			slog.String("job_id", j.ID),
			slog.String("error", msg),
		)
	}
	return res
}

// Jobs возвращает снимок коллекции заданий.
func (t *JobTracker) Jobs() []model.FileJob {
	return t.ws.Jobs()
}

// Job возвращает задание по ID.
func (t *JobTracker) Job(id string) (model.FileJob, error) {
	j, ok := t.ws.Job(id)
	if !ok {
		return model.FileJob{}, ErrJobNotFound
	}
	return j, nil
}

// Running сообщает, запущен ли цикл тиков.
func (t *JobTracker) Running() bool {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	return t.done != nil
}

// Close останавливает цикл тиков и дожидается его завершения.
func (t *JobTracker) Close() {
	t.stopLoop()
}

// ensureLoop запускает цикл тиков, если он не запущен.
func (t *JobTracker) ensureLoop() {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()

	if t.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done = cancel, done
	tickLoopRunning.Set(1)

	go t.run(ctx, done)

	t.logger.Debug("Цикл тиков запущен", slog.String("interval", t.interval.String()))
}

// run — основной цикл фоновой горутины.
func (t *JobTracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if res := t.RunTick(); !res.Active && t.release(done) {
				return
			}
		}
	}
}

// release снимает дескриптор цикла, если активных заданий не осталось.
// Возвращает true, если цикл должен завершиться.
func (t *JobTracker) release(done chan struct{}) bool {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()

	// Дескриптор уже забрал stopLoop
	if t.done != done {
		return true
	}
	// Между тиком и захватом loopMu могли запустить новые задания
	if t.ws.HasActive() {
		return false
	}
	t.cancel()
	t.cancel, t.done = nil, nil
	tickLoopRunning.Set(0)
	t.logger.Debug("Цикл тиков завершён: активных заданий нет")
	return true
}

// stopLoop отменяет цикл тиков и ждёт выхода горутины.
func (t *JobTracker) stopLoop() {
	t.loopMu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.loopMu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	tickLoopRunning.Set(0)
	t.logger.Debug("Цикл тиков остановлен")
}
