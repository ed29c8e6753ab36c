// Пакет workspace — состояние приложения CloudFile: активный маршрут,
// глобальный целевой формат и коллекция заданий.
//
// Все изменения выполняются через методы Workspace (набор действий).
// Каждое действие заменяет срез заданий целиком (copy-on-write), поэтому
// читатель Jobs() никогда не видит частично применённый тик.
//
// Жизненный цикл задания: queued → processing → completed | error.
// Инварианты:
//   - 0 <= progress <= 100, в processing прогресс не убывает;
//   - progress == 100 тогда и только тогда, когда status == completed;
//   - outputSize задан только у completed заданий режима compressor.
//
// Потокобезопасен через sync.RWMutex.
package workspace

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/cloudfile/internal/domain/model"
	"github.com/bigkaa/cloudfile/internal/domain/simulator"
)

// RefFunc строит ссылку на результат завершённого задания.
type RefFunc func(job model.FileJob) string

// TickResult — итог одного тика.
type TickResult struct {
	// Advanced — сколько заданий продвинулось (включая завершённые)
	Advanced int
	// Completed — задания, завершённые на этом тике
	Completed []model.FileJob
	// Failed — задания, упавшие на этом тике
	Failed []model.FileJob
	// Active — остались ли задания в processing с прогрессом < 100
	Active bool
}

// Summary — сводка по коллекции заданий.
type Summary struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"error"`
}

// Workspace — единственный владелец коллекции заданий.
type Workspace struct {
	mu           sync.RWMutex
	route        model.Route
	targetFormat string
	jobs         []model.FileJob
	outputRef    RefFunc
	now          func() time.Time
}

// New создаёт состояние на маршруте dashboard с пустой коллекцией.
// outputRef может быть nil — тогда ссылкой служит маркер "#".
func New(defaultTargetFormat string, outputRef RefFunc) *Workspace {
	if outputRef == nil {
		outputRef = func(model.FileJob) string { return "#" }
	}
	return &Workspace{
		route:        model.RouteDashboard,
		targetFormat: strings.ToUpper(defaultTargetFormat),
		jobs:         []model.FileJob{},
		outputRef:    outputRef,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Route возвращает активный маршрут.
func (w *Workspace) Route() model.Route {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.route
}

// TargetFormat возвращает глобальный целевой формат конвертера.
func (w *Workspace) TargetFormat() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.targetFormat
}

// Jobs возвращает снимок коллекции (новые задания первыми).
func (w *Workspace) Jobs() []model.FileJob {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]model.FileJob, len(w.jobs))
	copy(out, w.jobs)
	return out
}

// Snapshot возвращает маршрут и копию коллекции, снятые под одной блокировкой:
// смена маршрута не может попасть между ними.
func (w *Workspace) Snapshot() (model.Route, []model.FileJob) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]model.FileJob, len(w.jobs))
	copy(out, w.jobs)
	return w.route, out
}

// Job возвращает копию задания по ID.
func (w *Workspace) Job(id string) (model.FileJob, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, j := range w.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return model.FileJob{}, false
}

// HasActive сообщает, есть ли задания в processing с прогрессом < 100.
func (w *Workspace) HasActive() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return hasActive(w.jobs)
}

// Summary возвращает количество заданий по статусам.
func (w *Workspace) Summary() Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Summary{Total: len(w.jobs)}
	for _, j := range w.jobs {
		switch j.Status {
		case model.StatusQueued:
			s.Queued++
		case model.StatusProcessing:
			s.Processing++
		case model.StatusCompleted:
			s.Completed++
		case model.StatusError:
			s.Failed++
		}
	}
	return s
}

// AddJob создаёт задание в статусе queued и вставляет его в начало коллекции.
// Всегда успешен: проверка типа файла — забота вызывающего.
func (w *Workspace) AddJob(desc model.FileDescriptor) model.FileJob {
	w.mu.Lock()
	defer w.mu.Unlock()

	ext := desc.Extension()
	mode := w.route.Mode()

	target := w.targetFormat
	if mode == model.ModeCompressor {
		target = strings.ToUpper(ext)
	}

	job := model.FileJob{
		ID:           uuid.NewString(),
		Name:         desc.Name,
		Size:         desc.Size,
		Type:         desc.Type,
		Extension:    ext,
		TargetFormat: target,
		Status:       model.StatusQueued,
		Progress:     0,
		Mode:         mode,
		CreatedAt:    w.now(),
	}

	next := make([]model.FileJob, 0, len(w.jobs)+1)
	next = append(next, job)
	next = append(next, w.jobs...)
	w.jobs = next

	return job
}

// RemoveJob удаляет задание. Возвращает false, если задания не было.
func (w *Workspace) RemoveJob(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := make([]model.FileJob, 0, len(w.jobs))
	for _, j := range w.jobs {
		if j.ID != id {
			next = append(next, j)
		}
	}
	if len(next) == len(w.jobs) {
		return false
	}
	w.jobs = next
	return true
}

// SetTargetFormat меняет глобальный формат и переписывает TargetFormat
// у всех заданий в queued. Задания в других статусах не трогаются.
// Возвращает количество изменённых заданий.
func (w *Workspace) SetTargetFormat(format string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	format = strings.ToUpper(format)
	w.targetFormat = format

	changed := 0
	next := make([]model.FileJob, len(w.jobs))
	for i, j := range w.jobs {
		if j.Status == model.StatusQueued {
			j.TargetFormat = format
			changed++
		}
		next[i] = j
	}
	w.jobs = next
	return changed
}

// StartProcessing переводит все queued задания в processing.
// Возвращает количество переведённых заданий.
func (w *Workspace) StartProcessing() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := 0
	next := make([]model.FileJob, len(w.jobs))
	for i, j := range w.jobs {
		if j.Status == model.StatusQueued {
			j.Status = model.StatusProcessing
			started++
		}
		next[i] = j
	}
	w.jobs = next
	return started
}

// SwitchRoute меняет активный маршрут и безусловно очищает коллекцию,
// независимо от статусов заданий. Возвращает количество удалённых заданий.
func (w *Workspace) SwitchRoute(route model.Route) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cleared := len(w.jobs)
	w.route = route
	w.jobs = []model.FileJob{}
	return cleared
}

// Tick продвигает все активные задания на один шаг симулятора.
//
// Для каждого задания в processing с прогрессом < 100:
//   - сбой симулятора → status=error, прогресс не меняется;
//   - иначе progress = min(100, progress+increment);
//   - при 100 → completed, задаётся OutputRef, для compressor — OutputSize.
func (w *Workspace) Tick(sim simulator.Simulator) TickResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	var res TickResult
	next := make([]model.FileJob, len(w.jobs))
	for i, j := range w.jobs {
		if j.IsActive() {
			j = w.advance(j, sim, &res)
		}
		next[i] = j
	}
	w.jobs = next
	res.Active = hasActive(next)
	return res
}

// advance применяет один шаг к заданию. Вызывается под w.mu.
func (w *Workspace) advance(j model.FileJob, sim simulator.Simulator, res *TickResult) model.FileJob {
	step := sim.Advance(j)
	if step.Err != nil {
		msg := step.Err.Error()
		j.Status = model.StatusError
		j.Error = &msg
		res.Failed = append(res.Failed, j)
		return j
	}

	// Шаг не меньше 1, иначе задание навсегда останется в processing
	inc := max(step.Increment, 1)
	j.Progress = min(100, j.Progress+inc)
	res.Advanced++

	if j.Progress == 100 {
		now := w.now()
		ref := w.outputRef(j)
		j.Status = model.StatusCompleted
		j.OutputRef = &ref
		j.CompletedAt = &now
		if j.Mode == model.ModeCompressor {
			size := sim.OutputSize(j)
			j.OutputSize = &size
		}
		res.Completed = append(res.Completed, j)
	}
	return j
}

func hasActive(jobs []model.FileJob) bool {
	for i := range jobs {
		if jobs[i].IsActive() {
			return true
		}
	}
	return false
}
