// Пакет service — бизнес-логика CloudFile.
// HistoryService — история завершённых заданий для экрана history.
// Обёртка над hashicorp/golang-lru/v2/expirable: ограничена по размеру и TTL,
// в памяти процесса (без долговременного хранения).
package service

import (
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/cloudfile/internal/domain/model"
)

var historyEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cf_history_entries",
	Help: "Количество заданий в истории.",
})

// HistoryService — LRU-история завершённых заданий с автоматическим TTL.
type HistoryService struct {
	cache *expirable.LRU[string, model.FileJob]
}

// NewHistoryService создаёт историю на maxSize записей с временем жизни ttl.
// maxSize <= 0 — без ограничения по размеру, ttl <= 0 — без истечения.
func NewHistoryService(maxSize int, ttl time.Duration) *HistoryService {
	return &HistoryService{
		cache: expirable.NewLRU[string, model.FileJob](maxSize, nil, ttl),
	}
}

// Record добавляет завершённое задание в историю.
func (h *HistoryService) Record(job model.FileJob) {
	h.cache.Add(job.ID, job)
	historyEntries.Set(float64(h.cache.Len()))
}

// List возвращает задания из истории, последние завершённые — первыми.
func (h *HistoryService) List() []model.FileJob {
	// Values() оставляет нулевые значения на месте истёкших, ещё не вычищенных
	// записей, поэтому список собирается по живым ключам.
	keys := h.cache.Keys()
	jobs := make([]model.FileJob, 0, len(keys))
	for _, k := range keys {
		if job, ok := h.cache.Peek(k); ok {
			jobs = append(jobs, job)
		}
	}
	slices.SortStableFunc(jobs, func(a, b model.FileJob) int {
		return completedAt(b).Compare(completedAt(a))
	})
	historyEntries.Set(float64(len(jobs)))
	return jobs
}

// Len возвращает количество записей в истории.
func (h *HistoryService) Len() int {
	return h.cache.Len()
}

func completedAt(j model.FileJob) time.Time {
	if j.CompletedAt != nil {
		return *j.CompletedAt
	}
	return j.CreatedAt
}
