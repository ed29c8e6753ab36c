// Пакет notify — канал уведомлений для слоя представления.
//
// Заменяет блокирующие диалоги: ядро публикует структурированные
// уведомления, UI забирает их инкрементально через Poll(seq).
package notify

import (
	"sync"
	"time"
)

// Level — важность уведомления.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Kind — категория уведомления.
type Kind string

const (
	// KindFileRejected — файл не прошёл проверку и не попал в очередь
	KindFileRejected Kind = "file_rejected"
	// KindContentFailed — сбой вызова сервиса генерации текста
	KindContentFailed Kind = "content_failed"
	KindJobCompleted  Kind = "job_completed"
	KindJobFailed     Kind = "job_failed"
	// KindArchiveReady — подготовлен архив для пакетного скачивания
	KindArchiveReady Kind = "archive_ready"
)

// Notification — одно уведомление с порядковым номером.
type Notification struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	JobID     string    `json:"jobId,omitempty"`
	Subject   string    `json:"subject,omitempty"`
}

// Bus хранит последние уведомления в ограниченном буфере.
type Bus struct {
	mu      sync.RWMutex
	nextSeq int64
	max     int
	items   []Notification
}

// NewBus создаёт буфер на maxItems уведомлений (по умолчанию 500).
func NewBus(maxItems int) *Bus {
	if maxItems <= 0 {
		maxItems = 500
	}
	return &Bus{
		max:   maxItems,
		items: make([]Notification, 0, maxItems),
	}
}

// Publish добавляет уведомление, присваивая номер и время.
func (b *Bus) Publish(n Notification) Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	n.Seq = b.nextSeq
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	b.items = append(b.items, n)
	if len(b.items) > b.max {
		trim := len(b.items) - b.max
		b.items = append([]Notification(nil), b.items[trim:]...)
	}
	return n
}

// Poll возвращает уведомления новее seq и номер последнего уведомления,
// снятые атомарно: следующий опрос с этим номером ничего не пропустит.
func (b *Bus) Poll(seq int64) ([]Notification, int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Notification, 0)
	for _, n := range b.items {
		if n.Seq > seq {
			out = append(out, n)
		}
	}
	return out, b.nextSeq
}
