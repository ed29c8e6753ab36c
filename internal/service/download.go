// download.go — синтетические результаты обработки.
// Для каждого завершённого задания — текстовая заглушка "Processed <имя>";
// пакетное скачивание — ZIP-архив из заглушек всей коллекции.
package service

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/cloudfile/internal/domain/model"
	"github.com/bigkaa/cloudfile/internal/notify"
)

// Prometheus-метрики скачиваний.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cf_downloads_total",
		Help: "Количество скачиваний результатов (file, archive).",
	}, []string{"kind"})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cf_download_bytes_total",
		Help: "Объём отданных синтетических результатов в байтах.",
	})
)

// DownloadFile — синтетический файл результата.
type DownloadFile struct {
	Name    string
	Content []byte
}

// ArchivePlan — содержимое архива, проверенное до начала записи ответа.
type ArchivePlan struct {
	Name  string
	Files []DownloadFile
}

// DownloadService — выдача синтетических результатов.
type DownloadService struct {
	tracker *JobTracker
	bus     *notify.Bus
	logger  *slog.Logger
	now     func() time.Time
}

// NewDownloadService создаёт сервис скачивания.
func NewDownloadService(tracker *JobTracker, bus *notify.Bus, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		tracker: tracker,
		bus:     bus,
		logger:  logger.With(slog.String("component", "download")),
		now:     time.Now,
	}
}

// File возвращает результат одного задания.
// Доступен только для заданий в статусе completed.
func (d *DownloadService) File(id string) (DownloadFile, error) {
	job, err := d.tracker.Job(id)
	if err != nil {
		return DownloadFile{}, err
	}
	switch {
	case !job.IsTerminal():
		return DownloadFile{}, fmt.Errorf("%w: %s ещё обрабатывается (%s)", ErrJobNotReady, job.Name, job.Status)
	case job.Status != model.StatusCompleted:
		return DownloadFile{}, fmt.Errorf("%w: %s завершилось ошибкой", ErrJobNotReady, job.Name)
	}

	f := placeholder(job)
	downloadsTotal.WithLabelValues("file").Inc()
	downloadBytesTotal.Add(float64(len(f.Content)))
	return f, nil
}

// PrepareArchive собирает план архива.
// Архив доступен, когда коллекция непуста и все задания завершены.
func (d *DownloadService) PrepareArchive() (*ArchivePlan, error) {
	route, jobs := d.tracker.Workspace().Snapshot()
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: нет заданий", ErrJobNotReady)
	}

	files := make([]DownloadFile, 0, len(jobs))
	seen := make(map[string]int, len(jobs))
	for _, j := range jobs {
		if j.Status != model.StatusCompleted {
			return nil, fmt.Errorf("%w: %s в статусе %s", ErrJobNotReady, j.Name, j.Status)
		}
		f := placeholder(j)
		f.Name = uniqueName(f.Name, seen)
		files = append(files, f)
	}

	label := "converted_files"
	if route.Mode() == model.ModeCompressor {
		label = "optimized_images"
	}

	return &ArchivePlan{
		Name:  "cloudfile_pro_" + label + "_" + strconv.FormatInt(d.now().UnixMilli(), 10) + ".zip",
		Files: files,
	}, nil
}

// WriteArchive пишет ZIP-архив в w потоково.
func (d *DownloadService) WriteArchive(w io.Writer, plan *ArchivePlan) error {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, f := range plan.Files {
		fw, err := zw.Create(f.Name)
		if err != nil {
			return fmt.Errorf("zip: создание записи %s: %w", f.Name, err)
		}
		if _, err := fw.Write(f.Content); err != nil {
			return fmt.Errorf("zip: запись %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip: завершение архива: %w", err)
	}

	downloadsTotal.WithLabelValues("archive").Inc()
	downloadBytesTotal.Add(float64(cw.n))
	d.bus.Publish(notify.Notification{
		Level:   notify.LevelInfo,
		Kind:    notify.KindArchiveReady,
		Message: fmt.Sprintf("ZIP-архив подготовлен: %d файлов", len(plan.Files)),
		Subject: plan.Name,
	})
	d.logger.Info("ZIP-архив отдан",
		slog.String("name", plan.Name),
		slog.Int("files", len(plan.Files)),
		slog.Int64("bytes", cw.n),
	)
	return nil
}

// placeholder строит текстовую заглушку результата задания.
func placeholder(job model.FileJob) DownloadFile {
	return DownloadFile{
		Name:    job.DownloadName(),
		Content: []byte("Processed " + job.Name),
	}
}

// uniqueName добавляет суффикс " (N)" к повторяющимся именам.
func uniqueName(name string, seen map[string]int) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s (%d)", name, n+1)
}

// countingWriter считает записанные байты.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
