// Пакет model — доменные модели CloudFile.
// FileJob — одно задание симулированной конвертации или сжатия файла.
package model

import (
	"path"
	"strings"
	"time"
)

// FileStatus — статус задания.
type FileStatus string

const (
	StatusQueued     FileStatus = "queued"
	StatusProcessing FileStatus = "processing"
	StatusCompleted  FileStatus = "completed"
	// StatusError выставляется симулятором при смоделированном сбое.
	StatusError FileStatus = "error"
)

// Mode — инструмент, определяющий целевой формат по умолчанию
// и синтез размера результата.
type Mode string

const (
	ModeConverter  Mode = "converter"
	ModeCompressor Mode = "compressor"
)

// FileDescriptor — описание файла, выбранного пользователем.
type FileDescriptor struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Extension возвращает часть имени после последней точки (без точки).
// Для имени без точки возвращается пустая строка.
func (d FileDescriptor) Extension() string {
	ext := path.Ext(d.Name)
	return strings.TrimPrefix(ext, ".")
}

// FileJob — задание над одним файлом.
type FileJob struct {
	// ID — UUID задания, стабилен на всё время жизни
	ID string `json:"id"`
	// Name — отображаемое имя файла
	Name string `json:"name"`
	// Size — размер исходного файла в байтах
	Size int64 `json:"size"`
	// Type — MIME-тип
	Type string `json:"type"`
	// Extension — расширение исходного файла (как в имени)
	Extension string `json:"extension"`
	// TargetFormat — целевой формат (верхний регистр)
	TargetFormat string `json:"targetFormat"`
	// Status — текущий статус задания
	Status FileStatus `json:"status"`
	// Progress — 0..100, не убывает пока задание в processing
	Progress int `json:"progress"`
	// OutputRef — ссылка на результат, задаётся при completed
	OutputRef *string `json:"outputUrl,omitempty"`
	// OutputSize — размер результата, только для completed в режиме compressor
	OutputSize *int64 `json:"outputSize,omitempty"`
	// Error — сообщение об ошибке для status=error
	Error *string `json:"error,omitempty"`
	// Mode — инструмент, в котором создано задание
	Mode        Mode       `json:"mode"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// IsActive сообщает, что задание ещё продвигается тиками.
func (j *FileJob) IsActive() bool {
	return j.Status == StatusProcessing && j.Progress < 100
}

// IsTerminal сообщает, что задание больше не изменится.
func (j *FileJob) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}

// BaseName возвращает имя файла без последнего расширения.
func (j *FileJob) BaseName() string {
	ext := path.Ext(j.Name)
	if ext == "" || ext == j.Name {
		return j.Name
	}
	return strings.TrimSuffix(j.Name, ext)
}

// DownloadName — имя синтетического файла результата:
// <имя>_optimized.<ext> для сжатия, <имя>.<формат> для конвертации.
// Имя без расширения в режиме сжатия точки не получает.
func (j *FileJob) DownloadName() string {
	if j.Mode == ModeCompressor {
		if j.Extension == "" {
			return j.BaseName() + "_optimized"
		}
		return j.BaseName() + "_optimized." + j.Extension
	}
	return j.BaseName() + "." + strings.ToLower(j.TargetFormat)
}
