package model

import (
	"slices"
	"strings"
)

// ConverterFormats — целевые форматы конвертера в порядке отображения.
var ConverterFormats = []string{"PDF", "WEBP", "DOCX", "JPG", "PNG", "MP4"}

// CompressorTypes — MIME-типы, принимаемые модулем сжатия.
var CompressorTypes = []string{"image/jpeg", "image/jpg", "image/png"}

// IsConverterFormat проверяет формат без учёта регистра.
func IsConverterFormat(format string) bool {
	return slices.Contains(ConverterFormats, strings.ToUpper(format))
}

// IsCompressible сообщает, принимает ли модуль сжатия файл с данным MIME-типом.
func IsCompressible(mimeType string) bool {
	return slices.Contains(CompressorTypes, strings.ToLower(mimeType))
}
