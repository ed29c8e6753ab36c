package service

import "errors"

// Ошибки бизнес-логики. Обработчики HTTP сопоставляют их с кодами ответа через errors.Is.
var (
	// ErrRouteNotAccepting — активный маршрут не принимает файлы.
	ErrRouteNotAccepting = errors.New("активный маршрут не принимает файлы")
	// ErrUnsupportedFormat — целевой формат отсутствует в каталоге конвертера.
	ErrUnsupportedFormat = errors.New("неподдерживаемый целевой формат")
	// ErrJobNotFound — задание не найдено в коллекции.
	ErrJobNotFound = errors.New("задание не найдено")
	// ErrJobNotReady — задание (или коллекция) ещё не завершено.
	ErrJobNotReady = errors.New("задание ещё не завершено")

	// ErrInvalidInput — некорректные входные данные для сервиса генерации.
	ErrInvalidInput = errors.New("некорректные входные данные")
	// ErrBusy — такая же операция генерации уже выполняется.
	ErrBusy = errors.New("операция уже выполняется")
	// ErrGenerationFailed — сбой вызова сервиса генерации текста.
	ErrGenerationFailed = errors.New("сбой сервиса генерации текста")
)
