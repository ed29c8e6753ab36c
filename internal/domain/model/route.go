package model

import "fmt"

// Route — активный модуль (экран) приложения.
type Route string

const (
	RouteDashboard  Route = "dashboard"
	RouteConverter  Route = "converter"
	RouteCompressor Route = "compressor"
	RouteTools      Route = "tools"
	RouteURLToPDF   Route = "url-to-pdf"
	RouteHistory    Route = "history"
	RouteSettings   Route = "settings"
)

// Mode возвращает инструмент, соответствующий маршруту.
// Все маршруты, кроме compressor, работают по правилам конвертера.
func (r Route) Mode() Mode {
	if r == RouteCompressor {
		return ModeCompressor
	}
	return ModeConverter
}

// AcceptsFiles сообщает, можно ли добавлять файлы в очередь на этом маршруте.
func (r Route) AcceptsFiles() bool {
	return r == RouteConverter || r == RouteCompressor
}

// ParseRoute преобразует строку в Route.
func ParseRoute(s string) (Route, error) {
	r := Route(s)
	switch r {
	case RouteDashboard, RouteConverter, RouteCompressor, RouteTools,
		RouteURLToPDF, RouteHistory, RouteSettings:
		return r, nil
	default:
		return "", fmt.Errorf("недопустимый маршрут: %q, допустимые: dashboard, converter, compressor, tools, url-to-pdf, history, settings", s)
	}
}
