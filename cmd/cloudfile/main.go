// main.go — точка входа CloudFile.
// Очередь заданий, генерация контента и скачивание результатов в одном процессе.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/bigkaa/cloudfile/internal/api/handlers"
	"github.com/bigkaa/cloudfile/internal/api/middleware"
	"github.com/bigkaa/cloudfile/internal/api/openapi"
	"github.com/bigkaa/cloudfile/internal/config"
	"github.com/bigkaa/cloudfile/internal/domain/model"
	"github.com/bigkaa/cloudfile/internal/domain/simulator"
	"github.com/bigkaa/cloudfile/internal/domain/workspace"
	"github.com/bigkaa/cloudfile/internal/genai"
	"github.com/bigkaa/cloudfile/internal/notify"
	"github.com/bigkaa/cloudfile/internal/server"
	"github.com/bigkaa/cloudfile/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("CloudFile запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	ctx := context.Background()

	// 3. Симулятор обработки
	sim, err := simulator.NewRandom(simulator.Options{
		MinStep:     cfg.ProgressMinStep,
		MaxStep:     cfg.ProgressMaxStep,
		Ratio:       cfg.CompressionRatio,
		Jitter:      cfg.CompressionJitter,
		FailureRate: cfg.FailureRate,
	})
	if err != nil {
		logger.Error("Некорректные параметры симуляции", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Рабочее пространство: ссылка на результат — endpoint скачивания
	ws := workspace.New(cfg.DefaultTargetFormat, func(j model.FileJob) string {
		return "/api/v1/jobs/" + j.ID + "/download"
	})

	// 5. Уведомления и история
	bus := notify.NewBus(cfg.NotifyBuffer)
	history := service.NewHistoryService(cfg.HistorySize, cfg.HistoryTTL)

	// 6. Очередь заданий с циклом тиков
	tracker := service.NewJobTracker(ws, sim, bus, history, cfg.TickInterval, logger)

	// 7. Клиент сервиса генерации и сервисы контента/скачивания
	genClient := genai.New(cfg.GenAIURL, cfg.GenAIModel, cfg.GenAIAPIKey, cfg.GenAITimeout, logger)
	contentSvc := service.NewContentService(genClient, bus, logger)
	downloadSvc := service.NewDownloadService(tracker, bus, logger)

	if cfg.GenAIAPIKey == "" {
		logger.Warn("CF_GENAI_API_KEY не задан, генерация контента недоступна")
	} else {
		logger.Info("Сервис генерации текста настроен",
			slog.String("url", cfg.GenAIURL),
			slog.String("model", genClient.Model()),
		)
	}

	// 8. OpenAPI контракт
	spec, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Некорректный OpenAPI контракт", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. topologymetrics — мониторинг сервиса генерации (опционально)
	var dephealthSvc *service.DephealthService
	if cfg.DephealthEnabled {
		svc, dhErr := service.NewDephealthService(
			"cloudfile",
			cfg.DephealthGroup,
			cfg.GenAIURL,
			cfg.DephealthGenAIPath,
			cfg.DephealthCheckInterval,
			logger,
		)
		if dhErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := svc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			dephealthSvc = svc
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. Health handler
	healthHandler := handlers.NewHealthHandler(map[string]handlers.ReadinessChecker{
		"genai": service.NewGenAIReadiness(cfg.GenAIAPIKey != "", dephealthSvc),
	})

	// 11. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		tracker,
		contentSvc,
		history,
		downloadSvc,
		bus,
		spec,
		logger,
	)

	// 12. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler,
		middleware.MaxBodySize(cfg.MaxRequestBody),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 13. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	tracker.Close()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("CloudFile остановлен")
}
