package service

import (
	"sort"
	"strings"
)

// GenAIReadiness — проверка готовности сервиса генерации текста для /health/ready.
// Без API-ключа или при недоступности по данным dephealth — degraded:
// очередь заданий работает, недоступна только генерация контента.
type GenAIReadiness struct {
	apiKeySet bool
	dh        *DephealthService
}

// NewGenAIReadiness создаёт проверку. dh может быть nil (мониторинг выключен).
func NewGenAIReadiness(apiKeySet bool, dh *DephealthService) *GenAIReadiness {
	return &GenAIReadiness{apiKeySet: apiKeySet, dh: dh}
}

// CheckReady возвращает статус ("ok", "degraded") и сообщение.
func (g *GenAIReadiness) CheckReady() (status, message string) {
	if !g.apiKeySet {
		return "degraded", "не задан CF_GENAI_API_KEY"
	}
	if g.dh == nil {
		return "ok", "мониторинг зависимостей выключен"
	}

	var down []string
	for key, healthy := range g.dh.Health() {
		if !healthy {
			down = append(down, key)
		}
	}
	if len(down) > 0 {
		sort.Strings(down)
		return "degraded", "недоступно: " + strings.Join(down, ", ")
	}
	return "ok", ""
}
