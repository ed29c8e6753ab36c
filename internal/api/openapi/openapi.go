// Пакет openapi — встроенный OpenAPI-контракт CloudFile API.
// Контракт загружается и валидируется kin-openapi при старте,
// отдаётся клиентам в JSON на /api/v1/openapi.json.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

// Spec — загруженный контракт и его JSON-представление.
type Spec struct {
	Doc  *openapi3.T
	JSON []byte
}

// GetSwagger загружает встроенный контракт без валидации.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI-контракта: %w", err)
	}
	return doc, nil
}

// Load загружает и валидирует контракт, готовит JSON для отдачи.
func Load(ctx context.Context) (*Spec, error) {
	doc, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI-контракта: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("сериализация OpenAPI-контракта: %w", err)
	}
	return &Spec{Doc: doc, JSON: data}, nil
}

// Operations возвращает пары "МЕТОД путь" для всех операций контракта.
func (s *Spec) Operations() []string {
	ops := make([]string, 0)
	for path, item := range s.Doc.Paths.Map() {
		for method := range item.Operations() {
			ops = append(ops, method+" "+path)
		}
	}
	return ops
}
