package service

import "testing"

func TestGenAIReadiness(t *testing.T) {
	tests := []struct {
		name      string
		apiKeySet bool
		want      string
	}{
		{"без ключа", false, "degraded"},
		{"с ключом без мониторинга", true, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := NewGenAIReadiness(tt.apiKeySet, nil).CheckReady()
			if status != tt.want {
				t.Errorf("status = %q (%s), ожидался %q", status, msg, tt.want)
			}
		})
	}
}
