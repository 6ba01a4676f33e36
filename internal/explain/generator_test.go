package explain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

func testAlert() *models.Alert {
	return &models.Alert{
		ID:          "alert-1",
		AnomalyType: models.AnomalyTachycardia,
		Severity:    models.SeverityCritical,
		Message:     "Heart rate 185 BPM exceeds critical threshold 180",
		RiskScore:   0.78,
	}
}

func TestHTTPGenerator_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.SystemPrompt)
		assert.NotEmpty(t, req.UserPrompt)

		json.NewEncoder(w).Encode(Result{
			Content: "Your heart is beating much faster than normal.",
			Success: true,
		})
	}))
	defer server.Close()

	generator := NewHTTPGenerator(server.URL, 2*time.Second, 0.3, 160, zap.NewNop())

	text := Explain(context.Background(), generator, 2*time.Second, testAlert(), zap.NewNop())
	assert.Equal(t, "Your heart is beating much faster than normal.", text)
}

func TestExplain_NilGeneratorUsesFallback(t *testing.T) {
	text := Explain(context.Background(), nil, 2*time.Second, testAlert(), zap.NewNop())
	assert.Equal(t, FallbackText(models.AnomalyTachycardia, models.SeverityCritical), text)
	assert.NotEmpty(t, text)
}

func TestExplain_SlowGeneratorDegradesToFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(Result{Content: "too late", Success: true})
	}))
	defer server.Close()

	generator := NewHTTPGenerator(server.URL, 5*time.Second, 0.3, 160, zap.NewNop())

	start := time.Now()
	text := Explain(context.Background(), generator, 50*time.Millisecond, testAlert(), zap.NewNop())
	elapsed := time.Since(start)

	assert.Equal(t, FallbackText(models.AnomalyTachycardia, models.SeverityCritical), text)
	assert.Less(t, elapsed, 250*time.Millisecond)
}

func TestExplain_ErroringGeneratorDegradesToFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"unsuccessful result", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(Result{Success: false, Error: "model overloaded"})
		}},
		{"empty content", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(Result{Success: true})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			generator := NewHTTPGenerator(server.URL, 2*time.Second, 0.3, 160, zap.NewNop())
			text := Explain(context.Background(), generator, 2*time.Second, testAlert(), zap.NewNop())
			assert.Equal(t, FallbackText(models.AnomalyTachycardia, models.SeverityCritical), text)
		})
	}
}

func TestFallbackText_CoversAllTypesAndTiers(t *testing.T) {
	types := []models.AnomalyType{
		models.AnomalyTachycardia,
		models.AnomalyBradycardia,
		models.AnomalyHypoxemia,
		models.AnomalyLowHRV,
		models.AnomalyHighHRV,
		models.AnomalyHRSpike,
		models.AnomalyHRDrop,
		models.AnomalyRestingTachycardia,
		models.AnomalyPattern,
	}

	for _, at := range types {
		for sev := models.SeverityInfo; sev <= models.SeverityEmergency; sev++ {
			assert.NotEmpty(t, FallbackText(at, sev), "%s/%s", at, sev)
		}
	}
}

func TestFallbackText_UrgentTierDiffers(t *testing.T) {
	warn := FallbackText(models.AnomalyHypoxemia, models.SeverityWarning)
	crit := FallbackText(models.AnomalyHypoxemia, models.SeverityCritical)
	assert.NotEqual(t, warn, crit)
}
