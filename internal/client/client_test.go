package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:              baseURL,
		UserAgent:            "test-agent",
		Referer:              "https://example.com/",
		Timeout:              2 * time.Second,
		MaxRetries:           3,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           5 * time.Millisecond,
		BackoffMultiplier:    2,
		DelayBetweenRequests: 0,
	}
}

func TestClient_ReferenceTables(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/ConsultarTabelaDeReferencia", r.URL.Path)
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		json.NewEncoder(w).Encode([]map[string]any{ //nolint:errcheck
			{"Codigo": 320, "Mes": "janeiro/2024 "},
			{"Codigo": 319, "Mes": "dezembro/2023 "},
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	rows, err := c.ReferenceTables(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 320, rows[0].Codigo)
}

func TestClient_BrandsSendsPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.EqualValues(t, 320, payload["codigoTabelaReferencia"])
		require.EqualValues(t, 1, payload["codigoTipoVeiculo"])
		json.NewEncoder(w).Encode([]map[string]string{{"Label": "FIAT", "Value": "21"}}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	rows, err := c.Brands(context.Background(), 320, fipe.VehicleTypeCar)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "FIAT", rows[0].Label)
}

func TestClient_ValueSplitsYearCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.EqualValues(t, "2024", payload["anoModelo"])
		require.EqualValues(t, 3, payload["codigoTipoCombustivel"])
		require.Equal(t, "tradicional", payload["tipoConsulta"])
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"Valor":        "R$ 50.000,00",
			"CodigoFipe":   "001004-9",
			"Combustivel":  "Gasolina",
			"Autenticacao": "tok-1",
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	row, err := c.Value(context.Background(), 320, fipe.VehicleTypeCar, 21, 123, "2024-3")
	require.NoError(t, err)
	require.Equal(t, "R$ 50.000,00", row.Valor)
	require.Equal(t, "tok-1", row.Autenticacao)
}

func TestClient_RetriesRateLimitThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	rows, err := c.Brands(context.Background(), 320, fipe.VehicleTypeCar)
	require.NoError(t, err)
	require.Empty(t, rows)
	require.EqualValues(t, 3, calls.Load())
}

func TestClient_ExhaustedRetriesSurfaceTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	_, err := c.Brands(context.Background(), 320, fipe.VehicleTypeCar)
	require.Error(t, err)
	require.True(t, fipe.IsTransient(err))
	require.EqualValues(t, 3, calls.Load())
}

func TestClient_NotFoundIsPermanentNoRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	_, err := c.Brands(context.Background(), 320, fipe.VehicleTypeCar)
	require.Error(t, err)
	require.True(t, fipe.IsPermanent(err))
	require.EqualValues(t, 1, calls.Load())
}

func TestClient_MalformedBodyIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>")) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	_, err := c.Brands(context.Background(), 320, fipe.VehicleTypeCar)
	require.Error(t, err)
	require.True(t, fipe.IsPermanent(err))
}

func TestClient_UpstreamErrorBody(t *testing.T) {
	t.Parallel()

	t.Run("throttle message is transient", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 2 {
				json.NewEncoder(w).Encode(map[string]string{"erro": "request blocked"}) //nolint:errcheck
				return
			}
			json.NewEncoder(w).Encode([]map[string]string{{"Label": "FIAT", "Value": "21"}}) //nolint:errcheck
		}))
		defer srv.Close()

		c := New(testConfig(srv.URL), zap.NewNop())
		rows, err := c.Brands(context.Background(), 320, fipe.VehicleTypeCar)
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("other message is permanent", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"erro": "parametros invalidos"}) //nolint:errcheck
		}))
		defer srv.Close()

		c := New(testConfig(srv.URL), zap.NewNop())
		_, err := c.Brands(context.Background(), 320, fipe.VehicleTypeCar)
		require.Error(t, err)
		require.True(t, fipe.IsPermanent(err))
	})
}

func TestClient_UnknownFieldsIgnored(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{ //nolint:errcheck
			{"Label": "FIAT", "Value": "21", "NovoCampo": true},
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	rows, err := c.Brands(context.Background(), 320, fipe.VehicleTypeCar)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	t.Parallel()

	// A two-byte rune straddling the limit is dropped whole, never split.
	body := []byte(strings.Repeat("a", 199) + "é")
	got := truncate(body, 200)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, strings.Repeat("a", 199), got)

	require.Equal(t, "ok", truncate([]byte("ok"), 200))
}

func TestClient_PacingSpacesRequests(t *testing.T) {
	t.Parallel()

	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		stamps = append(stamps, time.Now())
		json.NewEncoder(w).Encode([]map[string]string{}) //nolint:errcheck
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.DelayBetweenRequests = 30 * time.Millisecond
	c := New(cfg, zap.NewNop())

	ctx := context.Background()
	_, err := c.Brands(ctx, 320, fipe.VehicleTypeCar)
	require.NoError(t, err)
	_, err = c.Brands(ctx, 320, fipe.VehicleTypeCar)
	require.NoError(t, err)

	require.Len(t, stamps, 2)
	require.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 25*time.Millisecond)
}
