// Package client implements the HTTP client for the FIPE vehicle API.
//
// All endpoints are POST calls returning JSON. The client classifies every
// failure as transient (retryable) or permanent, retries transient ones under
// an exponential backoff policy and enforces a minimum spacing between
// requests. Pacing state is owned by the client instance: each worker builds
// its own client so spacing is per worker, never globally serialized.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

// Upstream endpoint names, relative to the base URL.
const (
	endpointReferenceTables = "ConsultarTabelaDeReferencia"
	endpointBrands          = "ConsultarMarcas"
	endpointModels          = "ConsultarModelos"
	endpointYearModels      = "ConsultarAnoModelo"
	endpointValue           = "ConsultarValorComTodosParametros"
)

// Config captures the knobs for one client instance.
type Config struct {
	BaseURL              string
	UserAgent            string
	Referer              string
	Timeout              time.Duration
	MaxRetries           int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	DelayBetweenRequests time.Duration
}

// Client issues paced, retried POST calls against the FIPE API.
type Client struct {
	baseURL string
	headers map[string]string
	http    *http.Client
	limiter *rate.Limiter
	retry   *RetryPolicy
	logger  *zap.Logger
}

// New constructs a Client. The rate limiter admits one call per
// DelayBetweenRequests with a burst of one, which is exactly the minimum
// spacing contract.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.DelayBetweenRequests > 0 {
		limit = rate.Every(cfg.DelayBetweenRequests)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/",
		headers: map[string]string{
			"User-Agent":   cfg.UserAgent,
			"Referer":      cfg.Referer,
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		retry:   NewRetryPolicy(cfg.MaxRetries, cfg.InitialBackoff, cfg.MaxBackoff, cfg.BackoffMultiplier),
		logger:  logger,
	}
}

// ReferenceTables lists every monthly reference table the API knows about.
func (c *Client) ReferenceTables(ctx context.Context) ([]fipe.ReferenceRow, error) {
	var rows []fipe.ReferenceRow
	if err := c.call(ctx, endpointReferenceTables, map[string]any{}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Brands lists the brands available for a vehicle type at a reference period.
func (c *Client) Brands(ctx context.Context, periodCode int, vehicle fipe.VehicleType) ([]fipe.ListRow, error) {
	payload := map[string]any{
		"codigoTabelaReferencia": periodCode,
		"codigoTipoVeiculo":      vehicle.Code(),
	}
	var rows []fipe.ListRow
	if err := c.call(ctx, endpointBrands, payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Models lists the models of a brand at a reference period.
func (c *Client) Models(ctx context.Context, periodCode int, vehicle fipe.VehicleType, brandCode int) (fipe.ModelsPage, error) {
	payload := map[string]any{
		"codigoTabelaReferencia": periodCode,
		"codigoTipoVeiculo":      vehicle.Code(),
		"codigoMarca":            brandCode,
	}
	var page fipe.ModelsPage
	if err := c.call(ctx, endpointModels, payload, &page); err != nil {
		return fipe.ModelsPage{}, err
	}
	return page, nil
}

// YearModels lists the year/fuel variants of a model.
func (c *Client) YearModels(ctx context.Context, periodCode int, vehicle fipe.VehicleType, brandCode, modelCode int) ([]fipe.ListRow, error) {
	payload := map[string]any{
		"codigoTabelaReferencia": periodCode,
		"codigoTipoVeiculo":      vehicle.Code(),
		"codigoMarca":            brandCode,
		"codigoModelo":           modelCode,
	}
	var rows []fipe.ListRow
	if err := c.call(ctx, endpointYearModels, payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Value fetches the price document for one year-model variant. yearCode is
// the "<year>-<fuel>" pair from the year-model listing; a missing fuel
// suffix falls back to fuel code 1.
func (c *Client) Value(ctx context.Context, periodCode int, vehicle fipe.VehicleType, brandCode, modelCode int, yearCode string) (fipe.ValueRow, error) {
	year, fuel := splitYearCode(yearCode)
	payload := map[string]any{
		"codigoTabelaReferencia": periodCode,
		"codigoTipoVeiculo":      vehicle.Code(),
		"codigoMarca":            brandCode,
		"codigoModelo":           modelCode,
		"anoModelo":              year,
		"codigoTipoCombustivel":  fuel,
		"tipoConsulta":           "tradicional",
	}
	var row fipe.ValueRow
	if err := c.call(ctx, endpointValue, payload, &row); err != nil {
		return fipe.ValueRow{}, err
	}
	return row, nil
}

func splitYearCode(yearCode string) (year string, fuel int) {
	parts := strings.SplitN(yearCode, "-", 2)
	year = parts[0]
	fuel = 1
	if len(parts) == 2 {
		if f, err := strconv.Atoi(parts[1]); err == nil {
			fuel = f
		}
	}
	return year, fuel
}

// call runs one paced request with retries and decodes the body into out.
func (c *Client) call(ctx context.Context, endpoint string, payload map[string]any, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts(); attempt++ {
		if attempt > 0 {
			backoff := c.retry.Backoff(attempt - 1)
			c.logger.Info("retrying request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		lastErr = c.post(ctx, endpoint, payload, out)
		if lastErr == nil {
			return nil
		}
		if !c.retry.ShouldRetry(lastErr, attempt) {
			return lastErr
		}
		c.logger.Warn("request failed",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, endpoint string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fipe.Permanent(endpoint, fmt.Errorf("encode payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fipe.Permanent(endpoint, fmt.Errorf("build request: %w", err))
	}
	for k, v := range c.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fipe.Transient(endpoint, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fipe.Transient(endpoint, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fipe.Transient(endpoint, fmt.Errorf("rate limited (HTTP 429)"))
	case resp.StatusCode >= 500:
		return fipe.Transient(endpoint, fmt.Errorf("server error (HTTP %d)", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return fipe.Permanent(endpoint, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(data, 200)))
	}

	if err := upstreamError(endpoint, data); err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fipe.Permanent(endpoint, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// upstreamError detects the {"erro": "..."} body the API returns with HTTP
// 200. Messages mentioning timeouts or blocking indicate throttling.
func upstreamError(endpoint string, data []byte) error {
	var envelope struct {
		Erro string `json:"erro"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Erro == "" {
		return nil
	}
	msg := strings.ToLower(envelope.Erro)
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "blocked") {
		return fipe.Transient(endpoint, fmt.Errorf("upstream throttled: %s", envelope.Erro))
	}
	return fipe.Permanent(endpoint, fmt.Errorf("upstream error: %s", envelope.Erro))
}

// truncate shortens a response body for error messages without cutting a
// multibyte rune in half.
func truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return string(data[:cut])
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
