// Package polymarket implements the execution adapter for the Polymarket
// CLOB (Central Limit Order Book) API.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/arbengine/internal/crypto"
	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Config holds the connection parameters for the Polymarket adapter.
type Config struct {
	// BaseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
	BaseURL string

	// Address is the funder wallet address used in auth headers.
	Address string

	// Tokens maps "marketID/SIDE" to the CLOB token ID for that outcome.
	// When a market has no entry the market ID itself is used as the token
	// ID, which matches single-token test fixtures.
	Tokens map[string]string

	// FeeRateBps is the taker fee rate in basis points applied to fill
	// notional. The CLOB currently charges none, so zero is the norm.
	FeeRateBps float64
}

// Adapter implements domain.PlatformAdapter against the Polymarket CLOB.
// Orders are submitted fill-and-kill so a miss never rests on the book.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	auth       *crypto.HMACAuth
}

// NewAdapter creates a Polymarket execution adapter. auth carries the HMAC
// credentials obtained from the CLOB derive-api-key flow.
func NewAdapter(cfg Config, auth *crypto.HMACAuth) *Adapter {
	return &Adapter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		auth: auth,
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() string { return "polymarket" }

// orderResultDTO is the CLOB response to a posted order.
type orderResultDTO struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg,omitempty"`
	OrderID      string `json:"orderID,omitempty"`
	Status       string `json:"status,omitempty"`
	MakingAmount string `json:"makingAmount,omitempty"`
	TakingAmount string `json:"takingAmount,omitempty"`
}

// PlaceOrder submits a fill-and-kill buy for the outcome token behind the
// requested market side and reports the resulting fill.
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	start := time.Now()

	body := map[string]any{
		"order": map[string]any{
			"tokenID": a.resolveToken(req.MarketID, req.Side),
			"price":   strconv.FormatFloat(req.Price, 'f', -1, 64),
			"size":    strconv.FormatFloat(req.Size, 'f', -1, 64),
			"side":    "BUY",
		},
		"owner":     a.cfg.Address,
		"orderType": "FAK",
	}

	respBody, err := a.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{Latency: time.Since(start)}, fmt.Errorf("polymarket: post order: %w", err)
	}

	var dto orderResultDTO
	if err := json.Unmarshal(respBody, &dto); err != nil {
		return domain.OrderResult{Latency: time.Since(start)}, fmt.Errorf("polymarket: decode order result: %w", err)
	}

	result := domain.OrderResult{Latency: time.Since(start)}
	if !dto.Success {
		return result, fmt.Errorf("polymarket: order rejected: %s", dto.ErrorMsg)
	}

	// A matched FAK order reports the filled amounts; "delayed" or "unmatched"
	// statuses mean nothing crossed.
	if dto.Status == "matched" {
		taking, _ := strconv.ParseFloat(dto.TakingAmount, 64)
		making, _ := strconv.ParseFloat(dto.MakingAmount, 64)
		if taking > 0 {
			result.Filled = true
			result.FillSize = taking
			if making > 0 {
				result.FillPrice = making / taking
			} else {
				result.FillPrice = req.Price
			}
			result.Fee = result.FillPrice * result.FillSize * a.cfg.FeeRateBps / 10000
		}
	}

	return result, nil
}

// CancelAll cancels every open order on the given market.
func (a *Adapter) CancelAll(ctx context.Context, marketID string) error {
	body := map[string]any{
		"market": marketID,
	}

	respBody, err := a.doAuthenticatedRequest(ctx, http.MethodDelete, "/cancel-market-orders", body)
	if err != nil {
		return fmt.Errorf("polymarket: cancel market orders %s: %w", marketID, err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket: decode cancel response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket: cancel failed: %s", result.ErrorMsg)
	}

	return nil
}

// DeriveAPIKey performs the CLOB auth flow to obtain HMAC credentials for a
// previously registered address signature.
func (a *Adapter) DeriveAPIKey(ctx context.Context, signature string, timestamp, nonce int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", a.cfg.Address)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", strconv.FormatInt(nonce, 10))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket: read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket: auth failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket: decode auth response: %w", err)
	}

	a.auth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (a *Adapter) resolveToken(marketID string, side domain.Side) string {
	if token, ok := a.cfg.Tokens[marketID+"/"+string(side)]; ok {
		return token
	}
	return marketID
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (a *Adapter) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Apply HMAC authentication headers.
	if a.auth != nil {
		headers := a.auth.L2Headers(a.cfg.Address, method, path, bodyStr)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface check.
var _ domain.PlatformAdapter = (*Adapter)(nil)
