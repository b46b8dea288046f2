// Package kalshi implements the execution adapter for the Kalshi exchange
// API. Requests are signed with RSA-PSS-SHA256 per Kalshi's auth scheme.
package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Config holds the connection parameters for the Kalshi adapter.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
	BaseURL string

	// APIKeyID is the Kalshi API key identifier.
	APIKeyID string
}

// Adapter implements domain.PlatformAdapter against the Kalshi exchange.
// Orders are submitted immediate-or-cancel so a miss never rests on the book.
type Adapter struct {
	cfg        Config
	privateKey *rsa.PrivateKey
	httpClient *http.Client
}

// NewAdapter creates a Kalshi execution adapter.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() string { return "kalshi" }

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the adapter for signed authentication.
func (a *Adapter) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		a.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	a.privateKey = rsaKey
	return nil
}

// orderDTO is the Kalshi portfolio order request payload. Kalshi prices are
// integer cents.
type orderDTO struct {
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`   // "yes" or "no"
	Action      string `json:"action"` // "buy" or "sell"
	Type        string `json:"type"`   // "limit"
	Count       int    `json:"count"`
	YesPrice    int    `json:"yes_price,omitempty"`
	NoPrice     int    `json:"no_price,omitempty"`
	TimeInForce string `json:"time_in_force"`
	ClientID    string `json:"client_order_id,omitempty"`
}

// orderResponseDTO is the Kalshi order placement response.
type orderResponseDTO struct {
	Order struct {
		OrderID        string `json:"order_id"`
		Status         string `json:"status"`
		TakerFillCount int    `json:"taker_fill_count"`
		TakerFillCost  int    `json:"taker_fill_cost"` // cents, total
		TakerFees      int    `json:"taker_fees"`      // cents, total
	} `json:"order"`
}

// takerFee is Kalshi's published fee schedule, ceil(0.07 · count · P · (1−P))
// rounded up to the cent, in dollars. Used when the response omits taker_fees.
func takerFee(count, price float64) float64 {
	return math.Ceil(7*count*price*(1-price)) / 100
}

// PlaceOrder submits an immediate-or-cancel buy for the requested side and
// reports the resulting fill. req.Size is a contract count; req.Price is the
// limit price in dollars and is converted to cents.
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	start := time.Now()

	cents := int(math.Round(req.Price * 100))
	dto := orderDTO{
		Ticker:      req.MarketID,
		Action:      "buy",
		Type:        "limit",
		Count:       int(math.Floor(req.Size)),
		TimeInForce: "immediate_or_cancel",
	}
	switch req.Side {
	case domain.SideYes:
		dto.Side = "yes"
		dto.YesPrice = cents
	case domain.SideNo:
		dto.Side = "no"
		dto.NoPrice = cents
	default:
		return domain.OrderResult{}, fmt.Errorf("kalshi: unknown side %q", req.Side)
	}

	body, err := a.doSignedRequest(ctx, http.MethodPost, "/portfolio/orders", dto)
	if err != nil {
		return domain.OrderResult{Latency: time.Since(start)}, fmt.Errorf("kalshi: place order: %w", err)
	}

	var resp orderResponseDTO
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderResult{Latency: time.Since(start)}, fmt.Errorf("kalshi: decode order response: %w", err)
	}

	result := domain.OrderResult{Latency: time.Since(start)}
	if resp.Order.TakerFillCount > 0 {
		result.Filled = true
		result.FillSize = float64(resp.Order.TakerFillCount)
		result.FillPrice = float64(resp.Order.TakerFillCost) / float64(resp.Order.TakerFillCount) / 100
		result.Fee = float64(resp.Order.TakerFees) / 100
		if resp.Order.TakerFees == 0 {
			result.Fee = takerFee(result.FillSize, result.FillPrice)
		}
	}

	return result, nil
}

// CancelAll cancels every resting order on the given market ticker. The API
// has no bulk cancel, so open orders are listed and cancelled one by one.
func (a *Adapter) CancelAll(ctx context.Context, marketID string) error {
	params := url.Values{}
	params.Set("ticker", marketID)
	params.Set("status", "resting")

	body, err := a.doSignedRequest(ctx, http.MethodGet, "/portfolio/orders?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("kalshi: list open orders %s: %w", marketID, err)
	}

	var resp struct {
		Orders []struct {
			OrderID string `json:"order_id"`
		} `json:"orders"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("kalshi: decode open orders: %w", err)
	}

	var failed []string
	for _, o := range resp.Orders {
		path := "/portfolio/orders/" + url.PathEscape(o.OrderID)
		if _, err := a.doSignedRequest(ctx, http.MethodDelete, path, nil); err != nil {
			failed = append(failed, o.OrderID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("kalshi: cancel all %s: %d orders not cancelled (%s)",
			marketID, len(failed), strings.Join(failed, ","))
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doSignedRequest builds, signs (RSA), sends, and reads an HTTP request
// against the Kalshi API.
func (a *Adapter) doSignedRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if err := a.signRequest(req, method, path); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
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

	if err := a.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// signRequest adds RSA authentication headers to the HTTP request.
// Kalshi signs timestamp + method + path with RSA-PSS-SHA256.
func (a *Adapter) signRequest(req *http.Request, method, path string) error {
	if a.privateKey == nil {
		return fmt.Errorf("kalshi: RSA private key not configured")
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	message := ts + method + path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, a.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", a.cfg.APIKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)

	return nil
}

// errorResponseDTO is the Kalshi API error envelope.
type errorResponseDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func (a *Adapter) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponseDTO
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s (%s)", domain.ErrNotFound, apiErr.Message, apiErr.Code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s (%s)", domain.ErrUnauthorized, apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s (%s)", domain.ErrRateLimited, apiErr.Message, apiErr.Code)
	default:
		return fmt.Errorf("kalshi: HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}

// Compile-time interface check.
var _ domain.PlatformAdapter = (*Adapter)(nil)
