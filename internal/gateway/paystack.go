package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vay-dev/swift-wallet-be/internal/config"
	"github.com/vay-dev/swift-wallet-be/internal/metrics"
	"github.com/vay-dev/swift-wallet-be/shared/models"
	"go.uber.org/zap"
)

const maxResponseBody = 1 << 20

// PaystackClient implements Provider against the Paystack REST API.
type PaystackClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPaystackClient(cfg config.PaystackConfig, logger *zap.Logger) *PaystackClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaystackClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("paystack"),
	}
}

// envelope is the common Paystack response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializePayload struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Currency    string `json:"currency,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

func (p *PaystackClient) Initialize(ctx context.Context, req InitializeRequest) (resp *InitializeResponse, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGateway("initialize", start, err) }()

	payload := initializePayload{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Reference:   req.Reference,
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
	}

	status, env, err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || !env.Status {
		return nil, fmt.Errorf("%w: initialize returned %d: %s", models.ErrGatewayUnavailable, status, env.Message)
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: failed to decode initialize data: %v", models.ErrGatewayUnavailable, err)
	}
	if data.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: initialize returned no authorization url", models.ErrGatewayUnavailable)
	}

	return &InitializeResponse{
		Reference:        req.Reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

type transactionData struct {
	Reference       string         `json:"reference"`
	Status          string         `json:"status"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	GatewayResponse string         `json:"gateway_response"`
	Authorization   *Authorization `json:"authorization"`
}

func (p *PaystackClient) Verify(ctx context.Context, reference string) (v *Verification, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGateway("verify", start, err) }()

	status, env, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || !env.Status {
		return nil, fmt.Errorf("%w: verify returned %d: %s", models.ErrGatewayUnavailable, status, env.Message)
	}

	var data transactionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: failed to decode verify data: %v", models.ErrGatewayUnavailable, err)
	}

	return &Verification{
		Reference:       reference,
		Status:          data.Status,
		AmountMinor:     data.Amount,
		Currency:        data.Currency,
		GatewayResponse: data.GatewayResponse,
		Authorization:   data.Authorization,
	}, nil
}

type chargePayload struct {
	AuthorizationCode string `json:"authorization_code"`
	Email             string `json:"email"`
	Amount            int64  `json:"amount"`
	Reference         string `json:"reference"`
	Currency          string `json:"currency,omitempty"`
}

// ChargeAuthorization reports a declined charge as a failed ChargeResponse and
// reserves errors for cases where the outcome is unknown.
func (p *PaystackClient) ChargeAuthorization(ctx context.Context, req ChargeRequest) (resp *ChargeResponse, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGateway("charge_authorization", start, err) }()

	payload := chargePayload{
		AuthorizationCode: req.AuthorizationCode,
		Email:             req.Email,
		Amount:            req.AmountMinor,
		Reference:         req.Reference,
		Currency:          req.Currency,
	}

	status, env, err := p.do(ctx, http.MethodPost, "/transaction/charge_authorization", payload)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: charge returned %d: %s", models.ErrGatewayUnavailable, status, env.Message)
	}
	if status != http.StatusOK || !env.Status {
		return &ChargeResponse{Reference: req.Reference, Status: StatusFailed, Message: env.Message}, nil
	}

	var data transactionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: failed to decode charge data: %v", models.ErrGatewayUnavailable, err)
	}

	message := data.GatewayResponse
	if message == "" {
		message = env.Message
	}
	return &ChargeResponse{
		Reference:   req.Reference,
		Status:      data.Status,
		AmountMinor: data.Amount,
		Message:     message,
	}, nil
}

// do sends an authenticated JSON request. Transport and decode failures are
// wrapped as ErrGatewayUnavailable.
func (p *PaystackClient) do(ctx context.Context, method, path string, body any) (int, *envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("provider request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return 0, nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", models.ErrGatewayUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		p.logger.Error("provider returned a non-JSON body",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode))
		return 0, nil, fmt.Errorf("%w: status %d with undecodable body", models.ErrGatewayUnavailable, resp.StatusCode)
	}

	p.logger.Debug("provider response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.Bool("status", env.Status))

	return resp.StatusCode, &env, nil
}
