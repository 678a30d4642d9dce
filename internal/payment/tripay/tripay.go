package tripay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kelaspay/kelaspay/internal/config"
	"github.com/kelaspay/kelaspay/internal/payment/domain"
	"go.uber.org/zap"
)

const requestTimeout = 15 * time.Second

// Client talks to the Tripay payment gateway. Create-transaction requests
// are signed with HMAC-SHA256(merchantCode+merchantRef+amount, privateKey);
// inbound callbacks are signed over the raw body with the same key.
type Client struct {
	baseURL      string
	merchantCode string
	apiKey       string
	privateKey   string
	httpClient   *http.Client
	log          *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.TripayBaseURL, "/"),
		merchantCode: cfg.TripayMerchantCode,
		apiKey:       cfg.TripayAPIKey,
		privateKey:   cfg.TripayPrivateKey,
		httpClient:   &http.Client{Timeout: requestTimeout},
		log:          log.Named("tripay.client"),
	}
}

// envelope is Tripay's response wrapper. Success is a pointer so a body
// that merely decodes as JSON (a proxy error document) is not mistaken for
// an explicit rejection.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) rejected() bool {
	return e.Success != nil && !*e.Success
}

func (e envelope) accepted() bool {
	return e.Success != nil && *e.Success
}

func (c *Client) CreateTransaction(ctx context.Context, req domain.CreateTransactionRequest) (*domain.GatewayTransaction, error) {
	payload := map[string]any{
		"method":         req.Method,
		"merchant_ref":   req.MerchantRef,
		"amount":         req.Amount,
		"customer_name":  req.CustomerName,
		"customer_email": req.CustomerEmail,
		"customer_phone": req.CustomerPhone,
		"order_items":    req.OrderItems,
		"return_url":     req.ReturnURL,
		"signature":      c.requestSignature(req.MerchantRef, req.Amount),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/create", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Warn("create transaction request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	// Only a decoded success=false envelope is an explicit rejection. A
	// proxy error page or garbage body is ambiguous: the gateway may have
	// accepted the request, so callers must keep their pending state.
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("create transaction returned undecodable body",
			zap.String("merchant_ref", req.MerchantRef),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: undecodable response (status %d)", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if env.rejected() {
		c.log.Warn("create transaction rejected",
			zap.String("merchant_ref", req.MerchantRef),
			zap.String("message", env.Message),
		)
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, env.Message)
	}
	if !env.accepted() || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var txn domain.GatewayTransaction
	if err := json.Unmarshal(env.Data, &txn); err != nil {
		// success=true means the remote record exists; treat bad data as
		// an outage rather than a rejection.
		return nil, fmt.Errorf("%w: malformed data", domain.ErrGatewayUnavailable)
	}
	var rawData map[string]any
	if err := json.Unmarshal(env.Data, &rawData); err == nil {
		txn.Raw = rawData
	}
	return &txn, nil
}

func (c *Client) GetPaymentChannels(ctx context.Context) ([]domain.Channel, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/merchant/payment-channel", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: undecodable response (status %d)", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if env.rejected() {
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, env.Message)
	}
	if !env.accepted() {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var channels []domain.Channel
	if err := json.Unmarshal(env.Data, &channels); err != nil {
		return nil, fmt.Errorf("%w: malformed data", domain.ErrGatewayUnavailable)
	}
	return channels, nil
}

func (c *Client) VerifyCallbackSignature(payload []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(c.privateKey))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type callbackPayload struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
	PaidAt      int64  `json:"paid_at"`
}

func (c *Client) ParseCallback(payload []byte) (*domain.CallbackEvent, error) {
	var body callbackPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(body.MerchantRef) == "" && strings.TrimSpace(body.Reference) == "" {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.CallbackEvent{
		Reference:   strings.TrimSpace(body.Reference),
		MerchantRef: strings.TrimSpace(body.MerchantRef),
		Status:      strings.ToUpper(strings.TrimSpace(body.Status)),
		TotalAmount: body.TotalAmount,
		PaidAt:      body.PaidAt,
		RawPayload:  payload,
	}, nil
}

func (c *Client) requestSignature(merchantRef string, amount int64) string {
	mac := hmac.New(sha256.New, []byte(c.privateKey))
	_, _ = mac.Write([]byte(c.merchantCode + merchantRef + strconv.FormatInt(amount, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
