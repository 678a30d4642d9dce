package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/kelaspay/kelaspay/internal/payment/domain"
)

type fakeGateway struct {
	channelCalls int
	channels     []paymentdomain.Channel
	channelsErr  error
}

func (f *fakeGateway) CreateTransaction(ctx context.Context, req paymentdomain.CreateTransactionRequest) (*paymentdomain.GatewayTransaction, error) {
	_ = ctx
	_ = req
	return nil, paymentdomain.ErrGatewayUnavailable
}

func (f *fakeGateway) GetPaymentChannels(ctx context.Context) ([]paymentdomain.Channel, error) {
	f.channelCalls++
	_ = ctx
	if f.channelsErr != nil {
		return nil, f.channelsErr
	}
	return f.channels, nil
}

func (f *fakeGateway) VerifyCallbackSignature(payload []byte, signature string) error {
	_ = payload
	_ = signature
	return nil
}

func (f *fakeGateway) ParseCallback(payload []byte) (*paymentdomain.CallbackEvent, error) {
	_ = payload
	return nil, paymentdomain.ErrInvalidPayload
}

func newChannelsRouter(gateway paymentdomain.Gateway) (*gin.Engine, *fakeGateway) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		gateway:       gateway,
		channelsCache: newPaymentChannelsCache(time.Minute),
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.GET("/api/payment/channels", srv.ListPaymentChannels)
	return router, gateway.(*fakeGateway)
}

func getChannels(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/payment/channels", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestListPaymentChannelsFiltersAndCaches(t *testing.T) {
	router, gateway := newChannelsRouter(&fakeGateway{
		channels: []paymentdomain.Channel{
			{Code: "BRIVA", Name: "BRI Virtual Account", Group: "Virtual Account", Active: true},
			{Code: "OVO", Name: "OVO", Group: "E-Wallet", Active: false},
		},
	})

	resp := getChannels(router)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var body struct {
		Data []paymentdomain.Channel `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("expected only active channels, got %d", len(body.Data))
	}
	if body.Data[0].Code != "BRIVA" {
		t.Fatalf("unexpected channel %q", body.Data[0].Code)
	}

	resp = getChannels(router)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 on cached read, got %d", resp.Code)
	}
	if gateway.channelCalls != 1 {
		t.Fatalf("expected one gateway call, got %d", gateway.channelCalls)
	}
}

func TestListPaymentChannelsMapsGatewayOutage(t *testing.T) {
	router, _ := newChannelsRouter(&fakeGateway{channelsErr: paymentdomain.ErrGatewayUnavailable})

	resp := getChannels(router)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", resp.Code)
	}
}
