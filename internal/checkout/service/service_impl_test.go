package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/kelaspay/kelaspay/internal/checkout/domain"
	"github.com/kelaspay/kelaspay/internal/config"
	coursedomain "github.com/kelaspay/kelaspay/internal/course/domain"
	courserepo "github.com/kelaspay/kelaspay/internal/course/repository"
	enrollmentdomain "github.com/kelaspay/kelaspay/internal/enrollment/domain"
	enrollmentrepo "github.com/kelaspay/kelaspay/internal/enrollment/repository"
	enrollmentservice "github.com/kelaspay/kelaspay/internal/enrollment/service"
	obsmetrics "github.com/kelaspay/kelaspay/internal/observability/metrics"
	paymentdomain "github.com/kelaspay/kelaspay/internal/payment/domain"
	"github.com/kelaspay/kelaspay/internal/payment/tripay"
	promodomain "github.com/kelaspay/kelaspay/internal/promo/domain"
	promorepo "github.com/kelaspay/kelaspay/internal/promo/repository"
	promoservice "github.com/kelaspay/kelaspay/internal/promo/service"
	txndomain "github.com/kelaspay/kelaspay/internal/transaction/domain"
	txnrepo "github.com/kelaspay/kelaspay/internal/transaction/repository"
	userdomain "github.com/kelaspay/kelaspay/internal/user/domain"
	userrepo "github.com/kelaspay/kelaspay/internal/user/repository"
	"github.com/kelaspay/kelaspay/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc    checkoutdomain.Service
	db     *gorm.DB
	node   *snowflake.Node
	txns   txndomain.Repository
	user   *userdomain.User
	course *coursedomain.Course
}

func newFixture(t *testing.T, gatewayBaseURL string) *fixture {
	return newFixtureWithMetrics(t, gatewayBaseURL, nil)
}

func newFixtureWithMetrics(t *testing.T, gatewayBaseURL string, metrics *obsmetrics.Metrics) *fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	err = dbConn.AutoMigrate(
		&txndomain.Transaction{},
		&userdomain.User{},
		&coursedomain.Course{},
		&promodomain.PromoCode{},
		&enrollmentdomain.Enrollment{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	now := time.Now().UTC()
	user := userdomain.User{
		ID: node.Generate(), Name: "Budi Santoso", Email: "budi@example.com",
		Phone: "0812000000", CreatedAt: now, UpdatedAt: now,
	}
	if err := dbConn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	course := coursedomain.Course{
		ID: node.Generate(), Slug: "belajar-golang", Title: "Belajar Golang",
		Price: 300_000, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := dbConn.Create(&course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	promo := promodomain.PromoCode{
		ID: node.Generate(), Code: "HEMAT50", Discount: 50_000, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := dbConn.Create(&promo).Error; err != nil {
		t.Fatalf("seed promo: %v", err)
	}

	cfg := config.Config{
		TripayBaseURL:      gatewayBaseURL,
		TripayMerchantCode: "T0001",
		TripayAPIKey:       "api-key-test",
		TripayPrivateKey:   "private-key-test",
		TripayReturnURL:    "https://kelaspay.id/payment/return",
		CourseBaseURL:      "https://kelaspay.id",
	}
	gateway := tripay.New(cfg, zap.NewNop())

	txns := txnrepo.Provide()
	promoSvc := promoservice.New(promoservice.Params{
		DB: dbConn, Log: zap.NewNop(), Repo: promorepo.Provide(),
	})
	enrollmentSvc := enrollmentservice.New(enrollmentservice.Params{
		DB: dbConn, Log: zap.NewNop(), GenID: node, Repo: enrollmentrepo.Provide(),
	})

	svc := New(Params{
		DB:         dbConn,
		Log:        zap.NewNop(),
		GenID:      node,
		Cfg:        cfg,
		Settings:   config.NewStaticCheckoutConfigHolder(config.CheckoutConfig{FeePercent: "2"}),
		TxnRepo:    txns,
		UserRepo:   userrepo.Provide(),
		CourseRepo: courserepo.Provide(),
		Promo:      promoSvc,
		Enrollment: enrollmentSvc,
		Gateway:    gateway,
		Metrics:    metrics,
	})

	return &fixture{svc: svc, db: dbConn, node: node, txns: txns, user: &user, course: &course}
}

func gatewayStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"reference":      "T0001REF1",
				"merchant_ref":   body["merchant_ref"],
				"payment_method": body["method"],
				"checkout_url":   "https://tripay.co.id/checkout/T0001REF1",
				"expired_time":   time.Now().Add(24 * time.Hour).Unix(),
				"amount":         body["amount"],
			},
		})
	}))
}

func TestInitiateCashSettlesImmediately(t *testing.T) {
	f := newFixture(t, "http://unused")

	txn, err := f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:        f.user.ID,
		CourseID:      f.course.ID,
		PaymentMethod: txndomain.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if txn.Status != txndomain.StatusPaid {
		t.Fatalf("expected paid, got %s", txn.Status)
	}
	if txn.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}
	if txn.AdminFee != 0 {
		t.Fatalf("expected no admin fee for cash, got %d", txn.AdminFee)
	}
	if txn.Total != 300_000 {
		t.Fatalf("expected total 300000, got %d", txn.Total)
	}

	var enrollments int64
	if err := f.db.Model(&enrollmentdomain.Enrollment{}).Count(&enrollments).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if enrollments != 1 {
		t.Fatalf("expected enrollment created, got %d", enrollments)
	}
}

func TestInitiateCashRecordsEnrollmentMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := obsmetrics.New(obsmetrics.Config{ServiceName: "kelaspay-test"}, provider)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	f := newFixtureWithMetrics(t, "http://unused", metrics)

	_, err = f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:        f.user.ID,
		CourseID:      f.course.ID,
		PaymentMethod: txndomain.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var recorded int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "kelaspay_enrollments_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("source")); ok && v.AsString() == "checkout" {
					recorded += dp.Value
				}
			}
		}
	}
	if recorded != 1 {
		t.Fatalf("expected 1 enrollment recorded with source=checkout, got %d", recorded)
	}
}

func TestInitiateGatewayWithPromoAndFee(t *testing.T) {
	srv := gatewayStub(t)
	defer srv.Close()
	f := newFixture(t, srv.URL)

	txn, err := f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:         f.user.ID,
		CourseID:       f.course.ID,
		PaymentMethod:  txndomain.PaymentMethodGateway,
		PaymentChannel: "BRIVA",
		PromoCode:      "hemat50",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if txn.Status != txndomain.StatusPending {
		t.Fatalf("expected pending, got %s", txn.Status)
	}
	if txn.Discount != 50_000 {
		t.Fatalf("expected discount 50000, got %d", txn.Discount)
	}
	// 300000 - 50000 = 250000, 2% fee = 5000
	if txn.AdminFee != 5_000 {
		t.Fatalf("expected admin fee 5000, got %d", txn.AdminFee)
	}
	if txn.Total != 255_000 {
		t.Fatalf("expected total 255000, got %d", txn.Total)
	}
	if txn.GatewayReference != "T0001REF1" {
		t.Fatalf("expected gateway reference, got %q", txn.GatewayReference)
	}
	if txn.PaymentURL == "" {
		t.Fatal("expected payment url")
	}
	if txn.ExpiredAt == nil {
		t.Fatal("expected expiry from gateway")
	}
	if txn.Metadata["source"] != "checkout" {
		t.Fatalf("expected metadata.source preserved, got %v", txn.Metadata["source"])
	}
	if txn.Metadata["tripay"] == nil {
		t.Fatal("expected gateway payload merged into metadata")
	}

	var enrollments int64
	if err := f.db.Model(&enrollmentdomain.Enrollment{}).Count(&enrollments).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if enrollments != 0 {
		t.Fatalf("expected no enrollment before payment, got %d", enrollments)
	}
}

func TestInitiateGatewaySendsProductURL(t *testing.T) {
	var productURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			OrderItems []struct {
				ProductURL string `json:"product_url"`
			} `json:"order_items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.OrderItems) > 0 {
			productURL = body.OrderItems[0].ProductURL
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"reference": "T0001REF3"},
		})
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL)

	_, err := f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:         f.user.ID,
		CourseID:       f.course.ID,
		PaymentMethod:  txndomain.PaymentMethodGateway,
		PaymentChannel: "BRIVA",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if productURL != "https://kelaspay.id/courses/belajar-golang" {
		t.Fatalf("expected course page url in order item, got %q", productURL)
	}
}

func TestInitiateGatewayAmountIsAuthoritative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"reference":    "T0001REF2",
				"merchant_ref": "echo",
				"amount":       310_000,
			},
		})
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL)

	txn, err := f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:         f.user.ID,
		CourseID:       f.course.ID,
		PaymentMethod:  txndomain.PaymentMethodGateway,
		PaymentChannel: "BRIVA",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if txn.Total != 310_000 {
		t.Fatalf("expected gateway amount 310000 to win, got %d", txn.Total)
	}
}

func TestInitiateGatewayRejectionDeletesTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "Payment channel not available",
		})
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL)

	_, err := f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:         f.user.ID,
		CourseID:       f.course.ID,
		PaymentMethod:  txndomain.PaymentMethodGateway,
		PaymentChannel: "BRIVA",
	})
	if !errors.Is(err, paymentdomain.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}

	var count int64
	if err := f.db.Model(&txndomain.Transaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rejected transaction deleted, got %d rows", count)
	}
}

func TestInitiateGatewayUnreachableKeepsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	f := newFixture(t, srv.URL)

	_, err := f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:         f.user.ID,
		CourseID:       f.course.ID,
		PaymentMethod:  txndomain.PaymentMethodGateway,
		PaymentChannel: "BRIVA",
	})
	if !errors.Is(err, paymentdomain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	var txns []txndomain.Transaction
	if err := f.db.Find(&txns).Error; err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected pending transaction retained, got %d rows", len(txns))
	}
	if txns[0].Status != txndomain.StatusPending {
		t.Fatalf("expected pending, got %s", txns[0].Status)
	}
}

func TestInitiateGatewayErrorPageKeepsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL)

	_, err := f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:         f.user.ID,
		CourseID:       f.course.ID,
		PaymentMethod:  txndomain.PaymentMethodGateway,
		PaymentChannel: "BRIVA",
	})
	if !errors.Is(err, paymentdomain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if errors.Is(err, paymentdomain.ErrGatewayRejected) {
		t.Fatalf("error page must not count as a rejection: %v", err)
	}

	var txns []txndomain.Transaction
	if err := f.db.Find(&txns).Error; err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected pending transaction retained, got %d rows", len(txns))
	}
	if txns[0].Status != txndomain.StatusPending {
		t.Fatalf("expected pending, got %s", txns[0].Status)
	}
}

func TestInitiateValidation(t *testing.T) {
	f := newFixture(t, "http://unused")

	_, err := f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:        f.user.ID,
		CourseID:      f.course.ID,
		PaymentMethod: txndomain.PaymentMethodGateway,
	})
	if !errors.Is(err, checkoutdomain.ErrChannelRequired) {
		t.Fatalf("expected ErrChannelRequired, got %v", err)
	}

	_, err = f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:        f.user.ID,
		CourseID:      f.course.ID,
		PaymentMethod: txndomain.PaymentMethodCash,
		PromoCode:     "TIDAKADA",
	})
	if !errors.Is(err, promodomain.ErrInvalidPromoCode) {
		t.Fatalf("expected ErrInvalidPromoCode, got %v", err)
	}

	var count int64
	if err := f.db.Model(&txndomain.Transaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no transaction rows after failed validation, got %d", count)
	}
}

func TestInitiateAlreadyEnrolled(t *testing.T) {
	f := newFixture(t, "http://unused")

	enrollment := enrollmentdomain.Enrollment{
		ID: f.node.Generate(), UserID: f.user.ID, CourseID: f.course.ID,
		Status: enrollmentdomain.StatusActive, EnrolledAt: time.Now().UTC(),
	}
	if err := f.db.Create(&enrollment).Error; err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}

	_, err := f.svc.Initiate(context.Background(), checkoutdomain.InitiateRequest{
		UserID:        f.user.ID,
		CourseID:      f.course.ID,
		PaymentMethod: txndomain.PaymentMethodCash,
	})
	if !errors.Is(err, checkoutdomain.ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}
}
