package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/config"
	enrollmentdomain "github.com/kelaspay/kelaspay/internal/enrollment/domain"
	enrollmentrepo "github.com/kelaspay/kelaspay/internal/enrollment/repository"
	enrollmentservice "github.com/kelaspay/kelaspay/internal/enrollment/service"
	notificationdomain "github.com/kelaspay/kelaspay/internal/notification/domain"
	notificationrepo "github.com/kelaspay/kelaspay/internal/notification/repository"
	notificationservice "github.com/kelaspay/kelaspay/internal/notification/service"
	obsmetrics "github.com/kelaspay/kelaspay/internal/observability/metrics"
	paymentdomain "github.com/kelaspay/kelaspay/internal/payment/domain"
	"github.com/kelaspay/kelaspay/internal/payment/tripay"
	"github.com/kelaspay/kelaspay/internal/providers/email"
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

const testPrivateKey = "private-key-test"

type fixture struct {
	svc  *Service
	db   *gorm.DB
	node *snowflake.Node
	txns txndomain.Repository
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithMetrics(t, nil)
}

func newFixtureWithMetrics(t *testing.T, metrics *obsmetrics.Metrics) *fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	err = dbConn.AutoMigrate(
		&txndomain.Transaction{},
		&userdomain.User{},
		&enrollmentdomain.Enrollment{},
		&notificationdomain.Notification{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	gateway := tripay.New(config.Config{TripayPrivateKey: testPrivateKey}, zap.NewNop())
	txns := txnrepo.Provide()

	enrollmentSvc := enrollmentservice.New(enrollmentservice.Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  enrollmentrepo.Provide(),
	})
	notifier := notificationservice.New(notificationservice.Params{
		DB:      dbConn,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    notificationrepo.Provide(),
		Email:   &email.NoOpProvider{},
		Metrics: metrics,
	})

	svc := New(Params{
		DB:         dbConn,
		Log:        zap.NewNop(),
		Gateway:    gateway,
		TxnRepo:    txns,
		UserRepo:   userrepo.Provide(),
		Enrollment: enrollmentSvc,
		Notifier:   notifier,
		Metrics:    metrics,
	})
	return &fixture{svc: svc, db: dbConn, node: node, txns: txns}
}

func (f *fixture) seedPending(t *testing.T) *txndomain.Transaction {
	t.Helper()

	user := userdomain.User{
		ID:        f.node.Generate(),
		Name:      "Budi Santoso",
		Email:     "budi@example.com",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	now := time.Now().UTC()
	txn := txndomain.Transaction{
		ID:            f.node.Generate(),
		InvoiceNumber: txndomain.NewInvoiceNumber(now),
		UserID:        user.ID,
		CourseID:      f.node.Generate(),
		PaymentMethod: txndomain.PaymentMethodGateway,
		Amount:        300_000,
		Total:         305_000,
		MerchantRef:   "",
		Status:        txndomain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	txn.MerchantRef = txn.InvoiceNumber
	if err := f.txns.Insert(context.Background(), f.db, &txn); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return &txn
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testPrivateKey))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func callbackBody(merchantRef, status string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"reference":"T0001REF1","merchant_ref":%q,"status":%q,"total_amount":%d,"paid_at":%d}`,
		merchantRef, status, amount, time.Now().Unix(),
	))
}

func (f *fixture) counts(t *testing.T) (enrollments, notifications int64) {
	t.Helper()
	if err := f.db.Model(&enrollmentdomain.Enrollment{}).Count(&enrollments).Error; err != nil {
		t.Fatalf("count enrollments: %v", err)
	}
	if err := f.db.Model(&notificationdomain.Notification{}).Count(&notifications).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return enrollments, notifications
}

func TestHandleCallbackInvalidSignature(t *testing.T) {
	f := newFixture(t)
	txn := f.seedPending(t)

	body := callbackBody(txn.MerchantRef, "PAID", txn.Total)
	err := f.svc.HandleCallback(context.Background(), body, "deadbeef")
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	current, err := f.txns.FindByID(context.Background(), f.db, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Status != txndomain.StatusPending {
		t.Fatalf("expected status unchanged, got %s", current.Status)
	}
	enrollments, notifications := f.counts(t)
	if enrollments != 0 || notifications != 0 {
		t.Fatalf("expected no side effects, got %d enrollments %d notifications", enrollments, notifications)
	}
}

func TestHandleCallbackUnknownTransaction(t *testing.T) {
	f := newFixture(t)

	body := callbackBody("INV/20250101/UNKNOWN", "PAID", 100_000)
	if err := f.svc.HandleCallback(context.Background(), body, sign(body)); err != nil {
		t.Fatalf("expected ack for unknown transaction, got %v", err)
	}
}

func TestHandleCallbackPaid(t *testing.T) {
	f := newFixture(t)
	txn := f.seedPending(t)

	body := callbackBody(txn.MerchantRef, "PAID", txn.Total)
	if err := f.svc.HandleCallback(context.Background(), body, sign(body)); err != nil {
		t.Fatalf("handle callback: %v", err)
	}

	current, err := f.txns.FindByID(context.Background(), f.db, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Status != txndomain.StatusPaid {
		t.Fatalf("expected paid, got %s", current.Status)
	}
	if current.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}
	if current.Metadata["tripay_callback"] == nil {
		t.Fatal("expected callback payload merged into metadata")
	}

	enrollments, notifications := f.counts(t)
	if enrollments != 1 {
		t.Fatalf("expected 1 enrollment, got %d", enrollments)
	}
	if notifications != 1 {
		t.Fatalf("expected 1 notification, got %d", notifications)
	}
}

func TestHandleCallbackPaidRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := obsmetrics.New(obsmetrics.Config{ServiceName: "kelaspay-test"}, provider)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	f := newFixtureWithMetrics(t, metrics)
	txn := f.seedPending(t)

	body := callbackBody(txn.MerchantRef, "PAID", txn.Total)
	if err := f.svc.HandleCallback(context.Background(), body, sign(body)); err != nil {
		t.Fatalf("handle callback: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got := counterTotal(rm, "kelaspay_enrollments_total", "source", "callback"); got != 1 {
		t.Fatalf("expected 1 enrollment recorded with source=callback, got %d", got)
	}
	if got := counterTotal(rm, "kelaspay_notifications_total", "notification_type", "payment_success"); got != 1 {
		t.Fatalf("expected 1 notification recorded, got %d", got)
	}
}

func counterTotal(rm metricdata.ResourceMetrics, name, attrKey, attrValue string) int64 {
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(attrKey)); ok && v.AsString() == attrValue {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestHandleCallbackDuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	txn := f.seedPending(t)

	body := callbackBody(txn.MerchantRef, "PAID", txn.Total)
	if err := f.svc.HandleCallback(context.Background(), body, sign(body)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	current, err := f.txns.FindByID(context.Background(), f.db, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	firstPaidAt := *current.PaidAt

	if err := f.svc.HandleCallback(context.Background(), body, sign(body)); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	current, err = f.txns.FindByID(context.Background(), f.db, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !current.PaidAt.Equal(firstPaidAt) {
		t.Fatalf("expected paid_at untouched, got %v then %v", firstPaidAt, current.PaidAt)
	}

	enrollments, notifications := f.counts(t)
	if enrollments != 1 {
		t.Fatalf("expected 1 enrollment after duplicate, got %d", enrollments)
	}
	if notifications != 1 {
		t.Fatalf("expected 1 notification after duplicate, got %d", notifications)
	}
}

func TestHandleCallbackConflictingTerminal(t *testing.T) {
	f := newFixture(t)
	txn := f.seedPending(t)

	paid := callbackBody(txn.MerchantRef, "PAID", txn.Total)
	if err := f.svc.HandleCallback(context.Background(), paid, sign(paid)); err != nil {
		t.Fatalf("paid delivery: %v", err)
	}

	failed := callbackBody(txn.MerchantRef, "FAILED", txn.Total)
	if err := f.svc.HandleCallback(context.Background(), failed, sign(failed)); err != nil {
		t.Fatalf("failed delivery: %v", err)
	}

	current, err := f.txns.FindByID(context.Background(), f.db, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Status != txndomain.StatusPaid {
		t.Fatalf("expected first terminal state to win, got %s", current.Status)
	}
}

func TestHandleCallbackExpired(t *testing.T) {
	f := newFixture(t)
	txn := f.seedPending(t)

	body := callbackBody(txn.MerchantRef, "EXPIRED", txn.Total)
	if err := f.svc.HandleCallback(context.Background(), body, sign(body)); err != nil {
		t.Fatalf("handle callback: %v", err)
	}

	current, err := f.txns.FindByID(context.Background(), f.db, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Status != txndomain.StatusExpired {
		t.Fatalf("expected expired, got %s", current.Status)
	}
	if current.PaidAt != nil {
		t.Fatal("expected paid_at to stay empty")
	}

	enrollments, notifications := f.counts(t)
	if enrollments != 0 {
		t.Fatalf("expected no enrollment, got %d", enrollments)
	}
	if notifications != 1 {
		t.Fatalf("expected 1 notification, got %d", notifications)
	}
}

func TestHandleCallbackUnrecognizedStatus(t *testing.T) {
	f := newFixture(t)
	txn := f.seedPending(t)

	body := callbackBody(txn.MerchantRef, "ON_HOLD", txn.Total)
	if err := f.svc.HandleCallback(context.Background(), body, sign(body)); err != nil {
		t.Fatalf("expected ack for unrecognized status, got %v", err)
	}

	current, err := f.txns.FindByID(context.Background(), f.db, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Status != txndomain.StatusPending {
		t.Fatalf("expected pending, got %s", current.Status)
	}
}
