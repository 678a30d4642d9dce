package webhook

import (
	"context"
	"fmt"
	"time"

	enrollmentdomain "github.com/kelaspay/kelaspay/internal/enrollment/domain"
	notificationdomain "github.com/kelaspay/kelaspay/internal/notification/domain"
	obsmetrics "github.com/kelaspay/kelaspay/internal/observability/metrics"
	paymentdomain "github.com/kelaspay/kelaspay/internal/payment/domain"
	txndomain "github.com/kelaspay/kelaspay/internal/transaction/domain"
	userdomain "github.com/kelaspay/kelaspay/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Gateway    paymentdomain.Gateway
	TxnRepo    txndomain.Repository
	UserRepo   userdomain.Repository
	Enrollment enrollmentdomain.Service
	Notifier   notificationdomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

// Service reconciles gateway payment-status callbacks into transaction state.
// Reconciliation failures after signature verification are acked, never
// errored, so the gateway does not retry indefinitely.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	gateway    paymentdomain.Gateway
	txnRepo    txndomain.Repository
	userRepo   userdomain.Repository
	enrollment enrollmentdomain.Service
	notifier   notificationdomain.Service
	metrics    *obsmetrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		gateway:    p.Gateway,
		txnRepo:    p.TxnRepo,
		userRepo:   p.UserRepo,
		enrollment: p.Enrollment,
		notifier:   p.Notifier,
		metrics:    p.Metrics,
	}
}

// HandleCallback verifies, parses and applies one gateway callback. Only a
// bad signature or malformed body is returned as an error; everything past
// that point acks so the delivery is not retried.
func (s *Service) HandleCallback(ctx context.Context, payload []byte, signature string) error {
	if err := s.gateway.VerifyCallbackSignature(payload, signature); err != nil {
		return err
	}

	event, err := s.gateway.ParseCallback(payload)
	if err != nil {
		return err
	}

	txn, err := s.lookup(ctx, event)
	if err != nil {
		return err
	}
	if txn == nil {
		s.log.Warn("callback for unknown transaction",
			zap.String("merchant_ref", event.MerchantRef),
			zap.String("reference", event.Reference),
		)
		return nil
	}

	target, ok := mapCallbackStatus(event.Status)
	if !ok {
		s.log.Warn("callback with unrecognized status",
			zap.String("merchant_ref", event.MerchantRef),
			zap.String("status", event.Status),
		)
		return nil
	}

	if event.TotalAmount != 0 && event.TotalAmount != txn.Total {
		s.log.Warn("callback amount differs from stored total",
			zap.String("invoice_number", txn.InvoiceNumber),
			zap.Int64("stored", txn.Total),
			zap.Int64("reported", event.TotalAmount),
		)
	}

	now := time.Now().UTC()
	var paidAt *time.Time
	if target == txndomain.StatusPaid {
		at := now
		if event.PaidAt > 0 {
			at = time.Unix(event.PaidAt, 0).UTC()
		}
		paidAt = &at
	}

	won, err := s.txnRepo.SettleIfPending(ctx, s.db, txn.ID, target, paidAt, now)
	if err != nil {
		return err
	}
	if !won {
		current, err := s.txnRepo.FindByID(ctx, s.db, txn.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}
		if current.Status == target {
			s.log.Info("duplicate callback ignored",
				zap.String("invoice_number", txn.InvoiceNumber),
				zap.String("status", string(target)),
			)
			return nil
		}
		s.log.Warn("conflicting terminal callback ignored, keeping first transition",
			zap.String("invoice_number", txn.InvoiceNumber),
			zap.String("stored", string(current.Status)),
			zap.String("reported", string(target)),
		)
		return nil
	}

	s.recordCallback(ctx, txn, event)
	s.applySideEffects(ctx, txn, target)
	return nil
}

func (s *Service) lookup(ctx context.Context, event *paymentdomain.CallbackEvent) (*txndomain.Transaction, error) {
	if event.MerchantRef == "" {
		return nil, nil
	}
	txn, err := s.txnRepo.FindByMerchantRef(ctx, s.db, event.MerchantRef)
	if err != nil {
		return nil, err
	}
	if txn != nil {
		return txn, nil
	}
	// Merchant ref defaults to the invoice number at creation; fall back
	// in case the gateway echoed an older record.
	return s.txnRepo.FindByInvoiceNumber(ctx, s.db, event.MerchantRef)
}

func (s *Service) recordCallback(ctx context.Context, txn *txndomain.Transaction, event *paymentdomain.CallbackEvent) {
	txn.MergeMetadata(map[string]any{
		"tripay_callback": map[string]any{
			"reference":    event.Reference,
			"status":       event.Status,
			"total_amount": event.TotalAmount,
			"paid_at":      event.PaidAt,
		},
	})
	if err := s.txnRepo.UpdateMetadata(ctx, s.db, txn.ID, txn.Metadata, time.Now().UTC()); err != nil {
		s.log.Warn("failed to record callback metadata",
			zap.String("invoice_number", txn.InvoiceNumber),
			zap.Error(err),
		)
	}
}

func (s *Service) applySideEffects(ctx context.Context, txn *txndomain.Transaction, status txndomain.TransactionStatus) {
	user, err := s.userRepo.FindByID(ctx, s.db, txn.UserID)
	if err != nil {
		s.log.Warn("failed to load user for notification",
			zap.String("invoice_number", txn.InvoiceNumber),
			zap.Error(err),
		)
		user = &userdomain.User{ID: txn.UserID}
	}

	switch status {
	case txndomain.StatusPaid:
		if _, err := s.enrollment.Activate(ctx, txn.UserID, txn.CourseID); err != nil {
			s.log.Error("failed to activate enrollment after payment",
				zap.String("invoice_number", txn.InvoiceNumber),
				zap.Error(err),
			)
		} else {
			s.metrics.RecordEnrollment(ctx, "callback")
		}
		s.dispatch(ctx, txn, user, notificationdomain.TypePaymentSuccess,
			"Pembayaran berhasil",
			fmt.Sprintf("Pembayaran untuk %s sudah kami terima. Selamat belajar!", txn.InvoiceNumber),
		)
	case txndomain.StatusExpired:
		s.dispatch(ctx, txn, user, notificationdomain.TypePaymentExpired,
			"Pembayaran kedaluwarsa",
			fmt.Sprintf("Tagihan %s sudah melewati batas waktu pembayaran.", txn.InvoiceNumber),
		)
	case txndomain.StatusFailed:
		s.dispatch(ctx, txn, user, notificationdomain.TypePaymentFailed,
			"Pembayaran gagal",
			fmt.Sprintf("Pembayaran untuk %s gagal diproses.", txn.InvoiceNumber),
		)
	case txndomain.StatusRefund:
		// Refunds keep the enrollment; reversal is a manual operation.
	}
}

func (s *Service) dispatch(ctx context.Context, txn *txndomain.Transaction, user *userdomain.User, typ notificationdomain.NotificationType, title, body string) {
	err := s.notifier.Dispatch(ctx, notificationdomain.Dispatch{
		UserID: txn.UserID,
		Email:  user.Email,
		Type:   typ,
		Title:  title,
		Body:   body,
		Metadata: map[string]any{
			"transaction_id": txn.ID.String(),
			"invoice_number": txn.InvoiceNumber,
		},
	})
	if err != nil {
		s.log.Warn("failed to dispatch notification",
			zap.String("invoice_number", txn.InvoiceNumber),
			zap.Error(err),
		)
	}
}

func mapCallbackStatus(status string) (txndomain.TransactionStatus, bool) {
	switch status {
	case "PAID":
		return txndomain.StatusPaid, true
	case "EXPIRED":
		return txndomain.StatusExpired, true
	case "FAILED":
		return txndomain.StatusFailed, true
	case "REFUND":
		return txndomain.StatusRefund, true
	default:
		return "", false
	}
}
