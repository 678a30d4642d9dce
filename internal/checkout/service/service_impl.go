package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/checkout/domain"
	"github.com/kelaspay/kelaspay/internal/config"
	coursedomain "github.com/kelaspay/kelaspay/internal/course/domain"
	enrollmentdomain "github.com/kelaspay/kelaspay/internal/enrollment/domain"
	"github.com/kelaspay/kelaspay/internal/money"
	obsmetrics "github.com/kelaspay/kelaspay/internal/observability/metrics"
	paymentdomain "github.com/kelaspay/kelaspay/internal/payment/domain"
	promodomain "github.com/kelaspay/kelaspay/internal/promo/domain"
	txndomain "github.com/kelaspay/kelaspay/internal/transaction/domain"
	userdomain "github.com/kelaspay/kelaspay/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Settings   *config.CheckoutConfigHolder
	TxnRepo    txndomain.Repository
	UserRepo   userdomain.Repository
	CourseRepo coursedomain.Repository
	Promo      promodomain.Service
	Enrollment enrollmentdomain.Service
	Gateway    paymentdomain.Gateway
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	cfg        config.Config
	settings   *config.CheckoutConfigHolder
	txnRepo    txndomain.Repository
	userRepo   userdomain.Repository
	courseRepo coursedomain.Repository
	promo      promodomain.Service
	enrollment enrollmentdomain.Service
	gateway    paymentdomain.Gateway
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("checkout.service"),
		genID:      p.GenID,
		cfg:        p.Cfg,
		settings:   p.Settings,
		txnRepo:    p.TxnRepo,
		userRepo:   p.UserRepo,
		courseRepo: p.CourseRepo,
		promo:      p.Promo,
		enrollment: p.Enrollment,
		gateway:    p.Gateway,
		metrics:    p.Metrics,
	}
}

func (s *Service) Initiate(ctx context.Context, req domain.InitiateRequest) (*txndomain.Transaction, error) {
	user, err := s.userRepo.FindByID(ctx, s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}

	course, err := s.courseRepo.FindByID(ctx, s.db, req.CourseID)
	if err != nil {
		return nil, err
	}
	if course == nil || !course.IsActive {
		return nil, coursedomain.ErrNotFound
	}

	existing, err := s.enrollment.Find(ctx, req.UserID, req.CourseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyEnrolled
	}

	if !req.PaymentMethod.Valid() {
		return nil, domain.ErrInvalidPaymentMethod
	}
	isGateway := req.PaymentMethod == txndomain.PaymentMethodGateway
	if isGateway && req.PaymentChannel == "" {
		return nil, domain.ErrChannelRequired
	}

	promo, err := s.promo.Resolve(ctx, req.PromoCode)
	if err != nil {
		return nil, err
	}
	var discount int64
	var promoID *snowflake.ID
	if promo != nil {
		discount = promo.Discount
		promoID = &promo.ID
	}

	settings := s.settings.Get()
	totals := money.ComputeTotals(course.Price, discount, settings.FeePercent, isGateway)

	now := time.Now().UTC()
	txn := txndomain.Transaction{
		ID:            s.genID.Generate(),
		InvoiceNumber: txndomain.NewInvoiceNumber(now),
		UserID:        user.ID,
		CourseID:      course.ID,
		PromoCodeID:   promoID,
		PaymentMethod: req.PaymentMethod,
		Amount:        course.Price,
		Discount:      totals.Discount,
		AdminFee:      totals.AdminFee,
		Total:         totals.GrandTotal,
		Status:        txndomain.StatusPending,
		Metadata:      datatypes.JSONMap{"source": "checkout"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	txn.MerchantRef = txn.InvoiceNumber
	if isGateway && settings.DefaultExpiry > 0 {
		// Placeholder deadline; the gateway's own expiry overwrites it
		// once the remote transaction exists.
		expiredAt := now.Add(settings.DefaultExpiry)
		txn.ExpiredAt = &expiredAt
	}

	if err := s.txnRepo.Insert(ctx, s.db, &txn); err != nil {
		return nil, err
	}

	if !isGateway {
		return s.settleCash(ctx, &txn)
	}
	return s.createGatewayTransaction(ctx, &txn, req.PaymentChannel, user, course)
}

// settleCash transitions the just-created transaction straight to paid. Cash
// has no external verification step, so settlement happens in-request.
func (s *Service) settleCash(ctx context.Context, txn *txndomain.Transaction) (*txndomain.Transaction, error) {
	now := time.Now().UTC()
	won, err := s.txnRepo.SettleIfPending(ctx, s.db, txn.ID, txndomain.StatusPaid, &now, now)
	if err != nil {
		return nil, err
	}
	if won {
		if _, err := s.enrollment.Activate(ctx, txn.UserID, txn.CourseID); err != nil {
			return nil, err
		}
		s.metrics.RecordEnrollment(ctx, "checkout")
	}
	return s.reload(ctx, txn.ID)
}

// courseURL builds the public catalog page for a course, shown by the
// gateway on its checkout page.
func (s *Service) courseURL(course *coursedomain.Course) string {
	base := strings.TrimRight(s.cfg.CourseBaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/courses/" + course.Slug
}

func (s *Service) createGatewayTransaction(ctx context.Context, txn *txndomain.Transaction, channel string, user *userdomain.User, course *coursedomain.Course) (*txndomain.Transaction, error) {
	created, err := s.gateway.CreateTransaction(ctx, paymentdomain.CreateTransactionRequest{
		Method:        channel,
		MerchantRef:   txn.MerchantRef,
		Amount:        txn.Total,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		CustomerPhone: user.Phone,
		OrderItems: []paymentdomain.OrderItem{{
			SKU:        course.Slug,
			Name:       course.Title,
			Price:      txn.Total,
			Quantity:   1,
			ProductURL: s.courseURL(course),
		}},
		ReturnURL: s.cfg.TripayReturnURL,
	})
	if err != nil {
		if errors.Is(err, paymentdomain.ErrGatewayRejected) {
			// An explicit rejection means no remote record exists; drop
			// the pending row rather than leave an orphan.
			if delErr := s.txnRepo.Delete(ctx, s.db, txn.ID); delErr != nil {
				s.log.Error("failed to delete rejected transaction",
					zap.String("invoice_number", txn.InvoiceNumber),
					zap.Error(delErr),
				)
			}
			return nil, err
		}
		// Ambiguous failure: the gateway may have accepted the request, so
		// the pending row stays for the callback to reconcile.
		s.log.Warn("gateway unreachable, keeping pending transaction",
			zap.String("invoice_number", txn.InvoiceNumber),
			zap.Error(err),
		)
		return nil, err
	}

	txn.PaymentChannel = created.PaymentMethod
	if txn.PaymentChannel == "" {
		txn.PaymentChannel = channel
	}
	txn.GatewayReference = created.Reference
	if created.MerchantRef != "" {
		txn.MerchantRef = created.MerchantRef
	}
	txn.PaymentURL = created.CheckoutURL
	if len(created.Instructions) > 0 {
		if raw, err := json.Marshal(created.Instructions); err == nil {
			txn.PaymentInstructions = datatypes.JSON(raw)
		}
	}
	// The gateway may apply channel fees we did not anticipate; its amount
	// is authoritative when present.
	if created.Amount > 0 {
		txn.Total = created.Amount
	}
	if created.ExpiredTime > 0 {
		expiredAt := time.Unix(created.ExpiredTime, 0).UTC()
		txn.ExpiredAt = &expiredAt
	}
	if created.Raw != nil {
		txn.MergeMetadata(map[string]any{"tripay": created.Raw})
	}
	txn.UpdatedAt = time.Now().UTC()

	if err := s.txnRepo.UpdateGatewayResult(ctx, s.db, txn); err != nil {
		return nil, err
	}
	return s.reload(ctx, txn.ID)
}

func (s *Service) reload(ctx context.Context, id snowflake.ID) (*txndomain.Transaction, error) {
	txn, err := s.txnRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, txndomain.ErrNotFound
	}
	return txn, nil
}
