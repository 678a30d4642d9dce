package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/transaction/domain"
	"github.com/kelaspay/kelaspay/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) (domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()
	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.Transaction{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	return Provide(), dbConn, node
}

func seedPending(t *testing.T, repo domain.Repository, dbConn *gorm.DB, node *snowflake.Node) *domain.Transaction {
	t.Helper()
	now := time.Now().UTC()
	txn := domain.Transaction{
		ID:            node.Generate(),
		InvoiceNumber: domain.NewInvoiceNumber(now),
		UserID:        node.Generate(),
		CourseID:      node.Generate(),
		PaymentMethod: domain.PaymentMethodGateway,
		Amount:        300_000,
		Total:         305_000,
		Status:        domain.StatusPending,
		Metadata:      datatypes.JSONMap{"source": "checkout"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	txn.MerchantRef = txn.InvoiceNumber
	if err := repo.Insert(context.Background(), dbConn, &txn); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return &txn
}

func TestUpdateGatewayResultKeepsConcurrentMetadata(t *testing.T) {
	repo, dbConn, node := newTestRepo(t)
	txn := seedPending(t, repo, dbConn, node)

	// A callback settles the row while the checkout still holds a stale
	// in-memory copy of the metadata.
	concurrent := datatypes.JSONMap{
		"source":          "checkout",
		"tripay_callback": map[string]any{"status": "PAID"},
	}
	if err := repo.UpdateMetadata(context.Background(), dbConn, txn.ID, concurrent, time.Now().UTC()); err != nil {
		t.Fatalf("update metadata: %v", err)
	}

	stale := *txn
	stale.GatewayReference = "T0001REF1"
	stale.Metadata = datatypes.JSONMap{
		"source": "checkout",
		"tripay": map[string]any{"reference": "T0001REF1"},
	}
	stale.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateGatewayResult(context.Background(), dbConn, &stale); err != nil {
		t.Fatalf("update gateway result: %v", err)
	}

	current, err := repo.FindByID(context.Background(), dbConn, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Metadata["tripay_callback"] == nil {
		t.Fatal("expected callback metadata to survive the gateway update")
	}
	if current.Metadata["tripay"] == nil {
		t.Fatal("expected gateway metadata to be written")
	}
	if current.GatewayReference != "T0001REF1" {
		t.Fatalf("expected gateway reference written, got %q", current.GatewayReference)
	}
}

func TestUpdateGatewayResultWritesMetadata(t *testing.T) {
	repo, dbConn, node := newTestRepo(t)
	txn := seedPending(t, repo, dbConn, node)

	txn.Metadata = datatypes.JSONMap{
		"source": "checkout",
		"tripay": map[string]any{"reference": "T0001REF2"},
	}
	txn.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateGatewayResult(context.Background(), dbConn, txn); err != nil {
		t.Fatalf("update gateway result: %v", err)
	}

	current, err := repo.FindByID(context.Background(), dbConn, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Metadata["tripay"] == nil {
		t.Fatal("expected gateway metadata to be written")
	}
	if current.Metadata["source"] != "checkout" {
		t.Fatalf("expected source preserved, got %v", current.Metadata["source"])
	}
}
