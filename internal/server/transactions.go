package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/kelaspay/kelaspay/internal/money"
	"github.com/kelaspay/kelaspay/internal/providers/pdf"
	txndomain "github.com/kelaspay/kelaspay/internal/transaction/domain"
	"github.com/kelaspay/kelaspay/pkg/db/pagination"
)

func (s *Server) ListTransactions(c *gin.Context) {
	userID, err := snowflake.ParseString(strings.TrimSpace(c.Query("user_id")))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid", "user_id must be a valid id"))
		return
	}

	page := pagination.Pagination{
		PageToken: c.Query("page_token"),
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			AbortWithError(c, newValidationError("page_size", "invalid", "page_size must be a positive number"))
			return
		}
		page.PageSize = size
	}

	items, info, err := s.txnRepo.ListByUser(c.Request.Context(), s.db, userID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": info})
}

func (s *Server) GetTransaction(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid", "id must be a valid id"))
		return
	}

	txn, err := s.txnRepo.FindByID(c.Request.Context(), s.db, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if txn == nil {
		AbortWithError(c, txndomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txn})
}

// DownloadReceipt renders a paid transaction as a PDF. Receipts exist only
// for paid transactions; everything else is a validation error, not a miss.
func (s *Server) DownloadReceipt(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid", "id must be a valid id"))
		return
	}

	ctx := c.Request.Context()

	txn, err := s.txnRepo.FindByID(ctx, s.db, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if txn == nil {
		AbortWithError(c, txndomain.ErrNotFound)
		return
	}
	if txn.Status != txndomain.StatusPaid {
		AbortWithError(c, newValidationError("status", "not_paid", "receipt is only available for paid transactions"))
		return
	}

	buyer, err := s.userRepo.FindByID(ctx, s.db, txn.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	item, err := s.courseRepo.FindByID(ctx, s.db, txn.CourseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.ReceiptData{
		InvoiceNumber:  txn.InvoiceNumber,
		PaymentMethod:  string(txn.PaymentMethod),
		PaymentChannel: txn.PaymentChannel,
		Subtotal:       money.FormatIDR(txn.Amount),
		Discount:       money.FormatIDR(txn.Discount),
		AdminFee:       money.FormatIDR(txn.AdminFee),
		Total:          money.FormatIDR(txn.Total),
	}
	if txn.PaidAt != nil {
		data.DatePaid = txn.PaidAt.Format("2 January 2006 15:04 MST")
	}
	if buyer != nil {
		data.BuyerName = buyer.Name
		data.BuyerEmail = buyer.Email
	}
	description := txn.InvoiceNumber
	if item != nil {
		description = item.Title
	}
	data.Items = []pdf.ReceiptItem{{
		Description: description,
		Qty:         1,
		UnitPrice:   money.FormatIDR(txn.Amount),
		Amount:      money.FormatIDR(txn.Amount),
	}}

	reader, err := s.receipts.GenerateReceipt(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := strings.ReplaceAll(txn.InvoiceNumber, "/", "-") + ".pdf"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, nil)
}
