package domain

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewInvoiceNumber builds the externally visible invoice identifier,
// INV/<yyyyMMdd>/<ulid>. The ULID suffix keeps numbers unique without a
// database sequence and still sorts by creation time within a day.
func NewInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV/%s/%s", now.UTC().Format("20060102"), ulid.Make().String())
}
