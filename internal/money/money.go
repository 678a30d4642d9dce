package money

import (
	"math"
	"strconv"
	"strings"
)

// Totals is the monetary breakdown of a single checkout.
// All amounts are integer rupiah; fractional currency never leaves this package.
type Totals struct {
	Discount   int64
	BaseTotal  int64
	AdminFee   int64
	GrandTotal int64
}

// ComputeTotals applies promo discount and the gateway admin fee to a course
// price. The discount is clamped into [0, price]; the fee is only charged when
// applyFee is set. feeRatePercent accepts both plain ("2.5") and localized
// ("2,5") numeric strings and never fails: garbage input means a zero fee.
func ComputeTotals(price int64, promoDiscount int64, feeRatePercent string, applyFee bool) Totals {
	if price < 0 {
		price = 0
	}

	discount := promoDiscount
	if discount < 0 {
		discount = 0
	}
	if discount > price {
		discount = price
	}

	baseTotal := price - discount
	if baseTotal < 0 {
		baseTotal = 0
	}

	var adminFee int64
	if applyFee {
		rate := ParseFeePercent(feeRatePercent) / 100
		adminFee = int64(math.Round(float64(baseTotal) * rate))
	}

	return Totals{
		Discount:   discount,
		BaseTotal:  baseTotal,
		AdminFee:   adminFee,
		GrandTotal: baseTotal + adminFee,
	}
}

// ParseFeePercent parses a loosely formatted percentage string and clamps the
// result into [0, 100]. The stored setting may use Indonesian number
// formatting with "." as thousands separator and "," as decimal separator
// (e.g. "2.500,75"), so dots are stripped before the comma becomes the
// decimal point.
func ParseFeePercent(raw string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == '.' || r == ',':
			return r
		default:
			return -1
		}
	}, strings.TrimSpace(raw))

	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// FormatIDR renders an integer rupiah amount the way Indonesian receipts
// print it, e.g. 305000 becomes "Rp305.000".
func FormatIDR(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var grouped strings.Builder
	head := len(digits) % 3
	if head > 0 {
		grouped.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if grouped.Len() > 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteString(digits[i : i+3])
	}
	return sign + "Rp" + grouped.String()
}
