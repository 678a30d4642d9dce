package domain

// TransactionStatus is the closed lifecycle of a purchase attempt. A pending
// transaction settles into exactly one terminal status; terminal statuses are
// never left again by this service.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusPaid    TransactionStatus = "paid"
	StatusExpired TransactionStatus = "expired"
	StatusFailed  TransactionStatus = "failed"
	StatusRefund  TransactionStatus = "refund"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusExpired, StatusFailed, StatusRefund:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the reconciler performs no further automated
// transition out of this status.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusExpired, StatusFailed, StatusRefund:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the status machine allows moving from s to
// target. Only pending transactions move; the first terminal status wins.
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	if s != StatusPending {
		return false
	}
	return target.IsTerminal()
}

func (s TransactionStatus) String() string { return string(s) }
