package domain

import "testing"

func TestStatusTransitions(t *testing.T) {
	terminals := []TransactionStatus{StatusPaid, StatusExpired, StatusFailed, StatusRefund}

	for _, target := range terminals {
		if !StatusPending.CanTransitionTo(target) {
			t.Fatalf("pending should transition to %s", target)
		}
	}

	for _, from := range terminals {
		if !from.IsTerminal() {
			t.Fatalf("%s should be terminal", from)
		}
		for _, target := range append(terminals, StatusPending) {
			if from.CanTransitionTo(target) {
				t.Fatalf("terminal %s must not transition to %s", from, target)
			}
		}
	}

	if StatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	if StatusPending.CanTransitionTo(StatusPending) {
		t.Fatal("pending to pending is not a transition")
	}
	if TransactionStatus("bogus").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}
