package models

import (
	"errors"
	"testing"
	"time"
)

func TestApplyPaymentAmountFullRepayment(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loan := newTestLoan("20000", 4, "28", issued)

	if err := loan.applyPaymentAmount(dec("25600"), rules, loan.DueDate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != LoanStatusPaid {
		t.Errorf("status = %s, want paid", loan.Status)
	}
	if !loan.OutstandingBalance().IsZero() {
		t.Errorf("balance = %s, want 0.00", loan.OutstandingBalance())
	}
}

func TestApplyPaymentAmountPartial(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loan := newTestLoan("20000", 4, "28", issued)

	if err := loan.applyPaymentAmount(dec("10000"), rules, issued.AddDate(0, 0, 7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != LoanStatusActive {
		t.Errorf("status = %s, want active", loan.Status)
	}
	if !loan.OutstandingBalance().Equal(dec("15600")) {
		t.Errorf("balance = %s, want 15600", loan.OutstandingBalance())
	}
}

func TestApplyPaymentAmountOverpaymentRejected(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loan := newTestLoan("20000", 4, "28", issued)

	// One cent over the balance must be refused and leave the ledger alone.
	err := loan.applyPaymentAmount(dec("25600.01"), rules, loan.DueDate)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != "overpayment" {
		t.Fatalf("err = %v, want overpayment validation error", err)
	}
	if !loan.AmountRepaid.IsZero() {
		t.Errorf("AmountRepaid = %s, want unchanged 0", loan.AmountRepaid)
	}
	if loan.Status == LoanStatusPaid {
		t.Error("rejected payment must not settle the loan")
	}
}

func TestApplyPaymentAmountCoversAccruedPenalties(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loan := newTestLoan("20000", 2, "21", issued)

	// Six days past due: 3 chargeable days at 3%/day on 20000 = 1800.
	payDate := loan.DueDate.AddDate(0, 0, 6)
	if err := loan.applyPaymentAmount(dec("26000"), rules, payDate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loan.Penalties.Equal(dec("1800")) {
		t.Errorf("penalties = %s, want 1800", loan.Penalties)
	}
	// 24200 total + 1800 penalties - 26000 = 0.
	if !loan.OutstandingBalance().IsZero() {
		t.Errorf("balance = %s, want 0", loan.OutstandingBalance())
	}
	if loan.Status != LoanStatusPaid {
		t.Errorf("status = %s, want paid", loan.Status)
	}
}

func TestApplyPaymentAmountGuards(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("non-positive amount", func(t *testing.T) {
		loan := newTestLoan("20000", 2, "21", issued)
		err := loan.applyPaymentAmount(dec("0"), rules, loan.DueDate)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Code != "nonPositiveAmount" {
			t.Fatalf("err = %v, want nonPositiveAmount", err)
		}
	})

	t.Run("already paid", func(t *testing.T) {
		loan := newTestLoan("20000", 2, "21", issued)
		loan.AmountRepaid = loan.TotalAmount
		loan.Status = LoanStatusPaid
		err := loan.applyPaymentAmount(dec("100"), rules, loan.DueDate)
		var se *StateError
		if !errors.As(err, &se) || se.Code != "loanAlreadyPaid" {
			t.Fatalf("err = %v, want loanAlreadyPaid", err)
		}
	})
}

func TestApplyPaymentAmountOnDefaultedLoan(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loan := newTestLoan("20000", 2, "21", issued)

	// Way past the default threshold: capped penalties are 16200.
	payDate := loan.DueDate.AddDate(0, 0, 60)
	loan.Refresh(rules, payDate)
	if loan.Status != LoanStatusDefaulted {
		t.Fatalf("status = %s, want defaulted", loan.Status)
	}

	// Paying off the whole accrued balance settles even a defaulted loan.
	if err := loan.applyPaymentAmount(dec("40400"), rules, payDate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != LoanStatusPaid {
		t.Errorf("status = %s, want paid", loan.Status)
	}
	if !loan.OutstandingBalance().IsZero() {
		t.Errorf("balance = %s, want 0", loan.OutstandingBalance())
	}
}

func TestPaymentResultReportsRemainingBalance(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loan := newTestLoan("20000", 4, "28", issued)

	if err := loan.applyPaymentAmount(dec("10000"), rules, issued.AddDate(0, 0, 7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := loan.paymentResult(dec("10000"))
	if !result.AmountPaid.Equal(dec("10000")) {
		t.Errorf("amount_paid = %s, want 10000", result.AmountPaid)
	}
	if !result.TotalRepaid.Equal(dec("10000")) {
		t.Errorf("total_repaid = %s, want 10000", result.TotalRepaid)
	}
	if !result.RemainingBalance.Equal(dec("15600")) {
		t.Errorf("remaining_balance = %s, want 15600", result.RemainingBalance)
	}
	if result.Status != LoanStatusActive {
		t.Errorf("status = %s, want active", result.Status)
	}

	if err := loan.applyPaymentAmount(dec("15600"), rules, loan.DueDate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result = loan.paymentResult(dec("15600"))
	if !result.RemainingBalance.IsZero() {
		t.Errorf("remaining_balance = %s, want 0.00", result.RemainingBalance)
	}
	if result.Status != LoanStatusPaid {
		t.Errorf("status = %s, want paid", result.Status)
	}
	if !result.TotalRepaid.Equal(dec("25600")) {
		t.Errorf("total_repaid = %s, want 25600", result.TotalRepaid)
	}
}
