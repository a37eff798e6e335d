package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testRules() *BusinessRules {
	r := defaultBusinessRules()
	return &r
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newTestLoan builds a loan issued at the given date with the quote already
// frozen in, the way origination stores it.
func newTestLoan(principal string, periodWeeks int, rate string, issued time.Time) *Loan {
	p := dec(principal)
	r := dec(rate)
	_, total := Quote(p, r)
	return &Loan{
		ID:              1,
		AmountIssued:    p,
		LoanPeriodWeeks: periodWeeks,
		InterestRate:    r,
		DateIssued:      issued,
		DueDate:         issued.AddDate(0, 0, periodWeeks*7),
		TotalAmount:     total,
		AmountRepaid:    decimal.Zero,
		Penalties:       decimal.Zero,
		Status:          LoanStatusActive,
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name         string
		principal    string
		rate         string
		wantInterest string
		wantTotal    string
	}{
		{"two week standard", "20000", "21", "4200", "24200"},
		{"four week standard", "20000", "28", "5600", "25600"},
		{"one week standard", "10000", "15", "1500", "11500"},
		{"fractional interest rounds half up", "333.33", "15", "50.00", "383.33"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interest, total := Quote(dec(tt.principal), dec(tt.rate))
			if !interest.Equal(dec(tt.wantInterest)) {
				t.Errorf("interest = %s, want %s", interest, tt.wantInterest)
			}
			if !total.Equal(dec(tt.wantTotal)) {
				t.Errorf("total = %s, want %s", total, tt.wantTotal)
			}
		})
	}
}

func TestValidateOrigination(t *testing.T) {
	rules := testRules()
	negRate := dec("18")

	tests := []struct {
		name         string
		principal    string
		periodWeeks  int
		isNegotiable bool
		rate         *decimal.Decimal
		wantRate     string
		wantCode     string
	}{
		{"standard two weeks", "20000", 2, false, nil, "21", ""},
		{"standard four weeks above minimum", "20000", 4, false, nil, "28", ""},
		{"four weeks below minimum", "10000", 4, false, nil, "", "min4week"},
		{"five weeks unsupported", "20000", 5, false, nil, "", "unsupportedPeriod"},
		{"zero amount", "0", 2, false, nil, "", "nonPositiveAmount"},
		{"negotiable with explicit rate", "60000", 2, true, &negRate, "18", ""},
		{"negotiable without rate", "60000", 2, true, nil, "", "missingRate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := ValidateOrigination(rules, dec(tt.principal), tt.periodWeeks, tt.isNegotiable, tt.rate)
			if tt.wantCode != "" {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("err = %v, want validation error %q", err, tt.wantCode)
				}
				if ve.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", ve.Code, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !rate.Equal(dec(tt.wantRate)) {
				t.Errorf("rate = %s, want %s", rate, tt.wantRate)
			}
		})
	}
}

func TestDeriveStatusTimeline(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	due := issued.AddDate(0, 0, 14)

	tests := []struct {
		name          string
		asOf          time.Time
		wantStatus    LoanStatus
		wantPenalties string
	}{
		{"before due date", due.AddDate(0, 0, -1), LoanStatusActive, "0"},
		{"on due date", due, LoanStatusDue, "0"},
		{"last day of grace", due.AddDate(0, 0, 3), LoanStatusDue, "0"},
		{"partial day past grace still in grace", due.Add(3*24*time.Hour + 5*time.Hour), LoanStatusDue, "0"},
		{"first chargeable day", due.AddDate(0, 0, 4), LoanStatusPastDue, "600"},
		{"three days past grace", due.AddDate(0, 0, 6), LoanStatusPastDue, "1800"},
		{"day thirty still past due", due.AddDate(0, 0, 30), LoanStatusPastDue, "16200"},
		{"day thirty one defaults", due.AddDate(0, 0, 31), LoanStatusDefaulted, "16200"},
		{"accrual stops after default threshold", due.AddDate(0, 0, 90), LoanStatusDefaulted, "16200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := newTestLoan("20000", 2, "21", issued)
			status, penalties := DeriveStatus(loan, rules, tt.asOf)
			if status != tt.wantStatus {
				t.Errorf("status = %s, want %s", status, tt.wantStatus)
			}
			if !penalties.Equal(dec(tt.wantPenalties)) {
				t.Errorf("penalties = %s, want %s", penalties, tt.wantPenalties)
			}
		})
	}
}

func TestDeriveStatusIsIdempotent(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	asOf := issued.AddDate(0, 0, 20)

	loan := newTestLoan("20000", 2, "21", issued)
	loan.Refresh(rules, asOf)
	status1, penalties1 := loan.Status, loan.Penalties

	// Re-deriving at the same instant must not change anything.
	if changed := loan.Refresh(rules, asOf); changed {
		t.Error("second refresh at the same date reported a change")
	}
	if loan.Status != status1 || !loan.Penalties.Equal(penalties1) {
		t.Errorf("second derivation differs: %s/%s vs %s/%s", loan.Status, loan.Penalties, status1, penalties1)
	}
}

func TestDeriveStatusPenaltiesNeverDecrease(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	loan := newTestLoan("20000", 2, "21", issued)
	loan.Refresh(rules, issued.AddDate(0, 0, 25))
	accrued := loan.Penalties
	if accrued.IsZero() {
		t.Fatal("expected accrued penalties")
	}

	// A partial repayment shrinks the penalty base; already-accrued penalties
	// must stand.
	loan.AmountRepaid = dec("15000")
	loan.Refresh(rules, issued.AddDate(0, 0, 25))
	if loan.Penalties.LessThan(accrued) {
		t.Errorf("penalties decreased after repayment: %s < %s", loan.Penalties, accrued)
	}
}

func TestDeriveStatusDefaultedIsSticky(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	loan := newTestLoan("20000", 2, "21", issued)
	loan.Refresh(rules, issued.AddDate(0, 0, 60))
	if loan.Status != LoanStatusDefaulted {
		t.Fatalf("status = %s, want defaulted", loan.Status)
	}

	// Evaluating at an earlier date must not resurrect the loan.
	status, _ := DeriveStatus(loan, rules, issued.AddDate(0, 0, 10))
	if status != LoanStatusDefaulted {
		t.Errorf("status = %s, want defaulted to stick", status)
	}
}

func TestDeriveStatusPaidIsTerminal(t *testing.T) {
	rules := testRules()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	loan := newTestLoan("20000", 2, "21", issued)
	loan.AmountRepaid = loan.TotalAmount
	loan.Refresh(rules, loan.DueDate)
	if loan.Status != LoanStatusPaid {
		t.Fatalf("status = %s, want paid", loan.Status)
	}

	// Months later, no penalties may appear on a settled loan.
	status, penalties := DeriveStatus(loan, rules, issued.AddDate(0, 6, 0))
	if status != LoanStatusPaid {
		t.Errorf("status = %s, want paid", status)
	}
	if !penalties.IsZero() {
		t.Errorf("penalties = %s, want 0 on a settled loan", penalties)
	}
}

func TestOutstandingBalance(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loan := newTestLoan("20000", 4, "28", issued)
	if !loan.OutstandingBalance().Equal(dec("25600")) {
		t.Errorf("balance = %s, want 25600", loan.OutstandingBalance())
	}
	loan.AmountRepaid = dec("10000")
	loan.Penalties = dec("1800")
	if !loan.OutstandingBalance().Equal(dec("17400")) {
		t.Errorf("balance = %s, want 17400", loan.OutstandingBalance())
	}
}

func TestIsEditable(t *testing.T) {
	loan := &Loan{AgreementStatus: AgreementStatusPendingUpload}
	if !loan.IsEditable() {
		t.Error("pending_upload loan should be editable")
	}
	for _, s := range []AgreementStatus{AgreementStatusPendingApproval, AgreementStatusApproved, AgreementStatusRejected} {
		loan.AgreementStatus = s
		if loan.IsEditable() {
			t.Errorf("loan with agreement %s should not be editable", s)
		}
	}
}
