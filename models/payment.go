package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taajiri/pawnshop_backend/config"
	"github.com/taajiri/pawnshop_backend/utils"
)

// Payment is one immutable ledger entry against a loan. Entries are never
// updated or deleted; corrections are new entries.
type Payment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	LoanId        int             `gorm:"index;not null" json:"loan_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	PaymentMethod PaymentMethod   `gorm:"size:16;not null" json:"payment_method"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	RecordedBy    string          `gorm:"size:128" json:"recorded_by"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPayment struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethod PaymentMethod   `json:"payment_method" binding:"required"`
	PaymentDate   time.Time       `json:"payment_date"`
	Notes         string          `json:"notes"`
}

// PaymentResult is the caller-facing summary of a recorded payment. The
// remaining balance is spelled out so clients never have to re-derive
// total + penalties - repaid themselves.
type PaymentResult struct {
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	TotalRepaid      decimal.Decimal `json:"total_repaid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Status           LoanStatus      `json:"status"`
	Loan             *Loan           `json:"loan"`
}

func (l *Loan) paymentResult(amountPaid decimal.Decimal) *PaymentResult {
	return &PaymentResult{
		AmountPaid:       amountPaid,
		TotalRepaid:      l.AmountRepaid,
		RemainingBalance: l.OutstandingBalance(),
		Status:           l.Status,
		Loan:             l,
	}
}

// applyPaymentAmount validates one payment against the loan's accrued
// balance and mutates the cached repayment fields. Overpayment by any
// amount, even a cent, is rejected outright so the ledger can never go
// negative.
func (l *Loan) applyPaymentAmount(amount decimal.Decimal, rules *BusinessRules, at time.Time) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("nonPositiveAmount", "payment amount must be positive")
	}
	if l.Status == LoanStatusPaid {
		return NewStateError("loanAlreadyPaid", "loan is already fully repaid")
	}

	// Accrue up to the payment date first so the balance includes today's
	// penalties.
	l.Refresh(rules, at)

	balance := l.OutstandingBalance()
	if amount.GreaterThan(balance) {
		return NewValidationError("overpayment", "payment exceeds the outstanding balance of "+balance.StringFixed(2))
	}

	l.AmountRepaid = l.AmountRepaid.Add(amount)
	l.Refresh(rules, at)
	return nil
}

// ApplyPayment records a repayment under a per-loan distributed lock and a
// row lock. Full repayment releases the collateral and emits loan.paid in
// the same transaction.
func ApplyPayment(ctx context.Context, loanId int, input *NewPayment) (*PaymentResult, error) {
	if !input.PaymentMethod.Valid() {
		return nil, NewValidationError("invalidPaymentMethod", "unknown payment method")
	}

	lock, err := utils.ObtainLoanLock(ctx, loanId, "payment", "ApplyPayment")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	rules, err := GetBusinessRules(ctx)
	if err != nil {
		return nil, err
	}

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}

	db := config.GetDB()
	tx := db.Begin()

	loan, err := fetchLoanForUpdate(ctx, tx, loanId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	before := *loan

	if err := loan.applyPaymentAmount(input.Amount, rules, paymentDate); err != nil {
		tx.Rollback()
		return nil, err
	}

	recordedBy, _ := utils.GetUserNameFromContext(ctx)
	payment := Payment{
		LoanId:        loanId,
		Amount:        input.Amount,
		PaymentMethod: input.PaymentMethod,
		PaymentDate:   paymentDate,
		RecordedBy:    recordedBy,
		Notes:         input.Notes,
	}
	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.WithContext(ctx).Model(loan).Updates(map[string]interface{}{
		"AmountRepaid": loan.AmountRepaid,
		"Penalties":    loan.Penalties,
		"Status":       loan.Status,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if loan.Status == LoanStatusPaid {
		var collateral Collateral
		if err := tx.WithContext(ctx).First(&collateral, loan.CollateralId).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if collateral.release(paymentDate) {
			err = tx.WithContext(ctx).Model(&collateral).Updates(map[string]interface{}{
				"IsHeld":     collateral.IsHeld,
				"ReleasedAt": collateral.ReleasedAt,
			}).Error
			if err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		if err := PublishLoanEvent(ctx, tx, LoanEventPaid, loan.ID, loan, &before); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	fresh, err := GetLoan(ctx, loanId)
	if err != nil {
		return nil, err
	}
	return fresh.paymentResult(input.Amount), nil
}

// ListPayments returns the payment ledger for a loan, oldest first.
func ListPayments(ctx context.Context, loanId int) ([]*Payment, error) {
	if err := utils.ValidateResourceId[Loan](ctx, loanId); err != nil {
		return nil, NewNotFoundError("loan", loanId)
	}
	db := config.GetDB()
	var payments []*Payment
	err := db.WithContext(ctx).Where("loan_id = ?", loanId).Order("payment_date ASC, id ASC").Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
