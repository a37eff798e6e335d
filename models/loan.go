package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taajiri/pawnshop_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var hundred = decimal.NewFromInt(100)

// round2 rounds to two decimal places, half up. Monetary values are rounded
// once at computation time and stored; they are never re-derived from other
// rounded components.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Loan is the ledger record for cash issued against one collateral item.
// TotalAmount is the source of truth for the amount payable; Status and
// Penalties are caches refreshed from DeriveStatus on every read/write
// boundary.
type Loan struct {
	ID           int         `gorm:"primary_key" json:"id"`
	BorrowerId   int         `gorm:"index;not null" json:"borrower_id"`
	CollateralId int         `gorm:"uniqueIndex;not null" json:"collateral_id"`
	Borrower     *Borrower   `json:"borrower,omitempty"`
	Collateral   *Collateral `json:"collateral,omitempty"`

	AmountIssued    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount_issued"`
	LoanPeriodWeeks int             `gorm:"not null" json:"loan_period_weeks"`
	InterestRate    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"interest_rate"`
	IsNegotiable    bool            `gorm:"not null;default:false" json:"is_negotiable"`
	DateIssued      time.Time       `gorm:"not null" json:"date_issued"`
	DueDate         time.Time       `gorm:"not null;index" json:"due_date"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_amount"`
	AmountRepaid    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount_repaid"`
	Penalties       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"penalties"`
	Status          LoanStatus      `gorm:"size:16;not null;index" json:"status"`

	AgreementStatus     AgreementStatus `gorm:"size:32;not null;default:'pending_upload'" json:"agreement_status"`
	AgreementNotes      string          `gorm:"type:text" json:"agreement_notes"`
	AgreementDocUrl     string          `gorm:"size:512" json:"agreement_doc_url"`
	AgreementUploadedAt *time.Time      `json:"agreement_uploaded_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLoan struct {
	AmountIssued    decimal.Decimal  `json:"amount_issued" binding:"required"`
	LoanPeriodWeeks int              `json:"loan_period_weeks" binding:"required"`
	DateIssued      time.Time        `json:"date_issued"`
	IsNegotiable    bool             `json:"is_negotiable"`
	InterestRate    *decimal.Decimal `json:"interest_rate"`
}

// NewLoanApplication bundles everything a walk-in application carries.
type NewLoanApplication struct {
	Borrower   NewBorrower   `json:"borrower" binding:"required"`
	Collateral NewCollateral `json:"collateral" binding:"required"`
	Loan       NewLoan       `json:"loan" binding:"required"`
}

// Quote computes the interest and total payable for a principal at a given
// rate. Rounded once; TotalAmount is stored as the source of truth.
func Quote(principal decimal.Decimal, rate decimal.Decimal) (interestAmount decimal.Decimal, totalAmount decimal.Decimal) {
	interestAmount = round2(principal.Mul(rate).Div(hundred))
	totalAmount = principal.Add(interestAmount)
	return interestAmount, totalAmount
}

// ValidateOrigination enforces origination rules and resolves the effective
// rate. Non-negotiable loans always use the rate table and ignore any
// supplied rate; negotiable loans must carry an explicit one.
func ValidateOrigination(rules *BusinessRules, principal decimal.Decimal, periodWeeks int, isNegotiable bool, negotiatedRate *decimal.Decimal) (decimal.Decimal, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, NewValidationError("nonPositiveAmount", "amount issued must be positive")
	}
	if periodWeeks <= 0 {
		return decimal.Zero, NewValidationError("unsupportedPeriod", "loan period must be at least one week")
	}
	if periodWeeks == 4 && principal.LessThan(rules.MinAmountFor4Weeks) {
		return decimal.Zero, NewValidationError("min4week",
			fmt.Sprintf("4 week loans require at least %s", rules.MinAmountFor4Weeks.StringFixed(2)))
	}
	if isNegotiable {
		if negotiatedRate == nil {
			return decimal.Zero, NewValidationError("missingRate", "negotiable loans require an explicit interest rate")
		}
		if negotiatedRate.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, NewValidationError("missingRate", "negotiated rate must be positive")
		}
		return *negotiatedRate, nil
	}
	return rules.RateFor(periodWeeks)
}

// OutstandingBalance is what remains to be paid: total plus accrued
// penalties less cumulative repayments.
func (l *Loan) OutstandingBalance() decimal.Decimal {
	return l.TotalAmount.Add(l.Penalties).Sub(l.AmountRepaid)
}

// outstandingPrincipal is the penalty base: the unpaid part of the cash
// actually issued.
func (l *Loan) outstandingPrincipal() decimal.Decimal {
	base := l.AmountIssued.Sub(l.AmountRepaid)
	if base.IsNegative() {
		return decimal.Zero
	}
	return base
}

func daysOverdue(dueDate time.Time, asOf time.Time) int {
	if !asOf.After(dueDate) {
		return 0
	}
	return int(asOf.Sub(dueDate).Hours() / 24)
}

// DeriveStatus computes the loan's status and accrued penalties as of a
// date. Deterministic and idempotent: the same inputs always yield the same
// pair, and re-evaluation never decreases penalties while unpaid.
//
// paid is terminal regardless of dates. defaulted is sticky: the passage of
// time never reverses it, only full repayment does. Penalty accrual stops at
// the default threshold; recovery beyond that point comes from the sale of
// the collateral.
func DeriveStatus(l *Loan, rules *BusinessRules, asOf time.Time) (LoanStatus, decimal.Decimal) {
	if l.Status == LoanStatusPaid || l.AmountRepaid.GreaterThanOrEqual(l.TotalAmount.Add(l.Penalties)) {
		return LoanStatusPaid, l.Penalties
	}

	if asOf.Before(l.DueDate) {
		if l.Status == LoanStatusDefaulted {
			return LoanStatusDefaulted, l.Penalties
		}
		return LoanStatusActive, l.Penalties
	}

	overdue := daysOverdue(l.DueDate, asOf)
	if overdue <= rules.GracePeriodDays {
		if l.Status == LoanStatusDefaulted {
			return LoanStatusDefaulted, l.Penalties
		}
		return LoanStatusDue, l.Penalties
	}

	penaltyDays := overdue - rules.GracePeriodDays
	maxPenaltyDays := rules.DefaultThresholdDays - rules.GracePeriodDays
	if maxPenaltyDays > 0 && penaltyDays > maxPenaltyDays {
		penaltyDays = maxPenaltyDays
	}
	penalties := round2(l.outstandingPrincipal().
		Mul(rules.PenaltyFeePercentPerDay).
		Div(hundred).
		Mul(decimal.NewFromInt(int64(penaltyDays))))
	// Monotonic while unpaid, even across rule changes.
	if penalties.LessThan(l.Penalties) {
		penalties = l.Penalties
	}

	if l.Status == LoanStatusDefaulted || overdue > rules.DefaultThresholdDays {
		return LoanStatusDefaulted, penalties
	}
	return LoanStatusPastDue, penalties
}

// Refresh applies DeriveStatus to the cached fields. Returns true when
// either field changed and needs persisting.
func (l *Loan) Refresh(rules *BusinessRules, asOf time.Time) bool {
	status, penalties := DeriveStatus(l, rules, asOf)
	changed := status != l.Status || !penalties.Equal(l.Penalties)
	l.Status = status
	l.Penalties = penalties
	return changed
}

// IsEditable reports whether the application may still be edited or deleted.
// Once a signed agreement is in flight or finalized the loan is immutable
// through this surface.
func (l *Loan) IsEditable() bool {
	return l.AgreementStatus == AgreementStatusPendingUpload
}

// CreateLoanApplication originates a loan: borrower reuse-or-create by
// national ID, collateral seizure, quote, and agreement opened in
// pending_upload, all in one transaction.
func CreateLoanApplication(ctx context.Context, input *NewLoanApplication) (*Loan, error) {
	rules, err := GetBusinessRules(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.Collateral.validate(); err != nil {
		return nil, err
	}

	history, err := ClassifyBorrower(ctx, input.Borrower.NationalId)
	if err != nil {
		return nil, err
	}
	if input.Loan.IsNegotiable && !rules.IsNegotiable(input.Loan.AmountIssued, history) {
		return nil, NewValidationError("notNegotiable",
			"loan qualifies for negotiated terms only above the threshold amount or for second-time borrowers")
	}

	rate, err := ValidateOrigination(rules, input.Loan.AmountIssued, input.Loan.LoanPeriodWeeks, input.Loan.IsNegotiable, input.Loan.InterestRate)
	if err != nil {
		return nil, err
	}

	dateIssued := input.Loan.DateIssued
	if dateIssued.IsZero() {
		dateIssued = time.Now().UTC()
	}
	_, totalAmount := Quote(input.Loan.AmountIssued, rate)

	loan := Loan{
		AmountIssued:    input.Loan.AmountIssued,
		LoanPeriodWeeks: input.Loan.LoanPeriodWeeks,
		InterestRate:    rate,
		IsNegotiable:    input.Loan.IsNegotiable,
		DateIssued:      dateIssued,
		DueDate:         dateIssued.AddDate(0, 0, input.Loan.LoanPeriodWeeks*7),
		TotalAmount:     totalAmount,
		AmountRepaid:    decimal.Zero,
		Penalties:       decimal.Zero,
		Status:          LoanStatusActive,
		AgreementStatus: AgreementStatusPendingUpload,
	}

	db := config.GetDB()
	tx := db.Begin()

	borrower, err := findOrCreateBorrower(ctx, tx, &input.Borrower)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	collateral := input.Collateral.seize()
	if err := tx.WithContext(ctx).Create(collateral).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	loan.BorrowerId = borrower.ID
	loan.CollateralId = collateral.ID
	if err := tx.WithContext(ctx).Create(&loan).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishLoanEvent(ctx, tx, LoanEventCreated, loan.ID, loan, nil); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	loan.Borrower = borrower
	loan.Collateral = collateral
	return &loan, nil
}

// GetLoan fetches a loan with associations, re-deriving status and penalty
// as of now; a changed derivation is persisted so the stored cache is fresh.
func GetLoan(ctx context.Context, id int) (*Loan, error) {
	db := config.GetDB()
	var loan Loan
	err := db.WithContext(ctx).Preload("Borrower").Preload("Collateral").First(&loan, id).Error
	if err != nil {
		return nil, NewNotFoundError("loan", id)
	}

	rules, err := GetBusinessRules(ctx)
	if err != nil {
		return nil, err
	}
	if loan.Refresh(rules, time.Now().UTC()) {
		if err := persistDerivedStatus(ctx, db, &loan); err != nil {
			return nil, err
		}
	}
	return &loan, nil
}

// ListLoans returns loans, optionally filtered by derived status.
func ListLoans(ctx context.Context, status *LoanStatus) ([]*Loan, error) {
	db := config.GetDB()
	rules, err := GetBusinessRules(ctx)
	if err != nil {
		return nil, err
	}

	var loans []*Loan
	if err := db.WithContext(ctx).Preload("Borrower").Preload("Collateral").Order("date_issued DESC").Find(&loans).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]*Loan, 0, len(loans))
	for _, l := range loans {
		if l.Refresh(rules, now) {
			if err := persistDerivedStatus(ctx, db, l); err != nil {
				return nil, err
			}
		}
		if status != nil && l.Status != *status {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func persistDerivedStatus(ctx context.Context, db *gorm.DB, loan *Loan) error {
	return db.WithContext(ctx).Model(&Loan{}).Where("id = ?", loan.ID).Updates(map[string]interface{}{
		"Status":    loan.Status,
		"Penalties": loan.Penalties,
	}).Error
}

// UpdateLoanApplication edits the terms of an application that is still in
// pending_upload. The quote is recomputed from the new terms.
func UpdateLoanApplication(ctx context.Context, id int, input *NewLoan) (*Loan, error) {
	loan, err := GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !loan.IsEditable() {
		return nil, NewStateError("agreementInFlight", "loan cannot be edited once the signed agreement is uploaded")
	}
	if !loan.AmountRepaid.IsZero() {
		return nil, NewStateError("paymentsRecorded", "loan with recorded payments cannot be edited")
	}

	rules, err := GetBusinessRules(ctx)
	if err != nil {
		return nil, err
	}
	rate, err := ValidateOrigination(rules, input.AmountIssued, input.LoanPeriodWeeks, input.IsNegotiable, input.InterestRate)
	if err != nil {
		return nil, err
	}

	dateIssued := input.DateIssued
	if dateIssued.IsZero() {
		dateIssued = loan.DateIssued
	}
	_, totalAmount := Quote(input.AmountIssued, rate)

	db := config.GetDB()
	err = db.WithContext(ctx).Model(loan).Updates(map[string]interface{}{
		"AmountIssued":    input.AmountIssued,
		"LoanPeriodWeeks": input.LoanPeriodWeeks,
		"InterestRate":    rate,
		"IsNegotiable":    input.IsNegotiable,
		"DateIssued":      dateIssued,
		"DueDate":         dateIssued.AddDate(0, 0, input.LoanPeriodWeeks*7),
		"TotalAmount":     totalAmount,
	}).Error
	if err != nil {
		return nil, err
	}
	return GetLoan(ctx, id)
}

// DeleteLoan removes an application still in pending_upload, cascading to
// its uniquely-owned collateral and payments. The borrower survives whenever
// other loans reference them.
func DeleteLoan(ctx context.Context, id int) (*Loan, error) {
	loan, err := GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !loan.IsEditable() {
		return nil, NewStateError("agreementInFlight", "loan cannot be deleted once the signed agreement is uploaded")
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Where("loan_id = ?", id).Delete(&Payment{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&Collateral{}, loan.CollateralId).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&Loan{}, id).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	var otherLoans int64
	if err := tx.WithContext(ctx).Model(&Loan{}).Where("borrower_id = ? AND id <> ?", loan.BorrowerId, id).Count(&otherLoans).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if otherLoans == 0 {
		if err := tx.WithContext(ctx).Delete(&Borrower{}, loan.BorrowerId).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := PublishLoanEvent(ctx, tx, LoanEventDeleted, id, nil, loan); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return loan, nil
}

// fetchLoanForUpdate loads a loan inside tx under a row lock so concurrent
// mutators serialize on the same record.
func fetchLoanForUpdate(ctx context.Context, tx *gorm.DB, id int) (*Loan, error) {
	var loan Loan
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&loan, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewNotFoundError("loan", id)
		}
		return nil, err
	}
	return &loan, nil
}
