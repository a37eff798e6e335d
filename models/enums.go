package models

// LoanStatus is derived from dates and repayment, never advanced by a clock.
// The stored value is a cache refreshed on write; paid and defaulted are
// terminal for automatic re-evaluation.
type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusDue       LoanStatus = "due"
	LoanStatusPastDue   LoanStatus = "pastDue"
	LoanStatusDefaulted LoanStatus = "defaulted"
	LoanStatusPaid      LoanStatus = "paid"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusActive, LoanStatusDue, LoanStatusPastDue, LoanStatusDefaulted, LoanStatusPaid:
		return true
	}
	return false
}

// Terminal reports whether automatic re-evaluation may still change s.
func (s LoanStatus) Terminal() bool {
	return s == LoanStatusPaid || s == LoanStatusDefaulted
}

type AgreementStatus string

const (
	AgreementStatusPendingUpload   AgreementStatus = "pending_upload"
	AgreementStatusPendingApproval AgreementStatus = "pending_approval"
	AgreementStatusApproved        AgreementStatus = "approved"
	AgreementStatusRejected        AgreementStatus = "rejected"
)

func (s AgreementStatus) Valid() bool {
	switch s {
	case AgreementStatusPendingUpload, AgreementStatusPendingApproval, AgreementStatusApproved, AgreementStatusRejected:
		return true
	}
	return false
}

type ItemCondition string

const (
	ItemConditionExcellent ItemCondition = "Excellent"
	ItemConditionGood      ItemCondition = "Good"
	ItemConditionFair      ItemCondition = "Fair"
	ItemConditionPoor      ItemCondition = "Poor"
)

func (c ItemCondition) Valid() bool {
	switch c {
	case ItemConditionExcellent, ItemConditionGood, ItemConditionFair, ItemConditionPoor:
		return true
	}
	return false
}

type ExpenseCategory string

const (
	ExpenseCategoryRent     ExpenseCategory = "Rent"
	ExpenseCategorySalary   ExpenseCategory = "Salary"
	ExpenseCategoryPrinting ExpenseCategory = "Printing"
	ExpenseCategoryOthers   ExpenseCategory = "Others"
)

func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseCategoryRent, ExpenseCategorySalary, ExpenseCategoryPrinting, ExpenseCategoryOthers:
		return true
	}
	return false
}

// PaymentMethod is recorded for audit only; it has no effect on ledger math.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodMpesa        PaymentMethod = "mpesa"
	PaymentMethodBankTransfer PaymentMethod = "bank"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMpesa, PaymentMethodBankTransfer:
		return true
	}
	return false
}

type BorrowerType string

const (
	BorrowerTypeStandard BorrowerType = "Standard"
	BorrowerTypeStudent  BorrowerType = "Student"
)

func (t BorrowerType) Valid() bool {
	return t == BorrowerTypeStandard || t == BorrowerTypeStudent
}

type BorrowerTier string

const (
	BorrowerTierGold   BorrowerTier = "gold"
	BorrowerTierSilver BorrowerTier = "silver"
	BorrowerTierNone   BorrowerTier = "none"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "Admin"
	UserRoleStaff UserRole = "Staff"
)

// Loan lifecycle event types carried through the outbox.
const (
	LoanEventCreated   = "loan.created"
	LoanEventPaid      = "loan.paid"
	LoanEventDefaulted = "loan.defaulted"
	LoanEventDeleted   = "loan.deleted"
	CollateralSoldEvt  = "collateral.sold"
)

// Outbox publish lifecycle.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
