package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taajiri/pawnshop_backend/config"
	"github.com/taajiri/pawnshop_backend/utils"
)

// Expense is an operating cost of the shop (rent, salaries, printing). It
// sits outside the loan ledger and only feeds profitability reporting.
type Expense struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Category    ExpenseCategory `gorm:"size:32;not null;index" json:"category"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	ExpenseDate time.Time       `gorm:"not null;index" json:"expense_date"`
	Notes       string          `gorm:"type:text" json:"notes"`
	RecordedBy  string          `gorm:"size:128" json:"recorded_by"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewExpense struct {
	Category    ExpenseCategory `json:"category" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	ExpenseDate time.Time       `json:"expense_date"`
	Notes       string          `json:"notes"`
}

func (input *NewExpense) validate() error {
	if !input.Category.Valid() {
		return NewValidationError("invalidExpenseCategory", string(input.Category))
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("nonPositiveAmount", "expense amount must be positive")
	}
	return nil
}

func CreateExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	expenseDate := input.ExpenseDate
	if expenseDate.IsZero() {
		expenseDate = time.Now().UTC()
	}
	recordedBy, _ := utils.GetUserNameFromContext(ctx)

	expense := Expense{
		Category:    input.Category,
		Amount:      input.Amount,
		ExpenseDate: expenseDate,
		Notes:       input.Notes,
		RecordedBy:  recordedBy,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

func UpdateExpense(ctx context.Context, id int, input *NewExpense) (*Expense, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	expense, err := utils.FetchModel[Expense](ctx, id)
	if err != nil {
		return nil, NewNotFoundError("expense", id)
	}

	expenseDate := input.ExpenseDate
	if expenseDate.IsZero() {
		expenseDate = expense.ExpenseDate
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(expense).Updates(map[string]interface{}{
		"Category":    input.Category,
		"Amount":      input.Amount,
		"ExpenseDate": expenseDate,
		"Notes":       input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Expense](ctx, id)
}

func DeleteExpense(ctx context.Context, id int) (*Expense, error) {
	expense, err := utils.FetchModel[Expense](ctx, id)
	if err != nil {
		return nil, NewNotFoundError("expense", id)
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&Expense{}, id).Error; err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses returns expenses within an optional date range, newest first.
func ListExpenses(ctx context.Context, from *time.Time, to *time.Time) ([]*Expense, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&Expense{})
	if from != nil {
		q = q.Where("expense_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("expense_date <= ?", *to)
	}
	var expenses []*Expense
	if err := q.Order("expense_date DESC, id DESC").Find(&expenses).Error; err != nil {
		return nil, err
	}
	return expenses, nil
}
