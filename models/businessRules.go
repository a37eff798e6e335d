package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/taajiri/pawnshop_backend/config"
	"github.com/taajiri/pawnshop_backend/utils"
	"gorm.io/gorm"
)

var validate = validator.New()

// BusinessRules is the single admin-editable rule set. It is read fresh at
// every evaluation; the effective interest rate is frozen into each loan at
// origination so later rule changes never rewrite issued loans.
type BusinessRules struct {
	ID                      int             `gorm:"primary_key" json:"id"`
	RateWeek1               decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"rate_week_1"`
	RateWeek2               decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"rate_week_2"`
	RateWeek3               decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"rate_week_3"`
	RateWeek4               decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"rate_week_4"`
	PenaltyFeePercentPerDay decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"penalty_fee_percent_per_day"`
	GracePeriodDays         int             `gorm:"not null" json:"grace_period_days"`
	DefaultThresholdDays    int             `gorm:"not null" json:"default_threshold_days"`
	MinAmountFor4Weeks      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"min_amount_for_4_weeks"`
	NegotiableThreshold     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"negotiable_threshold"`
	GoldTierLoansRepaid     int             `gorm:"not null;default:3" json:"gold_tier_loans_repaid"`
	UpdatedAt               time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type UpdateBusinessRulesInput struct {
	RateWeek1               decimal.Decimal `json:"rate_week_1" binding:"required"`
	RateWeek2               decimal.Decimal `json:"rate_week_2" binding:"required"`
	RateWeek3               decimal.Decimal `json:"rate_week_3" binding:"required"`
	RateWeek4               decimal.Decimal `json:"rate_week_4" binding:"required"`
	PenaltyFeePercentPerDay decimal.Decimal `json:"penalty_fee_percent_per_day" binding:"required"`
	GracePeriodDays         int             `json:"grace_period_days" validate:"gte=0"`
	DefaultThresholdDays    int             `json:"default_threshold_days" validate:"gt=0"`
	MinAmountFor4Weeks      decimal.Decimal `json:"min_amount_for_4_weeks" binding:"required"`
	NegotiableThreshold     decimal.Decimal `json:"negotiable_threshold" binding:"required"`
	GoldTierLoansRepaid     int             `json:"gold_tier_loans_repaid" validate:"gte=1"`
}

// The defaults mirror the rates the business operated on before rules became
// editable. DefaultThresholdDays separates pastDue from defaulted.
func defaultBusinessRules() BusinessRules {
	return BusinessRules{
		ID:                      1,
		RateWeek1:               decimal.NewFromInt(15),
		RateWeek2:               decimal.NewFromInt(21),
		RateWeek3:               decimal.NewFromInt(25),
		RateWeek4:               decimal.NewFromInt(28),
		PenaltyFeePercentPerDay: decimal.NewFromInt(3),
		GracePeriodDays:         3,
		DefaultThresholdDays:    30,
		MinAmountFor4Weeks:      decimal.NewFromInt(12000),
		NegotiableThreshold:     decimal.NewFromInt(50000),
		GoldTierLoansRepaid:     3,
	}
}

// RateFor returns the configured rate for loan periods of 1 to 4 weeks.
// Negotiable loans supply their own rate and never call this.
func (r BusinessRules) RateFor(periodWeeks int) (decimal.Decimal, error) {
	switch periodWeeks {
	case 1:
		return r.RateWeek1, nil
	case 2:
		return r.RateWeek2, nil
	case 3:
		return r.RateWeek3, nil
	case 4:
		return r.RateWeek4, nil
	}
	return decimal.Zero, NewValidationError("unsupportedPeriod",
		fmt.Sprintf("no standard rate for a %d week period", periodWeeks))
}

// IsNegotiable grants negotiability when the amount exceeds the threshold OR
// the borrower is second-time. Either condition alone is enough.
func (r BusinessRules) IsNegotiable(amount decimal.Decimal, history *BorrowerHistory) bool {
	if amount.GreaterThan(r.NegotiableThreshold) {
		return true
	}
	return history != nil && history.IsSecondTimeBorrower
}

// seedableRulesErr reports whether a missing singleton row should be
// seeded. Transient DB failures must surface instead of triggering an
// insert.
func seedableRulesErr(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func GetBusinessRules(ctx context.Context) (*BusinessRules, error) {
	db := config.GetDB()
	var rules BusinessRules
	err := db.WithContext(ctx).First(&rules, 1).Error
	if seedableRulesErr(err) {
		// Seed on first read so the business is never without rules.
		rules = defaultBusinessRules()
		if err := db.WithContext(ctx).Create(&rules).Error; err != nil {
			return nil, err
		}
		return &rules, nil
	}
	if err != nil {
		return nil, err
	}
	return &rules, nil
}

func UpdateBusinessRules(ctx context.Context, input *UpdateBusinessRulesInput) (*BusinessRules, error) {
	if isAdmin, ok := utils.GetIsAdminFromContext(ctx); !ok || !isAdmin {
		return nil, ErrUnauthorized
	}
	if err := validate.Struct(input); err != nil {
		return nil, NewValidationError("invalidRules", err.Error())
	}
	for _, rate := range []decimal.Decimal{input.RateWeek1, input.RateWeek2, input.RateWeek3, input.RateWeek4, input.PenaltyFeePercentPerDay} {
		if rate.LessThanOrEqual(decimal.Zero) {
			return nil, NewValidationError("invalidRules", "rates must be positive")
		}
	}
	if input.DefaultThresholdDays <= input.GracePeriodDays {
		return nil, NewValidationError("invalidRules", "default threshold must exceed the grace period")
	}

	rules, err := GetBusinessRules(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(rules).Updates(map[string]interface{}{
		"RateWeek1":               input.RateWeek1,
		"RateWeek2":               input.RateWeek2,
		"RateWeek3":               input.RateWeek3,
		"RateWeek4":               input.RateWeek4,
		"PenaltyFeePercentPerDay": input.PenaltyFeePercentPerDay,
		"GracePeriodDays":         input.GracePeriodDays,
		"DefaultThresholdDays":    input.DefaultThresholdDays,
		"MinAmountFor4Weeks":      input.MinAmountFor4Weeks,
		"NegotiableThreshold":     input.NegotiableThreshold,
		"GoldTierLoansRepaid":     input.GoldTierLoansRepaid,
	}).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
