package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taajiri/pawnshop_backend/config"
	"github.com/taajiri/pawnshop_backend/utils"
)

// Collateral is pledged 1:1 against exactly one loan at origination and is
// not reusable across loans. It is held from origination until release on
// full repayment, or sale after the loan defaults.
type Collateral struct {
	ID            int           `gorm:"primary_key" json:"id"`
	ItemName      string        `gorm:"size:255;not null" json:"item_name" binding:"required"`
	Category      string        `gorm:"size:100" json:"category"`
	ModelNumber   string        `gorm:"size:100" json:"model_number"`
	SerialNumber  string        `gorm:"size:100" json:"serial_number"`
	ItemCondition ItemCondition `gorm:"size:16;not null" json:"item_condition"`
	PhotoUrl      string        `gorm:"size:512" json:"photo_url"`
	ThumbnailUrl  string        `gorm:"size:512" json:"thumbnail_url"`

	IsHeld     bool       `gorm:"not null;default:true" json:"is_held"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`

	IsSold    bool             `gorm:"not null;default:false" json:"is_sold"`
	SoldPrice *decimal.Decimal `gorm:"type:decimal(20,2)" json:"sold_price,omitempty"`
	SoldDate  *time.Time       `json:"sold_date,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCollateral struct {
	ItemName      string        `json:"item_name" binding:"required"`
	Category      string        `json:"category"`
	ModelNumber   string        `json:"model_number"`
	SerialNumber  string        `json:"serial_number"`
	ItemCondition ItemCondition `json:"item_condition" binding:"required"`
	PhotoUrl      string        `json:"photo_url"`
	ThumbnailUrl  string        `json:"thumbnail_url"`
}

func (input *NewCollateral) validate() error {
	if !input.ItemCondition.Valid() {
		return NewValidationError("invalidItemCondition", string(input.ItemCondition))
	}
	return nil
}

// seize marks the collateral held against its loan; it happens synchronously
// with loan creation.
func (input *NewCollateral) seize() *Collateral {
	return &Collateral{
		ItemName:      input.ItemName,
		Category:      input.Category,
		ModelNumber:   input.ModelNumber,
		SerialNumber:  input.SerialNumber,
		ItemCondition: input.ItemCondition,
		PhotoUrl:      input.PhotoUrl,
		ThumbnailUrl:  input.ThumbnailUrl,
		IsHeld:        true,
	}
}

// release clears held-status after full repayment. Idempotent: a released
// item stays released with its original release date.
func (c *Collateral) release(at time.Time) bool {
	if !c.IsHeld {
		return false
	}
	c.IsHeld = false
	c.ReleasedAt = &at
	return true
}

// markSold records the sale. Only collateral of a loan whose derived status
// is defaulted may be sold, and only once. Selling does not pay the loan off;
// defaulted-and-sold is a distinct terminal condition from repaid.
func (c *Collateral) markSold(price decimal.Decimal, date time.Time, loanStatus LoanStatus) error {
	if c.IsSold {
		return NewStateError("alreadySold", "collateral has already been sold")
	}
	if loanStatus != LoanStatusDefaulted {
		return NewStateError("notDefaulted", "only collateral of a defaulted loan can be sold")
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("nonPositiveAmount", "sold price must be positive")
	}
	c.IsSold = true
	c.IsHeld = false
	c.SoldPrice = &price
	c.SoldDate = &date
	return nil
}

type CollateralSale struct {
	SoldPrice decimal.Decimal `json:"sold_price" binding:"required"`
	SoldDate  time.Time       `json:"sold_date"`
}

// MarkCollateralSold records the disposition sale of a defaulted loan's
// collateral under the loan's lock. The sale proceeds are recorded for
// recovery reporting; they do not change the loan ledger.
func MarkCollateralSold(ctx context.Context, collateralId int, input *CollateralSale) (*Collateral, error) {
	db := config.GetDB()

	var loan Loan
	err := db.WithContext(ctx).Where("collateral_id = ?", collateralId).First(&loan).Error
	if err != nil {
		return nil, NewNotFoundError("collateral", collateralId)
	}

	lock, err := utils.ObtainLoanLock(ctx, loan.ID, "collateral", "MarkCollateralSold")
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

	soldDate := input.SoldDate
	if soldDate.IsZero() {
		soldDate = time.Now().UTC()
	}

	tx := db.Begin()

	locked, err := fetchLoanForUpdate(ctx, tx, loan.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if locked.Refresh(rules, time.Now().UTC()) {
		if err := persistDerivedStatus(ctx, tx, locked); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	var collateral Collateral
	if err := tx.WithContext(ctx).First(&collateral, collateralId).Error; err != nil {
		tx.Rollback()
		return nil, NewNotFoundError("collateral", collateralId)
	}
	if err := collateral.markSold(input.SoldPrice, soldDate, locked.Status); err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.WithContext(ctx).Model(&collateral).Updates(map[string]interface{}{
		"IsSold":    collateral.IsSold,
		"IsHeld":    collateral.IsHeld,
		"SoldPrice": collateral.SoldPrice,
		"SoldDate":  collateral.SoldDate,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishLoanEvent(ctx, tx, CollateralSoldEvt, locked.ID, collateral, nil); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &collateral, nil
}

// UpdateCollateralPhoto stores uploaded photo URLs against the item.
func UpdateCollateralPhoto(ctx context.Context, collateralId int, photoUrl string, thumbnailUrl string) (*Collateral, error) {
	db := config.GetDB()
	var collateral Collateral
	if err := db.WithContext(ctx).First(&collateral, collateralId).Error; err != nil {
		return nil, NewNotFoundError("collateral", collateralId)
	}
	err := db.WithContext(ctx).Model(&collateral).Updates(map[string]interface{}{
		"PhotoUrl":     photoUrl,
		"ThumbnailUrl": thumbnailUrl,
	}).Error
	if err != nil {
		return nil, err
	}
	collateral.PhotoUrl = photoUrl
	collateral.ThumbnailUrl = thumbnailUrl
	return &collateral, nil
}
