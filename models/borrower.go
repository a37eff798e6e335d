package models

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/taajiri/pawnshop_backend/config"
	"github.com/taajiri/pawnshop_backend/utils"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// Borrower identity. The national ID uniquely identifies a borrower across
// loans and drives all history lookups. Student-only fields are present only
// when BorrowerType is Student.
type Borrower struct {
	ID              int          `gorm:"primary_key" json:"id"`
	FullName        string       `gorm:"size:255;not null" json:"full_name" binding:"required"`
	NationalId      string       `gorm:"size:64;uniqueIndex;not null" json:"national_id" binding:"required"`
	PhoneNumber     string       `gorm:"size:32;not null" json:"phone_number" binding:"required"`
	Email           string       `gorm:"size:255" json:"email"`
	Address         string       `gorm:"size:255" json:"address"`
	City            string       `gorm:"size:100" json:"city"`
	EmergencyNumber string       `gorm:"size:32" json:"emergency_number"`
	BorrowerType    BorrowerType `gorm:"size:16;not null;default:'Standard'" json:"borrower_type"`

	// Student sub-profile; required iff BorrowerType == Student.
	Institution        *string `gorm:"size:255" json:"institution,omitempty"`
	RegistrationNumber *string `gorm:"size:100" json:"registration_number,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBorrower struct {
	FullName           string       `json:"full_name" binding:"required"`
	NationalId         string       `json:"national_id" binding:"required"`
	PhoneNumber        string       `json:"phone_number" binding:"required"`
	Email              string       `json:"email"`
	Address            string       `json:"address"`
	City               string       `json:"city"`
	EmergencyNumber    string       `json:"emergency_number"`
	BorrowerType       BorrowerType `json:"borrower_type"`
	Institution        *string      `json:"institution"`
	RegistrationNumber *string      `json:"registration_number"`
}

// BorrowerHistory is the classifier output. Defaults in history are reported
// as information, not a disqualifier for second-time status.
type BorrowerHistory struct {
	Exists               bool         `json:"exists"`
	IsSecondTimeBorrower bool         `json:"is_second_time_borrower"`
	LoansRepaid          int          `json:"loans_repaid"`
	LoansDefaulted       int          `json:"loans_defaulted"`
	Tier                 BorrowerTier `json:"tier"`
	Borrower             *Borrower    `json:"borrower,omitempty"`
	LoanHistory          []*Loan      `json:"loan_history,omitempty"`
}

func (input *NewBorrower) validate() error {
	if input.BorrowerType == "" {
		input.BorrowerType = BorrowerTypeStandard
	}
	if !input.BorrowerType.Valid() {
		return NewValidationError("invalidBorrowerType", string(input.BorrowerType))
	}
	if input.BorrowerType == BorrowerTypeStudent {
		if input.Institution == nil || *input.Institution == "" {
			return NewValidationError("missingInstitution", "student borrowers require an institution")
		}
		if input.RegistrationNumber == nil || *input.RegistrationNumber == "" {
			return NewValidationError("missingRegistrationNumber", "student borrowers require a registration number")
		}
	}
	return nil
}

func (input *NewBorrower) toBorrower() *Borrower {
	return &Borrower{
		FullName:           input.FullName,
		NationalId:         input.NationalId,
		PhoneNumber:        input.PhoneNumber,
		Email:              input.Email,
		Address:            input.Address,
		City:               input.City,
		EmergencyNumber:    input.EmergencyNumber,
		BorrowerType:       input.BorrowerType,
		Institution:        input.Institution,
		RegistrationNumber: input.RegistrationNumber,
	}
}

// classifyLoanHistory derives second-time status and tier from a borrower's
// loans. Pure; the thresholds come from BusinessRules.
func classifyLoanHistory(loans []*Loan, goldTierLoansRepaid int) (isSecondTime bool, repaid int, defaulted int, tier BorrowerTier) {
	for _, l := range loans {
		switch l.Status {
		case LoanStatusPaid:
			repaid++
		case LoanStatusDefaulted:
			defaulted++
		}
	}
	isSecondTime = repaid >= 1
	switch {
	case goldTierLoansRepaid > 0 && repaid >= goldTierLoansRepaid:
		tier = BorrowerTierGold
	case repaid >= 1:
		tier = BorrowerTierSilver
	default:
		tier = BorrowerTierNone
	}
	return isSecondTime, repaid, defaulted, tier
}

// ClassifyBorrower looks up a borrower by national ID and classifies their
// repayment history. A missing borrower is not an error: Exists is false.
func ClassifyBorrower(ctx context.Context, nationalId string) (*BorrowerHistory, error) {
	if nationalId == "" {
		return nil, NewValidationError("missingIdNumber", "id number is required")
	}

	db := config.GetDB()
	var borrower Borrower
	err := db.WithContext(ctx).Where("national_id = ?", nationalId).Take(&borrower).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &BorrowerHistory{Exists: false, Tier: BorrowerTierNone}, nil
		}
		return nil, err
	}

	rules, err := GetBusinessRules(ctx)
	if err != nil {
		return nil, err
	}

	var loans []*Loan
	if err := db.WithContext(ctx).Where("borrower_id = ?", borrower.ID).Order("date_issued DESC").Find(&loans).Error; err != nil {
		return nil, err
	}

	// Statuses may be stale for loans that crossed their due date since the
	// last write; classify against fresh derivations.
	now := time.Now().UTC()
	for _, l := range loans {
		l.Refresh(rules, now)
	}

	isSecondTime, repaid, defaulted, tier := classifyLoanHistory(loans, rules.GoldTierLoansRepaid)
	return &BorrowerHistory{
		Exists:               true,
		IsSecondTimeBorrower: isSecondTime,
		LoansRepaid:          repaid,
		LoansDefaulted:       defaulted,
		Tier:                 tier,
		Borrower:             &borrower,
		LoanHistory:          loans,
	}, nil
}

// findOrCreateBorrower reuses the borrower identified by national ID, or
// creates one inside the caller's transaction.
func findOrCreateBorrower(ctx context.Context, tx *gorm.DB, input *NewBorrower) (*Borrower, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var existing Borrower
	err := tx.WithContext(ctx).Where("national_id = ?", input.NationalId).Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	borrower := input.toBorrower()
	if err := tx.WithContext(ctx).Create(borrower).Error; err != nil {
		// Two applications racing on the same national ID: one insert loses
		// on the unique index and picks up the winner's row.
		if isDuplicateKeyErr(err) {
			if err := tx.WithContext(ctx).Where("national_id = ?", input.NationalId).Take(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return borrower, nil
}

func GetBorrower(ctx context.Context, id int) (*Borrower, error) {
	result, err := utils.FetchModel[Borrower](ctx, id)
	if err != nil {
		return nil, NewNotFoundError("borrower", id)
	}
	return result, nil
}

// DeleteBorrower removes a borrower. Deletion is forbidden while any loan
// still references them.
func DeleteBorrower(ctx context.Context, id int) (*Borrower, error) {
	borrower, err := GetBorrower(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Loan](ctx, "borrower_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, NewStateError("borrowerHasLoans", "borrower still has loans on record")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(borrower).Error; err != nil {
		return nil, err
	}
	return borrower, nil
}
