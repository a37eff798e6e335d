package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taajiri/pawnshop_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusSweep walks non-terminal loans on an interval, re-derives status and
// penalties, and emits loan.defaulted through the outbox for loans that
// crossed the default threshold since the last pass. Statuses are also
// derived on read, so the sweep only exists to move stored state and events
// forward for loans nobody is looking at.
type StatusSweep struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	Interval  time.Duration
	BatchSize int
}

func NewStatusSweep(db *gorm.DB, logger *logrus.Logger) *StatusSweep {
	return &StatusSweep{
		DB:        db,
		Logger:    logger,
		Interval:  time.Hour,
		BatchSize: 200,
	}
}

func (s *StatusSweep) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.SweepOnce(ctx); err != nil && s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{
				"field": "StatusSweep",
			}).Error("status sweep failed: " + err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.Interval):
		}
	}
}

// SweepOnce processes every non-terminal loan in batches.
func (s *StatusSweep) SweepOnce(ctx context.Context) error {
	rules, err := models.GetBusinessRules(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	lastID := 0
	for {
		var loans []*models.Loan
		err := s.DB.WithContext(ctx).
			Where("id > ?", lastID).
			Where("status NOT IN ?", []models.LoanStatus{models.LoanStatusPaid, models.LoanStatusDefaulted}).
			Order("id ASC").
			Limit(s.BatchSize).
			Find(&loans).Error
		if err != nil {
			return err
		}
		if len(loans) == 0 {
			return nil
		}

		for _, loan := range loans {
			lastID = loan.ID
			if err := s.sweepLoan(ctx, loan.ID, rules, now); err != nil && s.Logger != nil {
				s.Logger.WithFields(logrus.Fields{
					"field":   "StatusSweep",
					"loan_id": loan.ID,
				}).Error("loan sweep failed: " + err.Error())
			}
		}
	}
}

func (s *StatusSweep) sweepLoan(ctx context.Context, loanId int, rules *models.BusinessRules, now time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loan models.Loan
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			First(&loan, loanId).Error
		if err != nil {
			// Row gone or claimed by a concurrent writer; the next pass picks it up.
			return nil
		}

		before := loan
		if !loan.Refresh(rules, now) {
			return nil
		}

		err = tx.Model(&models.Loan{}).Where("id = ?", loan.ID).Updates(map[string]interface{}{
			"Status":    loan.Status,
			"Penalties": loan.Penalties,
		}).Error
		if err != nil {
			return err
		}

		if loan.Status == models.LoanStatusDefaulted && before.Status != models.LoanStatusDefaulted {
			return models.PublishLoanEvent(ctx, tx, models.LoanEventDefaulted, loan.ID, loan, &before)
		}
		return nil
	})
}
