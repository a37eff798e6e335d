package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taajiri/pawnshop_backend/config"
	"github.com/taajiri/pawnshop_backend/utils"
	"gorm.io/gorm"
)

// LoanEventRecord is the transactional outbox for loan lifecycle events: the
// record is written inside the caller's DB transaction and published to
// Pub/Sub asynchronously by the dispatcher after commit.
type LoanEventRecord struct {
	ID         int       `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType  string    `gorm:"size:64;not null;index" json:"event_type"`
	LoanId     int       `gorm:"index;not null" json:"loan_id"`
	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`
	OldObj     []byte    `gorm:"type:blob" json:"old_obj"`
	NewObj     []byte    `gorm:"type:blob" json:"new_obj"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToLoanEventMessage(record LoanEventRecord) config.LoanEventMessage {
	return config.LoanEventMessage{
		ID:            record.ID,
		EventType:     record.EventType,
		OccurredAt:    record.OccurredAt,
		LoanId:        record.LoanId,
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}

// PublishLoanEvent writes the outbox record inside the caller's transaction.
// Associations are stripped from the payloads so events stay self-contained
// snapshots.
func PublishLoanEvent(ctx context.Context, db *gorm.DB, eventType string, loanId int, newObj interface{}, oldObj interface{}) error {
	var newInBytes []byte
	var oldInBytes []byte
	var err error

	if newObj != nil {
		newInBytes, err = utils.ToJSONWithoutFields(newObj, "Borrower", "Collateral")
		if err != nil {
			return err
		}
	}
	if oldObj != nil {
		oldInBytes, err = utils.ToJSONWithoutFields(oldObj, "Borrower", "Collateral")
		if err != nil {
			return err
		}
	}

	record := LoanEventRecord{
		EventType:     eventType,
		LoanId:        loanId,
		OccurredAt:    time.Now().UTC(),
		NewObj:        newInBytes,
		OldObj:        oldInBytes,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ReplayDeadLoanEvents resets DEAD outbox rows for immediate redelivery.
// Exposed on the internal ops surface for manual recovery. Admin only.
func ReplayDeadLoanEvents(ctx context.Context, ids []int) (int64, error) {
	if isAdmin, ok := utils.GetIsAdminFromContext(ctx); !ok || !isAdmin {
		return 0, ErrUnauthorized
	}
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&LoanEventRecord{}).Where("publish_status = ?", OutboxPublishStatusDead)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Updates(map[string]interface{}{
		"PublishStatus":    OutboxPublishStatusPending,
		"PublishAttempts":  0,
		"NextAttemptAt":    nil,
		"LockedAt":         nil,
		"LockedBy":         nil,
		"LastPublishError": nil,
	})
	return res.RowsAffected, res.Error
}
