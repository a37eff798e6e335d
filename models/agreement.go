package models

import (
	"context"
	"strings"
	"time"

	"github.com/taajiri/pawnshop_backend/config"
	"github.com/taajiri/pawnshop_backend/utils"
)

// attachAgreementDocument moves the agreement to pending_approval. A
// rejected agreement re-enters review through a fresh upload; approved is
// terminal.
func (l *Loan) attachAgreementDocument(docUrl string, at time.Time) error {
	switch l.AgreementStatus {
	case AgreementStatusPendingUpload, AgreementStatusRejected:
		l.AgreementDocUrl = docUrl
		l.AgreementUploadedAt = &at
		l.AgreementStatus = AgreementStatusPendingApproval
		return nil
	case AgreementStatusPendingApproval:
		return NewStateError("agreementUnderReview", "agreement is already awaiting approval")
	default:
		return NewStateError("agreementFinalized", "approved agreements cannot be replaced")
	}
}

// approveAgreement finalizes the agreement. Notes are optional; when
// present they replace any earlier rejection notes.
func (l *Loan) approveAgreement(notes string) error {
	if l.AgreementStatus != AgreementStatusPendingApproval {
		return NewStateError("agreementNotPending", "only agreements awaiting approval can be approved")
	}
	l.AgreementStatus = AgreementStatusApproved
	if strings.TrimSpace(notes) != "" {
		l.AgreementNotes = notes
	}
	return nil
}

// rejectAgreement sends the agreement back for re-upload with a mandatory
// reason.
func (l *Loan) rejectAgreement(notes string) error {
	if l.AgreementStatus != AgreementStatusPendingApproval {
		return NewStateError("agreementNotPending", "only agreements awaiting approval can be rejected")
	}
	if strings.TrimSpace(notes) == "" {
		return NewValidationError("missingRejectionNotes", "a rejection must carry notes for the uploader")
	}
	l.AgreementStatus = AgreementStatusRejected
	l.AgreementNotes = notes
	return nil
}

// AttachAgreementDocument records an uploaded signed-agreement document
// against the loan and moves it to pending_approval.
func AttachAgreementDocument(ctx context.Context, loanId int, docUrl string) (*Loan, error) {
	db := config.GetDB()
	tx := db.Begin()

	loan, err := fetchLoanForUpdate(ctx, tx, loanId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := loan.attachAgreementDocument(docUrl, time.Now().UTC()); err != nil {
		tx.Rollback()
		return nil, err
	}
	err = tx.WithContext(ctx).Model(loan).Updates(map[string]interface{}{
		"AgreementStatus":     loan.AgreementStatus,
		"AgreementDocUrl":     loan.AgreementDocUrl,
		"AgreementUploadedAt": loan.AgreementUploadedAt,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetLoan(ctx, loanId)
}

// ApproveAgreement finalizes the agreement, optionally storing reviewer
// notes. Admin only.
func ApproveAgreement(ctx context.Context, loanId int, notes string) (*Loan, error) {
	if isAdmin, ok := utils.GetIsAdminFromContext(ctx); !ok || !isAdmin {
		return nil, ErrUnauthorized
	}

	db := config.GetDB()
	tx := db.Begin()

	loan, err := fetchLoanForUpdate(ctx, tx, loanId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := loan.approveAgreement(notes); err != nil {
		tx.Rollback()
		return nil, err
	}
	err = tx.WithContext(ctx).Model(loan).Updates(map[string]interface{}{
		"AgreementStatus": loan.AgreementStatus,
		"AgreementNotes":  loan.AgreementNotes,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetLoan(ctx, loanId)
}

// RejectAgreement returns the agreement to the uploader with notes. Admin
// only.
func RejectAgreement(ctx context.Context, loanId int, notes string) (*Loan, error) {
	if isAdmin, ok := utils.GetIsAdminFromContext(ctx); !ok || !isAdmin {
		return nil, ErrUnauthorized
	}

	db := config.GetDB()
	tx := db.Begin()

	loan, err := fetchLoanForUpdate(ctx, tx, loanId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := loan.rejectAgreement(notes); err != nil {
		tx.Rollback()
		return nil, err
	}
	err = tx.WithContext(ctx).Model(loan).Updates(map[string]interface{}{
		"AgreementStatus": loan.AgreementStatus,
		"AgreementNotes":  loan.AgreementNotes,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetLoan(ctx, loanId)
}
