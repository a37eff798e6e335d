package models

import (
	"errors"
	"testing"
	"time"
)

func TestAgreementUploadFlow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	loan := &Loan{AgreementStatus: AgreementStatusPendingUpload}

	if err := loan.attachAgreementDocument("https://storage.example/agreements/1/doc.pdf", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.AgreementStatus != AgreementStatusPendingApproval {
		t.Errorf("status = %s, want pending_approval", loan.AgreementStatus)
	}
	if loan.AgreementUploadedAt == nil || !loan.AgreementUploadedAt.Equal(now) {
		t.Error("uploaded-at not recorded")
	}

	// A second upload while under review is refused.
	err := loan.attachAgreementDocument("https://storage.example/agreements/1/doc2.pdf", now)
	var se *StateError
	if !errors.As(err, &se) || se.Code != "agreementUnderReview" {
		t.Fatalf("err = %v, want agreementUnderReview", err)
	}
}

func TestAgreementRejectThenReupload(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	loan := &Loan{AgreementStatus: AgreementStatusPendingApproval}

	if err := loan.rejectAgreement("signature page missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.AgreementStatus != AgreementStatusRejected {
		t.Errorf("status = %s, want rejected", loan.AgreementStatus)
	}
	if loan.AgreementNotes != "signature page missing" {
		t.Errorf("notes = %q", loan.AgreementNotes)
	}

	// Rejected agreements re-enter review only through a fresh upload.
	if err := loan.approveAgreement(""); err == nil {
		t.Fatal("rejected agreement must not be approvable directly")
	}
	if err := loan.attachAgreementDocument("https://storage.example/agreements/1/doc2.pdf", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.AgreementStatus != AgreementStatusPendingApproval {
		t.Errorf("status = %s, want pending_approval after re-upload", loan.AgreementStatus)
	}
	if err := loan.approveAgreement(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.AgreementStatus != AgreementStatusApproved {
		t.Errorf("status = %s, want approved", loan.AgreementStatus)
	}
}

func TestAgreementRejectRequiresNotes(t *testing.T) {
	loan := &Loan{AgreementStatus: AgreementStatusPendingApproval}
	err := loan.rejectAgreement("   ")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != "missingRejectionNotes" {
		t.Fatalf("err = %v, want missingRejectionNotes", err)
	}
	if loan.AgreementStatus != AgreementStatusPendingApproval {
		t.Error("failed rejection must not move the agreement")
	}
}

func TestAgreementApprovedIsTerminal(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	loan := &Loan{AgreementStatus: AgreementStatusApproved}

	err := loan.attachAgreementDocument("https://storage.example/agreements/1/doc3.pdf", now)
	var se *StateError
	if !errors.As(err, &se) || se.Code != "agreementFinalized" {
		t.Fatalf("err = %v, want agreementFinalized", err)
	}
	if err := loan.approveAgreement(""); err == nil {
		t.Fatal("approved agreement must not be re-approvable")
	}
	if err := loan.rejectAgreement("late"); err == nil {
		t.Fatal("approved agreement must not be rejectable")
	}
}

func TestAgreementNeverSkipsReview(t *testing.T) {
	loan := &Loan{AgreementStatus: AgreementStatusPendingUpload}
	if err := loan.approveAgreement(""); err == nil {
		t.Fatal("pending_upload must not approve without an uploaded document")
	}
}

func TestApproveAgreementNotes(t *testing.T) {
	loan := &Loan{AgreementStatus: AgreementStatusPendingApproval}
	if err := loan.approveAgreement("verified against the original in person"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.AgreementNotes != "verified against the original in person" {
		t.Errorf("notes = %q, want approval notes stored", loan.AgreementNotes)
	}

	// Approval without notes keeps whatever was there before.
	loan = &Loan{AgreementStatus: AgreementStatusPendingApproval, AgreementNotes: "signature page missing"}
	if err := loan.approveAgreement("   "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.AgreementNotes != "signature page missing" {
		t.Errorf("notes = %q, blank approval must not clear earlier notes", loan.AgreementNotes)
	}
	if loan.AgreementStatus != AgreementStatusApproved {
		t.Errorf("status = %s, want approved", loan.AgreementStatus)
	}
}
