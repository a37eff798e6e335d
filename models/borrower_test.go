package models

import (
	"errors"
	"testing"
)

func historyLoans(statuses ...LoanStatus) []*Loan {
	loans := make([]*Loan, 0, len(statuses))
	for _, s := range statuses {
		loans = append(loans, &Loan{Status: s})
	}
	return loans
}

func TestClassifyLoanHistory(t *testing.T) {
	tests := []struct {
		name           string
		statuses       []LoanStatus
		wantSecondTime bool
		wantRepaid     int
		wantDefaulted  int
		wantTier       BorrowerTier
	}{
		{"no loans", nil, false, 0, 0, BorrowerTierNone},
		{"one active loan only", []LoanStatus{LoanStatusActive}, false, 0, 0, BorrowerTierNone},
		{"one repaid", []LoanStatus{LoanStatusPaid}, true, 1, 0, BorrowerTierSilver},
		{"two repaid", []LoanStatus{LoanStatusPaid, LoanStatusPaid}, true, 2, 0, BorrowerTierSilver},
		{"three repaid reaches gold", []LoanStatus{LoanStatusPaid, LoanStatusPaid, LoanStatusPaid}, true, 3, 0, BorrowerTierGold},
		{"default alone is not second time", []LoanStatus{LoanStatusDefaulted}, false, 0, 1, BorrowerTierNone},
		{"default does not revoke second time", []LoanStatus{LoanStatusPaid, LoanStatusDefaulted}, true, 1, 1, BorrowerTierSilver},
		{"mixed with open loans", []LoanStatus{LoanStatusPaid, LoanStatusPaid, LoanStatusPaid, LoanStatusPastDue, LoanStatusDefaulted}, true, 3, 1, BorrowerTierGold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isSecondTime, repaid, defaulted, tier := classifyLoanHistory(historyLoans(tt.statuses...), 3)
			if isSecondTime != tt.wantSecondTime {
				t.Errorf("isSecondTime = %v, want %v", isSecondTime, tt.wantSecondTime)
			}
			if repaid != tt.wantRepaid || defaulted != tt.wantDefaulted {
				t.Errorf("repaid/defaulted = %d/%d, want %d/%d", repaid, defaulted, tt.wantRepaid, tt.wantDefaulted)
			}
			if tier != tt.wantTier {
				t.Errorf("tier = %s, want %s", tier, tt.wantTier)
			}
		})
	}
}

func TestNewBorrowerValidate(t *testing.T) {
	institution := "Nairobi Technical Institute"
	regNo := "NTI/2024/117"

	t.Run("standard borrower", func(t *testing.T) {
		input := NewBorrower{FullName: "A", NationalId: "123", PhoneNumber: "0700"}
		if err := input.validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if input.BorrowerType != BorrowerTypeStandard {
			t.Errorf("type = %s, want default Standard", input.BorrowerType)
		}
	})

	t.Run("student with full profile", func(t *testing.T) {
		input := NewBorrower{
			FullName: "B", NationalId: "456", PhoneNumber: "0701",
			BorrowerType: BorrowerTypeStudent, Institution: &institution, RegistrationNumber: &regNo,
		}
		if err := input.validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("student missing institution", func(t *testing.T) {
		input := NewBorrower{
			FullName: "C", NationalId: "789", PhoneNumber: "0702",
			BorrowerType: BorrowerTypeStudent, RegistrationNumber: &regNo,
		}
		err := input.validate()
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Code != "missingInstitution" {
			t.Fatalf("err = %v, want missingInstitution", err)
		}
	})

	t.Run("student missing registration number", func(t *testing.T) {
		input := NewBorrower{
			FullName: "D", NationalId: "790", PhoneNumber: "0703",
			BorrowerType: BorrowerTypeStudent, Institution: &institution,
		}
		err := input.validate()
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Code != "missingRegistrationNumber" {
			t.Fatalf("err = %v, want missingRegistrationNumber", err)
		}
	})
}
