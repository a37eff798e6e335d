package models

import (
	"errors"
	"testing"
	"time"
)

func TestCollateralReleaseIsIdempotent(t *testing.T) {
	first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	later := first.AddDate(0, 0, 5)

	c := &Collateral{IsHeld: true}
	if !c.release(first) {
		t.Fatal("first release should report a change")
	}
	if c.IsHeld {
		t.Error("collateral still held after release")
	}
	if c.release(later) {
		t.Error("second release should be a no-op")
	}
	if !c.ReleasedAt.Equal(first) {
		t.Errorf("release date = %v, want original %v", c.ReleasedAt, first)
	}
}

func TestCollateralMarkSold(t *testing.T) {
	soldDate := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("defaulted loan sells", func(t *testing.T) {
		c := &Collateral{IsHeld: true}
		if err := c.markSold(dec("15000"), soldDate, LoanStatusDefaulted); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !c.IsSold || c.IsHeld {
			t.Error("sold collateral must be marked sold and no longer held")
		}
		if c.SoldPrice == nil || !c.SoldPrice.Equal(dec("15000")) {
			t.Error("sold price not recorded")
		}
	})

	t.Run("non-defaulted loan refuses sale", func(t *testing.T) {
		for _, s := range []LoanStatus{LoanStatusActive, LoanStatusDue, LoanStatusPastDue, LoanStatusPaid} {
			c := &Collateral{IsHeld: true}
			err := c.markSold(dec("15000"), soldDate, s)
			var se *StateError
			if !errors.As(err, &se) || se.Code != "notDefaulted" {
				t.Errorf("status %s: err = %v, want notDefaulted", s, err)
			}
		}
	})

	t.Run("double sale refused", func(t *testing.T) {
		c := &Collateral{IsHeld: true}
		if err := c.markSold(dec("15000"), soldDate, LoanStatusDefaulted); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err := c.markSold(dec("16000"), soldDate, LoanStatusDefaulted)
		var se *StateError
		if !errors.As(err, &se) || se.Code != "alreadySold" {
			t.Fatalf("err = %v, want alreadySold", err)
		}
	})

	t.Run("non-positive price refused", func(t *testing.T) {
		c := &Collateral{IsHeld: true}
		err := c.markSold(dec("0"), soldDate, LoanStatusDefaulted)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Code != "nonPositiveAmount" {
			t.Fatalf("err = %v, want nonPositiveAmount", err)
		}
	})
}

func TestNewCollateralSeize(t *testing.T) {
	input := NewCollateral{
		ItemName:      "Dell Latitude 5420",
		Category:      "Laptop",
		SerialNumber:  "SN-1",
		ItemCondition: ItemConditionGood,
	}
	c := input.seize()
	if !c.IsHeld {
		t.Error("seized collateral must be held")
	}
	if c.IsSold || c.ReleasedAt != nil {
		t.Error("fresh collateral must not be sold or released")
	}
}
