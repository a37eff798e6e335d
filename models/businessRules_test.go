package models

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestRateFor(t *testing.T) {
	rules := testRules()

	tests := []struct {
		weeks    int
		wantRate string
	}{
		{1, "15"},
		{2, "21"},
		{3, "25"},
		{4, "28"},
	}
	for _, tt := range tests {
		rate, err := rules.RateFor(tt.weeks)
		if err != nil {
			t.Fatalf("weeks=%d: unexpected error: %v", tt.weeks, err)
		}
		if !rate.Equal(dec(tt.wantRate)) {
			t.Errorf("weeks=%d: rate = %s, want %s", tt.weeks, rate, tt.wantRate)
		}
	}

	for _, weeks := range []int{0, 5, -1, 52} {
		_, err := rules.RateFor(weeks)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Code != "unsupportedPeriod" {
			t.Errorf("weeks=%d: err = %v, want unsupportedPeriod", weeks, err)
		}
	}
}

func TestIsNegotiable(t *testing.T) {
	rules := testRules()
	secondTimer := &BorrowerHistory{Exists: true, IsSecondTimeBorrower: true}
	firstTimer := &BorrowerHistory{Exists: true}

	tests := []struct {
		name    string
		amount  string
		history *BorrowerHistory
		want    bool
	}{
		{"small amount first timer", "20000", firstTimer, false},
		{"above threshold first timer", "50001", firstTimer, true},
		{"exactly threshold first timer", "50000", firstTimer, false},
		{"small amount second timer", "20000", secondTimer, true},
		{"above threshold second timer", "60000", secondTimer, true},
		{"no history record", "20000", nil, false},
		{"above threshold no history", "60000", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.IsNegotiable(dec(tt.amount), tt.history); got != tt.want {
				t.Errorf("IsNegotiable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeedableRulesErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing row", gorm.ErrRecordNotFound, true},
		{"wrapped missing row", fmt.Errorf("load rules: %w", gorm.ErrRecordNotFound), true},
		{"transient failure", errors.New("dial tcp: connection refused"), false},
		{"no error", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := seedableRulesErr(tt.err); got != tt.want {
				t.Errorf("seedableRulesErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
