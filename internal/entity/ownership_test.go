package entity

import (
	"testing"

	"github.com/duetapp/duet/internal/couple"
)

func activeCouple() *couple.Couple {
	b := "user-b"
	return &couple.Couple{ID: "couple-1", UserA: "user-a", UserB: &b, Status: couple.StatusActive}
}

func TestDecideOwnership(t *testing.T) {
	pending := &couple.Couple{ID: "couple-2", UserA: "user-a", Status: couple.StatusPending}

	tests := []struct {
		name         string
		resolved     *couple.Couple
		explicit     bool
		wantPersonal bool
		wantCouple   *string
	}{
		{"active couple shared", activeCouple(), false, false, strPtr("couple-1")},
		{"active couple explicit personal", activeCouple(), true, true, nil},
		{"no couple", nil, false, true, nil},
		{"no couple explicit personal", nil, true, true, nil},
		{"pending couple", pending, false, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideOwnership(tt.resolved, tt.explicit)
			if got.IsPersonal != tt.wantPersonal {
				t.Errorf("IsPersonal = %v, want %v", got.IsPersonal, tt.wantPersonal)
			}
			if (got.CoupleID == nil) != (tt.wantCouple == nil) {
				t.Fatalf("CoupleID = %v, want %v", got.CoupleID, tt.wantCouple)
			}
			if got.CoupleID != nil && *got.CoupleID != *tt.wantCouple {
				t.Errorf("CoupleID = %q, want %q", *got.CoupleID, *tt.wantCouple)
			}
			if got.IsPersonal && got.CoupleID != nil {
				t.Error("personal ownership must not carry a couple id")
			}
			if !got.IsPersonal && got.CoupleID == nil {
				t.Error("shared ownership must carry a couple id")
			}
		})
	}
}

func TestDecideOwnershipDoesNotMutateInput(t *testing.T) {
	c := activeCouple()
	before := *c
	DecideOwnership(c, true)
	DecideOwnership(c, false)
	if *c != before {
		t.Error("DecideOwnership mutated the resolved couple")
	}
}

func strPtr(s string) *string { return &s }
