package couple

import (
	"strings"
	"testing"
)

func TestGeneratePairingCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GeneratePairingCode()
		if err != nil {
			t.Fatalf("GeneratePairingCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-character code, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(pairingCodeAlphabet, r) {
				t.Fatalf("code %q contains character outside alphabet", code)
			}
		}
		seen[code] = true
	}
	// 50 draws from a 36^6 space should not all collide.
	if len(seen) < 2 {
		t.Fatal("pairing codes do not vary")
	}
}

func TestOtherUser(t *testing.T) {
	b := "user-b"
	tests := []struct {
		name   string
		couple *Couple
		userID string
		want   string
	}{
		{"from user_a side", &Couple{UserA: "user-a", UserB: &b}, "user-a", "user-b"},
		{"from user_b side", &Couple{UserA: "user-a", UserB: &b}, "user-b", "user-a"},
		{"unpaired couple", &Couple{UserA: "user-a"}, "user-a", ""},
		{"not a member", &Couple{UserA: "user-a", UserB: &b}, "user-c", ""},
		{"nil couple", nil, "user-a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.couple.OtherUser(tt.userID); got != tt.want {
				t.Errorf("OtherUser(%q) = %q, want %q", tt.userID, got, tt.want)
			}
		})
	}
}

func TestIsActive(t *testing.T) {
	if (&Couple{Status: StatusPending}).IsActive() {
		t.Error("pending couple should not be active")
	}
	if !(&Couple{Status: StatusActive}).IsActive() {
		t.Error("active couple should be active")
	}
	var nilCouple *Couple
	if nilCouple.IsActive() {
		t.Error("nil couple should not be active")
	}
}
