package points

import "testing"

func TestLevel(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 1},
		{1, 1},
		{99, 1},
		{100, 2},
		{101, 2},
		{199, 2},
		{200, 3},
		{1000, 11},
		{-5, 1},
	}
	for _, tt := range tests {
		if got := Level(tt.total); got != tt.want {
			t.Errorf("Level(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}
