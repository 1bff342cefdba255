package vm

import "testing"

func TestChance(t *testing.T) {
	tests := []struct {
		name string
		draw int
		pct  int64
		want bool
	}{
		{"zero never", 0, 0, false},
		{"negative never", 0, -5, false},
		{"hundred always", 99, 100, true},
		{"above hundred always", 99, 150, true},
		{"draw below", 29, 30, true},
		{"draw at", 30, 30, false},
		{"draw above", 70, 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chance(fixedSource(tt.draw), tt.pct); got != tt.want {
				t.Errorf("chance(%d, %d) = %v, want %v", tt.draw, tt.pct, got, tt.want)
			}
		})
	}
}

func TestNewRandSourceIsDeterministic(t *testing.T) {
	a, b := NewRandSource(42), NewRandSource(42)
	for i := 0; i < 20; i++ {
		if x, y := a.Intn(100), b.Intn(100); x != y {
			t.Fatalf("draw %d: %d != %d", i, x, y)
		}
	}
}
