package types

import (
	"testing"
)

func TestRegionOverlaps_LineRanges(t *testing.T) {
	tests := []struct {
		name string
		a, b Region
		want bool
	}{
		{"identical single line", LineRegion(5, 5), LineRegion(5, 5), true},
		{"surrounding range", LineRegion(5, 5), LineRegion(4, 6), true},
		{"adjacent below", LineRegion(5, 5), LineRegion(6, 7), false},
		{"adjacent above", LineRegion(6, 7), LineRegion(5, 5), false},
		{"partial overlap", LineRegion(1, 15), LineRegion(10, 20), true},
		{"disjoint", LineRegion(1, 5), LineRegion(10, 20), false},
		{"touching endpoints", LineRegion(1, 10), LineRegion(10, 20), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			// Overlap is symmetric
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestRegionOverlaps_WholeFileAndSymbol(t *testing.T) {
	lines := LineRegion(100, 200)

	if !WholeFile().Overlaps(lines) {
		t.Error("whole_file should overlap any line range")
	}
	if !lines.Overlaps(WholeFile()) {
		t.Error("line range should overlap whole_file")
	}
	// Symbol regions are conservative: they conflict as whole-file
	if !SymbolRegion("ParseConfig").Overlaps(lines) {
		t.Error("symbol region should overlap line ranges")
	}
	if !SymbolRegion("a").Overlaps(SymbolRegion("b")) {
		t.Error("two symbol regions should overlap")
	}
}

func TestEstimateTokens(t *testing.T) {
	m := Message{Role: RoleUser, Content: "12345678"} // 8 chars -> 2 + 4
	if got := EstimateTokens(m); got != 6 {
		t.Errorf("EstimateTokens = %d, want 6", got)
	}

	empty := Message{Role: RoleUser}
	if got := EstimateTokens(empty); got != 4 {
		t.Errorf("EstimateTokens(empty) = %d, want 4", got)
	}

	msgs := []Message{m, empty}
	if got := EstimateTotalTokens(msgs); got != 10 {
		t.Errorf("EstimateTotalTokens = %d, want 10", got)
	}
}

func TestUsageTotalTokens(t *testing.T) {
	u := Usage{InputTokens: 100, OutputTokens: 50}
	if got := u.TotalTokens(); got != 150 {
		t.Errorf("TotalTokens = %d, want 150", got)
	}
}
