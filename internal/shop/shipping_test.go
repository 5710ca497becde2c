package shop

import "testing"

func TestProgress(t *testing.T) {
	cases := []struct {
		subtotal, threshold string
		pct, left           float64
		leftMoney           string
		complete            bool
	}{
		{"0", "100", 0, 100, "100", false},
		{"40", "100", 40, 60, "60", false},
		{"100", "100", 100, 0, "0", true},
		{"120", "100", 100, 0, "0", true},
		{"25", "50", 50, 50, "25", false},
		{"0", "0", 100, 0, "0", true},
		{"30", "-5", 100, 0, "0", true},
	}
	for _, tc := range cases {
		got := Progress(dec(tc.subtotal), dec(tc.threshold))
		if got.Percentage != tc.pct || got.LeftPercentage != tc.left {
			t.Fatalf("%s/%s: pct=%v left=%v", tc.subtotal, tc.threshold, got.Percentage, got.LeftPercentage)
		}
		if !got.LeftMoney.Equal(dec(tc.leftMoney)) || got.Complete != tc.complete {
			t.Fatalf("%s/%s: leftMoney=%s complete=%v", tc.subtotal, tc.threshold, got.LeftMoney, got.Complete)
		}
		if got.Percentage+got.LeftPercentage != 100 {
			t.Fatalf("%s/%s: percentages do not add up", tc.subtotal, tc.threshold)
		}
	}
}
