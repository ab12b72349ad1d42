package emergency

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusNew, StatusAcknowledged, true},
		{StatusNew, StatusResolved, true},
		{StatusAcknowledged, StatusResolved, true},
		{StatusAcknowledged, StatusNew, false},
		{StatusResolved, StatusAcknowledged, false},
		{StatusNew, StatusNew, false},
		{StatusNew, "escalated", false},
		{"", StatusResolved, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
