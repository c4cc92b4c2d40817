package scroll

import "testing"

func TestCanonicalMax(t *testing.T) {
	tests := []struct {
		name        string
		total, cols int
		avg         float64
		viewport    int
		want        int
	}{
		{"floored for small sets", 10, 4, 100, 600, 10000},
		{"large set", 250000, 5, 202, 800, 50000*202 - 800},
		{"average below minimum row", 100000, 1, 3, 0, 100000 * 10},
		{"zero columns treated as one", 20000, 0, 50, 0, 20000 * 50},
		{"empty set", 0, 3, 50, 0, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalMax(tt.total, tt.cols, tt.avg, tt.viewport); got != tt.want {
				t.Errorf("CanonicalMax() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPageFromPosition(t *testing.T) {
	tests := []struct {
		name                  string
		value, max, total, ps int
		want                  int
	}{
		{"top", 0, 100000, 250000, 1000, 0},
		{"middle", 50000, 100000, 250000, 1000, 125},
		{"bottom", 100000, 100000, 250000, 1000, 249},
		{"beyond max", 150000, 100000, 250000, 1000, 249},
		{"zero max", 500, 0, 250000, 1000, 0},
		{"empty", 500, 1000, 0, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PageFromPosition(tt.value, tt.max, tt.total, tt.ps); got != tt.want {
				t.Errorf("PageFromPosition() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEdgeOf(t *testing.T) {
	tests := []struct {
		value, max int
		want       Edge
	}{
		{0, 1000, EdgeTop},
		{2, 1000, EdgeTop},
		{3, 1000, EdgeNone},
		{997, 1000, EdgeNone},
		{998, 1000, EdgeBottom},
		{1000, 1000, EdgeBottom},
	}
	for _, tt := range tests {
		if got := EdgeOf(tt.value, tt.max); got != tt.want {
			t.Errorf("EdgeOf(%d, %d) = %s, want %s", tt.value, tt.max, got, tt.want)
		}
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name   string
		host   HostRange
		target ReconcileTarget
		want   int
	}{
		{"preserves fraction", HostRange{Value: 2500, Max: 10000}, ReconcileTarget{NewMax: 20000, BottomValue: -1}, 5000},
		{"unchanged max keeps value", HostRange{Value: 1234, Max: 10000}, ReconcileTarget{NewMax: 10000, BottomValue: -1}, 1234},
		{"clamps to new max", HostRange{Value: 9000, Max: 0}, ReconcileTarget{NewMax: 5000, BottomValue: -1}, 5000},
		{"locked fraction wins", HostRange{Value: 0, Max: 10000}, ReconcileTarget{NewMax: 40000, Locked: true, LockedFraction: 0.25, Edge: EdgeTop, BottomValue: -1}, 10000},
		{"top edge", HostRange{Value: 400, Max: 10000}, ReconcileTarget{NewMax: 30000, Edge: EdgeTop, HasAnchor: true, AnchorValue: 700, BottomValue: -1}, 0},
		{"bottom edge uses max", HostRange{Value: 9999, Max: 10000}, ReconcileTarget{NewMax: 30000, Edge: EdgeBottom, BottomValue: -1}, 30000},
		{"bottom edge uses tail", HostRange{Value: 9999, Max: 10000}, ReconcileTarget{NewMax: 30000, Edge: EdgeBottom, BottomValue: 28000}, 28000},
		{"anchor", HostRange{Value: 400, Max: 10000}, ReconcileTarget{NewMax: 30000, HasAnchor: true, AnchorValue: 777, BottomValue: -1}, 777},
		{"anchor clamped", HostRange{Value: 400, Max: 10000}, ReconcileTarget{NewMax: 30000, HasAnchor: true, AnchorValue: 99999, BottomValue: -1}, 30000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reconcile(tt.host, tt.target); got != tt.want {
				t.Errorf("Reconcile() = %d, want %d", got, tt.want)
			}
		})
	}
}
