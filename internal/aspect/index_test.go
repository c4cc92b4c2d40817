package aspect

import (
	"math"
	"testing"
)

func TestIndex_SetGet(t *testing.T) {
	ix := New(10)

	if ar, ok := ix.Get(3); ok || ar != 1.0 {
		t.Errorf("unmeasured Get = (%v,%v), want (1.0,false)", ar, ok)
	}

	ix.Set(3, 1.5)
	ix.Set(3, 1.6)
	if ar, ok := ix.Get(3); !ok || ar != 1.6 {
		t.Errorf("Get(3) = (%v,%v), want (1.6,true)", ar, ok)
	}
	if ix.Measured() != 1 {
		t.Errorf("Measured() = %d, want 1 after overwrite", ix.Measured())
	}

	ix.Set(-1, 2)
	ix.Set(10, 2)
	if ix.Measured() != 1 {
		t.Error("out of range Set should be ignored")
	}
	if _, ok := ix.Get(99); ok {
		t.Error("out of range Get should report unmeasured")
	}
}

func TestIndex_SanitizesRatios(t *testing.T) {
	ix := New(3)
	ix.SetRange(0, []float64{0, math.NaN(), -3})
	for i := 0; i < 3; i++ {
		if ar, ok := ix.Get(i); !ok || ar != 1.0 {
			t.Errorf("Get(%d) = (%v,%v), want (1.0,true)", i, ar, ok)
		}
	}
}

func TestIndex_Coverage(t *testing.T) {
	ix := New(200)
	ratios := make([]float64, 150)
	for i := range ratios {
		ratios[i] = 0.75
	}
	ix.SetRange(10, ratios)

	if got := ix.Coverage(200); got != 0.75 {
		t.Errorf("Coverage = %v, want 0.75", got)
	}
	if got := ix.Coverage(0); got != 0 {
		t.Errorf("Coverage(0) = %v, want 0", got)
	}
	if got := ix.MeasuredIn(0, 64); got != 54 {
		t.Errorf("MeasuredIn(0,64) = %d, want 54", got)
	}
	if got := ix.MeasuredIn(64, 200); got != 96 {
		t.Errorf("MeasuredIn(64,200) = %d, want 96", got)
	}
	if got := ix.MeasuredIn(-5, 1000); got != 150 {
		t.Errorf("MeasuredIn clamped = %d, want 150", got)
	}
}

func TestIndex_ResizeShrinkDropsCounts(t *testing.T) {
	ix := New(130)
	for i := 0; i < 130; i++ {
		ix.Set(i, 2)
	}
	ix.Resize(70)
	if ix.Measured() != 70 {
		t.Errorf("Measured() after shrink = %d, want 70", ix.Measured())
	}
	if ix.MeasuredIn(0, 70) != 70 {
		t.Errorf("MeasuredIn after shrink = %d", ix.MeasuredIn(0, 70))
	}

	ix.Resize(130)
	if _, ok := ix.Get(100); ok {
		t.Error("regrown slot should be unmeasured")
	}
	if ix.Measured() != 70 {
		t.Errorf("Measured() after regrow = %d, want 70", ix.Measured())
	}
}

func TestIndex_Reset(t *testing.T) {
	ix := New(5)
	ix.Set(1, 2)
	ix.Reset(8)
	if ix.Len() != 8 || ix.Measured() != 0 {
		t.Errorf("after Reset: Len=%d Measured=%d", ix.Len(), ix.Measured())
	}
}
