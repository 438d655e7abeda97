package bigint

import "testing"

func TestInRange(t *testing.T) {
	v := FromUint64(4, 15)
	if !v.InRange() {
		t.Fatalf("15 should fit in width 4")
	}
	v2 := FromUint64(4, 16)
	if v2.InRange() {
		t.Fatalf("16 should not fit in width 4")
	}
}

func TestArithmetic(t *testing.T) {
	a := FromUint64(8, 200)
	b := FromUint64(8, 100)
	sum := a.Add(b)
	if sum.Uint64() != 300 {
		t.Fatalf("expected 300, got %d", sum.Uint64())
	}
	diff := a.Sub(b)
	if diff.Uint64() != 100 {
		t.Fatalf("expected 100, got %d", diff.Uint64())
	}
}

func TestMask(t *testing.T) {
	v := FromUint64(4, 31).Mask()
	if v.Uint64() != 15 {
		t.Fatalf("expected masked value 15, got %d", v.Uint64())
	}
}

func TestDivByZero(t *testing.T) {
	a := FromUint64(8, 10)
	z := FromUint64(8, 0)
	if _, err := a.Div(z); err == nil {
		t.Fatalf("expected division by zero error")
	}
}
