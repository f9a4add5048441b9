package ids

import "testing"

func TestNewIsSortableAndValid(t *testing.T) {
	a := New()
	b := New()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if a >= b {
		t.Fatalf("expected monotonic ids: %s >= %s", a, b)
	}
	if !Valid(a) || !Valid(b) {
		t.Fatalf("generated ids must be valid: %s %s", a, b)
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "   ", "not-an-id", "01HZZZZZZZZZZZZZZZZZZZZZZZZ"} {
		if Valid(s) {
			t.Fatalf("Valid(%q) = true", s)
		}
	}
}
