package accelerator

import "testing"

func constEvaluator(policy []float32, value float32) Evaluator {
	return EvalFunc(func(planes []float32) ([]float32, float32, error) {
		return append([]float32(nil), policy...), value, nil
	})
}

func TestSelfCheckingPassesOnAgreement(t *testing.T) {
	fast := constEvaluator([]float32{0.5, 0.5}, 0.1)
	ref := constEvaluator([]float32{0.5, 0.5}, 0.1)
	sc := NewSelfChecking(fast, ref, 1)

	// Cross-checks are random at 1-in-2000 odds; 5000 calls with a fixed
	// seed make it likely that a few of them run the reference path.
	for i := 0; i < 5000; i++ {
		if _, _, err := sc.Evaluate(nil); err != nil {
			t.Fatalf("Evaluate() unexpected error on agreeing evaluators: %v", err)
		}
	}
}

func TestSelfCheckingDetectsPersistentMismatch(t *testing.T) {
	fast := constEvaluator([]float32{0.9, 0.1}, 0.9)
	ref := constEvaluator([]float32{0.1, 0.9}, -0.9)
	sc := NewSelfChecking(fast, ref, 2)
	sc.credit = 2 // shrink the credit budget so the test doesn't need millions of calls

	var sawError bool
	for i := 0; i < 20000 && !sawError; i++ {
		if _, _, err := sc.Evaluate(nil); err != nil {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("Evaluate() never reported a self-check failure despite a persistent mismatch")
	}
}

func TestRelativelyClose(t *testing.T) {
	cases := []struct {
		a, b float32
		want bool
	}{
		{1.0, 1.05, true},
		{1.0, 1.2, false},
		{0.0001, -0.0001, true},
		{0.0001, 0.5, false},
	}
	for _, c := range cases {
		if got := relativelyClose(c.a, c.b); got != c.want {
			t.Errorf("relativelyClose(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
