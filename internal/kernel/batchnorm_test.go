package kernel

import "testing"

func TestBatchNormReLUPlain(t *testing.T) {
	data := []float32{1, 2, -1, 0}
	means := []float32{1}
	stddivs := []float32{2}
	BatchNormReLU(data, 1, 4, means, stddivs, nil)
	// out = max(0, 2*(x-1))
	want := []float32{0, 2, 0, 0}
	for i := range want {
		if !approxEqual(data[i], want[i], 1e-4) {
			t.Fatalf("BatchNormReLU() = %v, want %v", data, want)
		}
	}
}

func TestBatchNormReLUWithEltwise(t *testing.T) {
	data := []float32{1, 1}
	means := []float32{0}
	stddivs := []float32{1}
	eltwise := []float32{-5, 5}
	BatchNormReLU(data, 1, 2, means, stddivs, eltwise)
	want := []float32{0, 6}
	for i := range want {
		if !approxEqual(data[i], want[i], 1e-4) {
			t.Fatalf("BatchNormReLU(eltwise) = %v, want %v", data, want)
		}
	}
}

func TestStddivFromVariance(t *testing.T) {
	got := StddivFromVariance(3, 1)
	if !approxEqual(got, 0.5, 1e-4) {
		t.Fatalf("StddivFromVariance(3,1) = %v, want 0.5", got)
	}
}
