package kernel

import "testing"

func approxEqual(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestGemmIdentityNoTrans(t *testing.T) {
	// A = [[1,2],[3,4]], B = [[5,6],[7,8]] -> C = A*B = [[19,22],[43,50]]
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	c := make([]float32, 4)
	Gemm(false, false, 2, 2, 2, 1, a, 2, b, 2, 0, c, 2)

	want := []float32{19, 22, 43, 50}
	for i := range want {
		if !approxEqual(c[i], want[i], 1e-4) {
			t.Fatalf("Gemm() = %v, want %v", c, want)
		}
	}
}

func TestGemmTransA(t *testing.T) {
	// A stored as 2x2 but used transposed: At = [[1,3],[2,4]]
	a := []float32{1, 2, 3, 4} // row-major 2x2: [[1,2],[3,4]]
	b := []float32{1, 0, 0, 1} // identity
	c := make([]float32, 4)
	Gemm(true, false, 2, 2, 2, 1, a, 2, b, 2, 0, c, 2)

	want := []float32{1, 3, 2, 4} // At
	for i := range want {
		if !approxEqual(c[i], want[i], 1e-4) {
			t.Fatalf("Gemm(transA) = %v, want %v", c, want)
		}
	}
}

func TestGemmBeta(t *testing.T) {
	a := []float32{1, 0, 0, 1}
	b := []float32{1, 0, 0, 1}
	c := []float32{10, 10, 10, 10}
	Gemm(false, false, 2, 2, 2, 1, a, 2, b, 2, 2, c, 2)
	// C = 1*I*I + 2*[10...] = I + 20 everywhere except diagonal gets +1
	want := []float32{21, 20, 20, 21}
	for i := range want {
		if !approxEqual(c[i], want[i], 1e-4) {
			t.Fatalf("Gemm(beta) = %v, want %v", c, want)
		}
	}
}

func TestConv1x1(t *testing.T) {
	// 2 input channels x 2x2 "spatial", 3 output channels.
	data := []float32{
		1, 2, 3, 4, // channel 0
		5, 6, 7, 8, // channel 1
	}
	weights := []float32{
		1, 0, // output 0: channel 0 only
		0, 1, // output 1: channel 1 only
		1, 1, // output 2: sum of both channels
	}
	out := Conv1x1(data, weights, 2, 3, 4)

	want := []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		6, 8, 10, 12,
	}
	for i := range want {
		if !approxEqual(out[i], want[i], 1e-4) {
			t.Fatalf("Conv1x1() = %v, want %v", out, want)
		}
	}
}

func TestFullyConnected(t *testing.T) {
	input := []float32{1, 2, 3}
	weights := []float32{1, 0, 0, 0, 1, 0} // 2 outputs x 3 inputs
	biases := []float32{0.5, -0.5}
	out := FullyConnected(input, weights, biases, 3, 2)
	want := []float32{1.5, 1.5}
	for i := range want {
		if !approxEqual(out[i], want[i], 1e-4) {
			t.Fatalf("FullyConnected() = %v, want %v", out, want)
		}
	}
}
