package winograd

import (
	"math/rand"
	"testing"

	"github.com/lczerogo/engine/internal/kernel"
)

func approxEqual(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestConvolve3x3Identity(t *testing.T) {
	// A single 3x3 filter with only the center tap set to 1 reproduces
	// its input exactly under same-padding.
	filter := make([]float32, 9)
	filter[4] = 1 // row 1, col 1 = center
	u := TransformFilter(filter, 1, 1)

	input := make([]float32, BoardSize*BoardSize)
	for i := range input {
		input[i] = float32(i + 1)
	}

	out := Convolve3x3(input, u, 1, 1)
	for i := range input {
		if !approxEqual(out[i], input[i], 1e-3) {
			t.Fatalf("Convolve3x3 identity mismatch at %d: got %v want %v", i, out[i], input[i])
		}
	}
}

// directConvolve3x3 is an independent, non-Winograd same-padded 3x3
// convolution used only to cross-check the Winograd path in this test.
func directConvolve3x3(data, weights []float32, channels, outputs int) []float32 {
	out := make([]float32, outputs*BoardSize*BoardSize)
	for k := 0; k < outputs; k++ {
		for c := 0; c < channels; c++ {
			wbase := (k*channels + c) * 9
			for y := 0; y < BoardSize; y++ {
				for x := 0; x < BoardSize; x++ {
					var sum float32
					for dy := -1; dy <= 1; dy++ {
						sy := y + dy
						if sy < 0 || sy >= BoardSize {
							continue
						}
						for dx := -1; dx <= 1; dx++ {
							sx := x + dx
							if sx < 0 || sx >= BoardSize {
								continue
							}
							sum += weights[wbase+(dy+1)*3+(dx+1)] * data[c*BoardSize*BoardSize+sy*BoardSize+sx]
						}
					}
					out[k*BoardSize*BoardSize+y*BoardSize+x] += sum
				}
			}
		}
	}
	return out
}

func TestConvolve3x3MatchesDirect(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	channels, outputs := 3, 2

	filter := make([]float32, outputs*channels*9)
	for i := range filter {
		filter[i] = rng.Float32()*2 - 1
	}
	input := make([]float32, channels*BoardSize*BoardSize)
	for i := range input {
		input[i] = rng.Float32()*2 - 1
	}

	u := TransformFilter(filter, channels, outputs)
	got := Convolve3x3(input, u, channels, outputs)
	want := directConvolve3x3(input, filter, channels, outputs)

	for i := range want {
		if !approxEqual(got[i], want[i], 1e-2) {
			t.Fatalf("Convolve3x3 vs direct mismatch at %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestGemmUsedByWinogradIsConsistent(t *testing.T) {
	// Sanity check that kernel.Gemm composes the way Sgemm expects:
	// a 1x1-per-tile multiply should just be a dot product.
	u := []float32{1, 2, 3}    // channels=3, outputs=1
	v := []float32{4, 5, 6}    // channels=3, P=1
	out := make([]float32, 1) // outputs=1, P=1
	kernel.Gemm(true, false, 1, 1, 3, 1, u, 1, v, 1, 0, out, 1)
	want := float32(1*4 + 2*5 + 3*6)
	if !approxEqual(out[0], want, 1e-4) {
		t.Fatalf("Gemm tile multiply = %v, want %v", out[0], want)
	}
}
