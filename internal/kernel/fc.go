package kernel

// FullyConnected computes out = weights*input + biases for a dense layer
// with the given input/output widths, weights stored row-major as
// outputs x inputs. This plays the role the affine-transform layer's
// Propagate method plays in a quantized network, but over plain float32
// activations instead of an int8/uint8 SIMD dot product.
func FullyConnected(input []float32, weights []float32, biases []float32, inputs, outputs int) []float32 {
	out := make([]float32, outputs)
	for o := 0; o < outputs; o++ {
		out[o] = biases[o] + dot(input, weights[o*inputs:o*inputs+inputs])
	}
	return out
}
