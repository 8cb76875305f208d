package kernel

// Conv1x1 computes a 1x1 convolution over a channels x spatial activation
// map: out[k][s] = sum_c weights[k*channels+c] * data[c][s]. A 1x1
// convolution is nothing but a per-pixel matrix multiply, so this is a
// plain GEMM (outputs x channels) * (channels x spatial) rather than
// anything Winograd-shaped — exactly how the policy and value head
// convolutions are computed (filter_size=1), as opposed to the tower's
// 3x3 convolutions.
func Conv1x1(data, weights []float32, channels, outputs, spatial int) []float32 {
	out := make([]float32, outputs*spatial)
	Gemm(false, false, outputs, spatial, channels, 1, weights, channels, data, spatial, 0, out, spatial)
	return out
}
