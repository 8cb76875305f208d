package kernel

import "math"

// BatchNormReLU applies a per-channel affine transform followed by ReLU
// to a C x spatial activation buffer in place:
//
//	out[c][s] = max(0, stddiv[c]*(data[c][s]-mean[c]) + eltwise[c][s])
//
// eltwise may be nil, in which case it contributes zero (the plain,
// non-residual case); when non-nil it is the tensor a residual block
// adds back in before the final ReLU. This is the same fused shape as
// the clipped-ReLU activation layer it is grounded on, generalized from
// a quantized int8 clamp to a float32 affine transform with an optional
// residual add.
func BatchNormReLU(data []float32, channels, spatial int, means, stddivs []float32, eltwise []float32) {
	for c := 0; c < channels; c++ {
		mean := means[c]
		stddiv := stddivs[c]
		base := c * spatial
		row := data[base : base+spatial]
		if eltwise == nil {
			for s, v := range row {
				x := stddiv * (v - mean)
				if x < 0 {
					x = 0
				}
				row[s] = x
			}
			continue
		}
		skip := eltwise[base : base+spatial]
		for s, v := range row {
			x := stddiv*(v-mean) + skip[s]
			if x < 0 {
				x = 0
			}
			row[s] = x
		}
	}
}

// StddivFromVariance converts a batch-norm running variance into the
// reciprocal standard deviation the forward pass actually multiplies by:
// 1/sqrt(var+epsilon). The weight loader does not call it; it takes each
// batch-norm line of the weight file as reciprocal standard deviations
// already.
func StddivFromVariance(variance, epsilon float32) float32 {
	return float32(1.0 / math.Sqrt(float64(variance+epsilon)))
}
