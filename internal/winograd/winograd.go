// Package winograd implements the F(2x2,3x3) Winograd convolution used
// for every 3x3 convolution in the residual tower: filters are
// transformed once at load time, activations are transformed per call,
// multiplied tile-by-tile with a batched GEMM, then transformed back.
// The three transforms and the tiling scheme are a direct translation of
// the winograd_transform_f / winograd_transform_in / winograd_sgemm /
// winograd_transform_out routines this engine's forward pass descends
// from; only the calling convention (no cblas_sgemm, no Eigen) differs.
package winograd

import "github.com/lczerogo/engine/internal/kernel"

const (
	// BoardSize is the fixed 8x8 spatial extent every convolution operates over.
	BoardSize = 8
	// Alpha is the Winograd tile transform width, F(2,3) => 2+3-1 = 4.
	Alpha = 4
	// Tile is the number of transform-domain coefficients per tile, Alpha*Alpha.
	Tile = Alpha * Alpha
	// P is the number of 2x2 output tiles covering an 8x8 board.
	P = (BoardSize / 2) * (BoardSize / 2)
)

// filterTransform is G, the 4x3 Winograd filter transform matrix for F(2,3).
var filterTransform = [Alpha][3]float32{
	{1, 0, 0},
	{0.5, 0.5, 0.5},
	{0.5, -0.5, 0.5},
	{0, 0, 1},
}

// inputTransformT is B^T, the 4x4 Winograd input transform matrix for F(2,3).
var inputTransformT = [Alpha][Alpha]float32{
	{1, 0, -1, 0},
	{0, 1, 1, 0},
	{0, -1, 1, 0},
	{0, 1, 0, -1},
}

// outputTransformT is A^T, the 2x4 Winograd output transform matrix for F(2,3).
var outputTransformT = [2][Alpha]float32{
	{1, 1, 1, 0},
	{0, 1, -1, -1},
}

// TransformFilter converts a 3x3xCxK convolution filter (C input channels,
// K output channels, row-major 3x3 taps) into its Winograd U representation:
// 16 transform-domain coefficients per (input channel, output channel)
// pair, laid out as U[tile][c*outputs+k] so every tile's slice is a
// ready-made GEMM operand.
func TransformFilter(weights []float32, channels, outputs int) []float32 {
	u := make([]float32, Tile*channels*outputs)
	var g [Alpha][3]float32
	for k := 0; k < outputs; k++ {
		for c := 0; c < channels; c++ {
			base := (k*channels + c) * 9
			// g = G * filter (4x3 * 3x3 = 4x3)
			for i := 0; i < Alpha; i++ {
				for j := 0; j < 3; j++ {
					var sum float32
					for m := 0; m < 3; m++ {
						sum += filterTransform[i][m] * weights[base+m*3+j]
					}
					g[i][j] = sum
				}
			}
			// transformed = g * G^T (4x3 * 3x4 = 4x4)
			for i := 0; i < Alpha; i++ {
				for j := 0; j < Alpha; j++ {
					var sum float32
					for m := 0; m < 3; m++ {
						sum += g[i][m] * filterTransform[j][m]
					}
					u[(i*Alpha+j)*channels*outputs+c*outputs+k] = sum
				}
			}
		}
	}
	return u
}

// TransformInput converts a channels x 8 x 8 activation tensor into its
// Winograd V representation: 16 transform-domain coefficients per
// (tile-position, channel), laid out as V[tile][c*P+tileIndex] so each
// tile's slice is a ready-made GEMM operand. Tiles overlap their
// neighbours by two rows/columns and are zero-padded at the board edge,
// exactly as the reference input transform does.
func TransformInput(data []float32, channels int) []float32 {
	v := make([]float32, Tile*channels*P)
	var d [Alpha][Alpha]float32

	for c := 0; c < channels; c++ {
		plane := data[c*BoardSize*BoardSize : (c+1)*BoardSize*BoardSize]
		tileIdx := 0
		for blockY := 0; blockY < BoardSize/2; blockY++ {
			for blockX := 0; blockX < BoardSize/2; blockX++ {
				baseRow := blockY*2 - 1
				baseCol := blockX*2 - 1
				for i := 0; i < Alpha; i++ {
					row := baseRow + i
					for j := 0; j < Alpha; j++ {
						col := baseCol + j
						if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
							d[i][j] = 0
						} else {
							d[i][j] = plane[row*BoardSize+col]
						}
					}
				}

				var t [Alpha][Alpha]float32
				// t = B^T * d
				for i := 0; i < Alpha; i++ {
					for j := 0; j < Alpha; j++ {
						var sum float32
						for m := 0; m < Alpha; m++ {
							sum += inputTransformT[i][m] * d[m][j]
						}
						t[i][j] = sum
					}
				}
				// transformed = t * B (B = (B^T)^T)
				for i := 0; i < Alpha; i++ {
					for j := 0; j < Alpha; j++ {
						var sum float32
						for m := 0; m < Alpha; m++ {
							sum += t[i][m] * inputTransformT[j][m]
						}
						v[(i*Alpha+j)*channels*P+c*P+tileIdx] = sum
					}
				}
				tileIdx++
			}
		}
	}
	return v
}

// Sgemm multiplies, tile by tile, the filter representation U (channels x
// outputs per tile) by the input representation V (channels x P per
// tile), producing M (outputs x P per tile): one batched GEMM call per
// of the 16 transform-domain coordinates, matching winograd_sgemm's
// sixteen cblas_sgemm calls.
func Sgemm(u []float32, v []float32, channels, outputs int) []float32 {
	m := make([]float32, Tile*outputs*P)
	for t := 0; t < Tile; t++ {
		ut := u[t*channels*outputs : (t+1)*channels*outputs]
		vt := v[t*channels*P : (t+1)*channels*P]
		mt := m[t*outputs*P : (t+1)*outputs*P]
		// ut is channels x outputs row-major -> use transposed A to get
		// outputs x channels * channels x P = outputs x P.
		kernel.Gemm(true, false, outputs, P, channels, 1, ut, outputs, vt, P, 0, mt, P)
	}
	return m
}

// TransformOutput converts the Winograd M representation (outputs x P per
// tile, Tile tiles) back into an outputs x 8 x 8 spatial tensor, the
// inverse of TransformInput composed with the filter multiply.
func TransformOutput(m []float32, outputs int) []float32 {
	out := make([]float32, outputs*BoardSize*BoardSize)
	var mt [Alpha][Alpha]float32

	for k := 0; k < outputs; k++ {
		plane := out[k*BoardSize*BoardSize : (k+1)*BoardSize*BoardSize]
		tileIdx := 0
		for blockY := 0; blockY < BoardSize/2; blockY++ {
			for blockX := 0; blockX < BoardSize/2; blockX++ {
				for i := 0; i < Alpha; i++ {
					for j := 0; j < Alpha; j++ {
						mt[i][j] = m[(i*Alpha+j)*outputs*P+k*P+tileIdx]
					}
				}

				var s [2][Alpha]float32
				// s = A^T * m
				for i := 0; i < 2; i++ {
					for j := 0; j < Alpha; j++ {
						var sum float32
						for n := 0; n < Alpha; n++ {
							sum += outputTransformT[i][n] * mt[n][j]
						}
						s[i][j] = sum
					}
				}
				// o = s * A (A = (A^T)^T)
				var o [2][2]float32
				for i := 0; i < 2; i++ {
					for j := 0; j < 2; j++ {
						var sum float32
						for n := 0; n < Alpha; n++ {
							sum += s[i][n] * outputTransformT[j][n]
						}
						o[i][j] = sum
					}
				}

				row0 := blockY * 2
				col0 := blockX * 2
				plane[row0*BoardSize+col0] = o[0][0]
				plane[row0*BoardSize+col0+1] = o[0][1]
				plane[(row0+1)*BoardSize+col0] = o[1][0]
				plane[(row0+1)*BoardSize+col0+1] = o[1][1]
				tileIdx++
			}
		}
	}
	return out
}

// Convolve3x3 runs a full Winograd F(2x2,3x3) convolution: transform the
// input, multiply tile-by-tile against the pre-transformed filter U, and
// transform the result back to spatial layout. U must have been produced
// by TransformFilter for the same (channels, outputs) pair.
func Convolve3x3(data []float32, u []float32, channels, outputs int) []float32 {
	v := TransformInput(data, channels)
	m := Sgemm(u, v, channels, outputs)
	return TransformOutput(m, outputs)
}
