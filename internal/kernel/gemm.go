// Package kernel implements the dense numeric primitives the network
// forward pass is built from: a batched GEMM, the fused batch-norm+ReLU
// activation, and a plain fully-connected layer. Everything here operates
// on row-major float32 slices; there is no cgo or vendor BLAS binding in
// this tree, so Gemm is a from-scratch triple loop with a SIMD-dispatch
// seam (dot_generic.go / dot_arm64.go) left for a faster inner loop later.
package kernel

// Gemm computes C = alpha*op(A)*op(B) + beta*C where op(X) is X or Xt
// depending on transA/transB. A is m x k (or k x m if transA), B is k x n
// (or n x k if transB), C is m x n. All matrices are row-major with the
// given leading dimensions. This mirrors the calling convention of the
// single-precision BLAS gemm routine the Winograd engine dispatches
// sixteen times per 3x3 convolution, one call per transform-domain coordinate.
func Gemm(transA, transB bool, m, n, k int, alpha float32, a []float32, lda int, b []float32, ldb int, beta float32, c []float32, ldc int) {
	if beta != 1 {
		for i := 0; i < m; i++ {
			row := c[i*ldc : i*ldc+n]
			for j := range row {
				row[j] *= beta
			}
		}
	}

	switch {
	case !transA && !transB:
		colB := make([]float32, k)
		for j := 0; j < n; j++ {
			for p := 0; p < k; p++ {
				colB[p] = b[p*ldb+j]
			}
			for i := 0; i < m; i++ {
				c[i*ldc+j] += alpha * dot(a[i*lda:i*lda+k], colB)
			}
		}
	case transA && !transB:
		colB := make([]float32, k)
		for j := 0; j < n; j++ {
			for p := 0; p < k; p++ {
				colB[p] = b[p*ldb+j]
			}
			colA := make([]float32, k)
			for i := 0; i < m; i++ {
				for p := 0; p < k; p++ {
					colA[p] = a[p*lda+i]
				}
				c[i*ldc+j] += alpha * dot(colA, colB)
			}
		}
	case !transA && transB:
		for i := 0; i < m; i++ {
			arow := a[i*lda : i*lda+k]
			for j := 0; j < n; j++ {
				c[i*ldc+j] += alpha * dot(arow, b[j*ldb:j*ldb+k])
			}
		}
	default: // transA && transB
		colA := make([]float32, k)
		for i := 0; i < m; i++ {
			for p := 0; p < k; p++ {
				colA[p] = a[p*lda+i]
			}
			for j := 0; j < n; j++ {
				c[i*ldc+j] += alpha * dot(colA, b[j*ldb:j*ldb+k])
			}
		}
	}
}
