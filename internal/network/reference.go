package network

import (
	"math"

	"github.com/lczerogo/engine/internal/kernel"
)

// directConvolve3x3 computes a same-padded 3x3 convolution with a plain
// nested loop, without going through the Winograd transform pair. It
// exists purely as an independent cross-check path: ForwardReference
// runs the whole network through this instead of the Winograd engine so
// the accelerator self-check has two arithmetically unrelated
// implementations to compare, the same role the CPU fallback plays
// against an accelerated backend in this engine's ancestor.
func directConvolve3x3(data, weights []float32, channels, outputs int) []float32 {
	out := make([]float32, outputs*spatial)
	for k := 0; k < outputs; k++ {
		orow := out[k*spatial : (k+1)*spatial]
		for c := 0; c < channels; c++ {
			irow := data[c*spatial : (c+1)*spatial]
			wbase := (k*channels + c) * 9
			for y := 0; y < winogradBoardSize; y++ {
				for x := 0; x < winogradBoardSize; x++ {
					var sum float32
					for dy := -1; dy <= 1; dy++ {
						sy := y + dy
						if sy < 0 || sy >= winogradBoardSize {
							continue
						}
						for dx := -1; dx <= 1; dx++ {
							sx := x + dx
							if sx < 0 || sx >= winogradBoardSize {
								continue
							}
							sum += weights[wbase+(dy+1)*3+(dx+1)] * irow[sy*winogradBoardSize+sx]
						}
					}
					orow[y*winogradBoardSize+x] += sum
				}
			}
		}
	}
	return out
}

const winogradBoardSize = 8

// directConv1x1 is the reference path's independent implementation of a
// 1x1 convolution, deliberately not sharing code with kernel.Conv1x1 so
// the self-check has two unrelated implementations to compare for the
// heads too, not just the 3x3 tower.
func directConv1x1(data, weights []float32, channels, outputs int) []float32 {
	out := make([]float32, outputs*spatial)
	for k := 0; k < outputs; k++ {
		orow := out[k*spatial : (k+1)*spatial]
		wrow := weights[k*channels : (k+1)*channels]
		for c := 0; c < channels; c++ {
			w := wrow[c]
			if w == 0 {
				continue
			}
			irow := data[c*spatial : (c+1)*spatial]
			for s, v := range irow {
				orow[s] += w * v
			}
		}
	}
	return out
}

// ForwardReference runs the same network as Forward but through the
// plain direct-convolution path instead of Winograd, for use as the
// slow, independently-implemented verification pass the self-checking
// accelerator decorator occasionally compares against.
func (n *Network) ForwardReference(planes []float32, softmaxTemp float32) (policy []float32, value float32) {
	out := directConvolve3x3(planes, n.input.rawW, n.inputChannels, n.channels)
	kernel.BatchNormReLU(out, n.channels, spatial, n.input.means, n.input.stddivs, nil)

	for i := 0; i < n.residualBlocks; i++ {
		first := n.residual[2*i]
		second := n.residual[2*i+1]

		inter := directConvolve3x3(out, first.rawW, n.channels, n.channels)
		kernel.BatchNormReLU(inter, n.channels, spatial, first.means, first.stddivs, nil)

		next := directConvolve3x3(inter, second.rawW, n.channels, n.channels)
		kernel.BatchNormReLU(next, n.channels, spatial, second.means, second.stddivs, out)
		out = next
	}

	policy = n.forwardPolicyDirect(out, softmaxTemp)
	value = n.forwardValueDirect(out)
	return policy, value
}

func (n *Network) forwardPolicyDirect(tower []float32, temp float32) []float32 {
	pc := directConv1x1(tower, n.policyConv.weights, n.channels, n.policyConv.outputs)
	kernel.BatchNormReLU(pc, n.policyConv.outputs, spatial, n.policyConv.means, n.policyConv.stddivs, nil)
	logits := kernel.FullyConnected(pc, n.policyWeights, n.policyBiases, n.policyConv.outputs*spatial, n.policyOutputs)
	return softmax(logits, temp)
}

func (n *Network) forwardValueDirect(tower []float32) float32 {
	vc := directConv1x1(tower, n.valueConv.weights, n.channels, n.valueConv.outputs)
	kernel.BatchNormReLU(vc, n.valueConv.outputs, spatial, n.valueConv.means, n.valueConv.stddivs, nil)
	hidden := kernel.FullyConnected(vc, n.valueWeights1, n.valueBiases1, n.valueConv.outputs*spatial, n.valueHidden)
	for i, v := range hidden {
		if v < 0 {
			hidden[i] = 0
		}
	}
	out := kernel.FullyConnected(hidden, n.valueWeights2, n.valueBiases2, n.valueHidden, 1)
	return float32(math.Tanh(float64(out[0])))
}
