// Package network implements the forward-only residual CNN evaluator:
// an input convolution, a tower of residual blocks, and a policy/value
// head pair. Every 3x3 convolution in the tower runs through the
// Winograd engine; the 1x1 head convolutions (filter_size=1, exactly
// like convolve<1> in this engine's lc0-lineage ancestor) run through a
// plain GEMM, and the two fully-connected layers run through the
// fully-connected kernel. This is a direct translation of forward_cpu
// and its helpers (convolve, convolve<1>, innerproduct, batchnorm) in
// that ancestor.
package network

import (
	"fmt"
	"math"

	"github.com/lczerogo/engine/internal/kernel"
	"github.com/lczerogo/engine/internal/weightfile"
	"github.com/lczerogo/engine/internal/winograd"
)

// DefaultEpsilon is the batch-norm epsilon for converting a variance into
// a reciprocal stddev with kernel.StddivFromVariance. New does not apply
// it: each layer's Stddivs from the weight file are used as given, with no
// variance conversion. spec.md leaves this as an open
// design question; 1e-5 is the value this engine's ancestor hard-codes.
const DefaultEpsilon = 1e-5

type convBlock struct {
	u        []float32 // Winograd-transformed filter, Tile*channels*outputs
	rawW     []float32 // untransformed weights, kept for the reference path
	means    []float32
	stddivs  []float32
	channels int
	outputs  int
}

// headConv is a 1x1 convolution layer, as used by the policy and value
// heads: a plain per-pixel matrix multiply with no spatial taps at all,
// so unlike convBlock it carries no Winograd-transformed filter.
type headConv struct {
	weights  []float32 // outputs x channels, row-major
	means    []float32
	stddivs  []float32
	channels int
	outputs  int
}

func newHeadConv(w weightfile.ConvLayer, channels, outputs int) headConv {
	return headConv{
		weights:  w.Weights,
		means:    foldBias(w.Means, w.Biases),
		stddivs:  w.Stddivs,
		channels: channels,
		outputs:  outputs,
	}
}

// Network is a loaded, ready-to-evaluate residual CNN. It is immutable
// after construction, so a single *Network is safe to share across
// concurrently running search workers.
type Network struct {
	channels       int
	inputChannels  int
	residualBlocks int

	input    convBlock
	residual []convBlock // 2 per block

	policyConv    headConv
	policyWeights []float32
	policyBiases  []float32
	policyOutputs int

	valueConv     headConv
	valueWeights1 []float32
	valueBiases1  []float32
	valueHidden   int
	valueWeights2 []float32
	valueBiases2  []float32
}

func foldBias(means, biases []float32) []float32 {
	out := make([]float32, len(means))
	for i := range means {
		out[i] = means[i] - biases[i]
	}
	return out
}

func newConvBlock(w weightfile.ConvLayer, channels, outputs int) convBlock {
	return convBlock{
		u:        winograd.TransformFilter(w.Weights, channels, outputs),
		rawW:     w.Weights,
		means:    foldBias(w.Means, w.Biases),
		stddivs:  w.Stddivs,
		channels: channels,
		outputs:  outputs,
	}
}

// New builds a Network from parsed weight-file contents, applying the
// Winograd filter transform to every 3x3 convolution and folding each
// layer's bias into its batch-norm mean, exactly as this engine's
// ancestor's initialize() step does.
func New(w *weightfile.Weights) (*Network, error) {
	if len(w.PolicyConv.Means) != len(w.PolicyConv.Biases) || len(w.ValueConv.Means) != len(w.ValueConv.Biases) {
		return nil, fmt.Errorf("network: malformed weights: mismatched head batch-norm widths")
	}

	n := &Network{
		channels:       w.Channels,
		inputChannels:  w.InputChannels,
		residualBlocks: w.ResidualBlocks,
		policyOutputs:  w.PolicyOutputs,
		policyWeights:  w.PolicyWeights,
		policyBiases:   w.PolicyBiases,
		valueWeights1:  w.ValueWeights1,
		valueBiases1:   w.ValueBiases1,
		valueHidden:    w.ValueHiddenWidth,
		valueWeights2:  w.ValueWeights2,
		valueBiases2:   w.ValueBiases2,
	}

	n.input = newConvBlock(w.InputConv, w.InputChannels, w.Channels)

	n.residual = make([]convBlock, len(w.Residual))
	for i, rc := range w.Residual {
		n.residual[i] = newConvBlock(rc, w.Channels, w.Channels)
	}

	policyConvOutputs := len(w.PolicyConv.Biases)
	if len(w.PolicyConv.Weights) != w.Channels*policyConvOutputs {
		return nil, fmt.Errorf("network: malformed weights: policy head conv (1x1) expects %d weights, have %d",
			w.Channels*policyConvOutputs, len(w.PolicyConv.Weights))
	}
	n.policyConv = newHeadConv(w.PolicyConv, w.Channels, policyConvOutputs)

	valueConvOutputs := len(w.ValueConv.Biases)
	if len(w.ValueConv.Weights) != w.Channels*valueConvOutputs {
		return nil, fmt.Errorf("network: malformed weights: value head conv (1x1) expects %d weights, have %d",
			w.Channels*valueConvOutputs, len(w.ValueConv.Weights))
	}
	n.valueConv = newHeadConv(w.ValueConv, w.Channels, valueConvOutputs)

	wantPolicy := policyConvOutputs * winograd.BoardSize * winograd.BoardSize
	if len(w.PolicyWeights) != w.PolicyOutputs*wantPolicy {
		return nil, fmt.Errorf("network: malformed weights: policy fc expects %d inputs per output, have %d total weights for %d outputs",
			wantPolicy, len(w.PolicyWeights), w.PolicyOutputs)
	}
	wantValue := valueConvOutputs * winograd.BoardSize * winograd.BoardSize
	if len(w.ValueWeights1) != w.ValueHiddenWidth*wantValue {
		return nil, fmt.Errorf("network: malformed weights: value fc1 expects %d inputs per output, have %d total weights for %d outputs",
			wantValue, len(w.ValueWeights1), w.ValueHiddenWidth)
	}

	return n, nil
}

// Channels returns the residual tower's channel width.
func (n *Network) Channels() int { return n.channels }

// InputChannels returns the number of input planes the network expects.
func (n *Network) InputChannels() int { return n.inputChannels }

// ResidualBlocks returns the number of residual blocks in the tower.
func (n *Network) ResidualBlocks() int { return n.residualBlocks }

// PolicyOutputs returns the width of the policy output vector.
func (n *Network) PolicyOutputs() int { return n.policyOutputs }

const spatial = winograd.BoardSize * winograd.BoardSize

// Forward runs the full network on a single position's input planes
// (inputChannels x 8 x 8, row-major per channel) and returns a softmaxed
// policy distribution and a tanh-squashed value in [-1, 1] from the
// side-to-move's perspective, following get_scored_moves's softmax
// temperature and forward_cpu's head layout.
func (n *Network) Forward(planes []float32, softmaxTemp float32) (policy []float32, value float32) {
	out := winograd.Convolve3x3(planes, n.input.u, n.inputChannels, n.channels)
	kernel.BatchNormReLU(out, n.channels, spatial, n.input.means, n.input.stddivs, nil)

	for i := 0; i < n.residualBlocks; i++ {
		first := n.residual[2*i]
		second := n.residual[2*i+1]

		inter := winograd.Convolve3x3(out, first.u, n.channels, n.channels)
		kernel.BatchNormReLU(inter, n.channels, spatial, first.means, first.stddivs, nil)

		next := winograd.Convolve3x3(inter, second.u, n.channels, n.channels)
		kernel.BatchNormReLU(next, n.channels, spatial, second.means, second.stddivs, out)
		out = next
	}

	policy = n.forwardPolicy(out, softmaxTemp)
	value = n.forwardValue(out)
	return policy, value
}

func (n *Network) forwardPolicy(tower []float32, temp float32) []float32 {
	pc := kernel.Conv1x1(tower, n.policyConv.weights, n.channels, n.policyConv.outputs, spatial)
	kernel.BatchNormReLU(pc, n.policyConv.outputs, spatial, n.policyConv.means, n.policyConv.stddivs, nil)
	logits := kernel.FullyConnected(pc, n.policyWeights, n.policyBiases, n.policyConv.outputs*spatial, n.policyOutputs)
	return softmax(logits, temp)
}

func (n *Network) forwardValue(tower []float32) float32 {
	vc := kernel.Conv1x1(tower, n.valueConv.weights, n.channels, n.valueConv.outputs, spatial)
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

func softmax(logits []float32, temp float32) []float32 {
	out := make([]float32, len(logits))
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i, v := range logits {
		e := float32(math.Exp(float64((v - max) / temp)))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
