// Package weightfile loads the text (optionally gzip-compressed) network
// weight file format: one format-version line, followed by four lines per
// convolution layer (flattened weights, biases, batch-norm means, batch-norm
// reciprocal-stddev) and finally fourteen lines for the policy and value
// heads. The structural checks and the two-pass parse (count lines, then
// parse) mirror load_network in this engine's lc0-lineage ancestor; the
// line-counting constants (4 lines per conv layer, 14 head lines) come
// straight from that format.
package weightfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// LoadError describes why a weight file failed to parse, carrying enough
// context (file, line, what was expected/found) to print a useful
// diagnostic without the caller re-deriving it from a bare error string.
type LoadError struct {
	File    string
	Line    int
	Message string
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("weightfile: %s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("weightfile: %s: %s", e.File, e.Message)
}

// FormatVersion discriminates the V1 (no SE layers) and V2 (squeeze-excite
// capable) weight layouts this loader recognizes.
type FormatVersion int

const (
	V1 FormatVersion = 1
	V2 FormatVersion = 2
)

// headLines is the number of text lines occupied by the policy and value
// heads: 6 for policy (conv weights, conv biases, bn means, bn stddivs, fc
// weights, fc biases) and 8 for value (conv weights, conv biases, bn
// means, bn stddivs, fc1 weights, fc1 biases, fc2 weights, fc2 biases).
const headLines = 6 + 8

// linesPerConv is the number of text lines each convolution layer (input
// conv, and both convs of every residual block) occupies: weights,
// biases, batch-norm means, batch-norm reciprocal-stddev.
const linesPerConv = 4

// ConvLayer holds one convolution's raw, as-loaded parameters: flattened
// weights, per-output-channel biases, and the batch-norm means and
// reciprocal-stddevs the forward pass folds the bias into at load time.
// Weights has length 9*inputChannels*outputChannels for the input
// convolution and every residual-block convolution (3x3 taps), but only
// inputChannels*outputChannels for the policy/value head convolutions,
// which are 1x1 (filter_size=1, no spatial taps at all).
type ConvLayer struct {
	Weights []float32
	Biases  []float32 // len = outputChannels, folded into Means after loading
	Means   []float32 // len = outputChannels
	Stddivs []float32 // len = outputChannels, already 1/sqrt(var+eps)
}

// Weights is the raw, parsed contents of a weight file before the
// network package applies the Winograd filter transform and bias-folding
// that turn it into a ready-to-evaluate Network.
type Weights struct {
	Version        FormatVersion
	InputChannels  int // planes fed to the input convolution
	Channels       int // channel width of the residual tower
	ResidualBlocks int

	InputConv ConvLayer
	Residual  []ConvLayer // 2 entries per residual block, block i -> Residual[2*i], Residual[2*i+1]

	PolicyConv    ConvLayer
	PolicyWeights []float32 // fully-connected: policyOutputs x (policyConvOutputs*64)
	PolicyBiases  []float32

	ValueConv     ConvLayer
	ValueWeights1 []float32 // fc1: valueHidden x (valueConvOutputs*64)
	ValueBiases1  []float32
	ValueWeights2 []float32 // fc2: 1 x valueHidden
	ValueBiases2  []float32

	PolicyOutputs    int
	ValueHiddenWidth int
}

// Load reads a weight file from disk, transparently gunzipping it if it
// starts with the gzip magic bytes, and parses it into a Weights value.
func Load(path string) (*Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic, err := r.Peek(2)
	if err != nil && err != io.EOF {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	var reader io.Reader = r
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, &LoadError{File: path, Message: fmt.Sprintf("gzip: %v", err)}
		}
		defer gz.Close()
		reader = gz
	}

	return parse(path, reader)
}

// parse runs the two-pass load: first it reads every line into memory and
// validates the overall line count implies a whole number of residual
// blocks, then it walks the lines again assigning them to layers.
func parse(path string, r io.Reader) (*Weights, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	if len(lines) < 1+linesPerConv+headLines {
		return nil, &LoadError{File: path, Message: "file too short to contain a valid network"}
	}

	versionNum, err := strconv.Atoi(lines[0])
	if err != nil {
		return nil, &LoadError{File: path, Line: 1, Message: "format version line is not an integer"}
	}
	version := FormatVersion(versionNum)
	if version != V1 && version != V2 {
		return nil, &LoadError{File: path, Line: 1, Message: fmt.Sprintf("unsupported format version %d", versionNum)}
	}

	// Pass 1: total convolution-layer count, derived from the structural
	// constraint that everything between the header and the final 14
	// head lines belongs to conv layers, 4 lines each.
	remaining := len(lines) - 1 - headLines
	if remaining%linesPerConv != 0 {
		return nil, &LoadError{File: path, Message: "malformed network: conv-layer line count is not a multiple of 4"}
	}
	convLayers := remaining / linesPerConv
	if convLayers < 1 || (convLayers-1)%2 != 0 {
		return nil, &LoadError{File: path, Message: "malformed network: residual tower has an odd number of convolutions"}
	}
	residualBlocks := (convLayers - 1) / 2

	w := &Weights{Version: version, ResidualBlocks: residualBlocks}
	idx := 1

	readFloats := func(lineNo int) ([]float32, error) {
		fields := strings.Fields(lines[lineNo])
		out := make([]float32, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, &LoadError{File: path, Line: lineNo + 1, Message: fmt.Sprintf("invalid float %q", f)}
			}
			out[i] = float32(v)
		}
		return out, nil
	}

	readConv := func() (ConvLayer, error) {
		var c ConvLayer
		var err error
		if c.Weights, err = readFloats(idx); err != nil {
			return c, err
		}
		idx++
		if c.Biases, err = readFloats(idx); err != nil {
			return c, err
		}
		idx++
		if c.Means, err = readFloats(idx); err != nil {
			return c, err
		}
		idx++
		if c.Stddivs, err = readFloats(idx); err != nil {
			return c, err
		}
		idx++
		return c, nil
	}

	if w.InputConv, err = readConv(); err != nil {
		return nil, err
	}
	w.Channels = len(w.InputConv.Biases)
	if w.Channels == 0 || len(w.InputConv.Weights)%(9*w.Channels) != 0 {
		return nil, &LoadError{File: path, Message: "malformed network: cannot infer input channel count"}
	}
	w.InputChannels = len(w.InputConv.Weights) / (9 * w.Channels)

	w.Residual = make([]ConvLayer, 2*residualBlocks)
	for i := range w.Residual {
		if w.Residual[i], err = readConv(); err != nil {
			return nil, err
		}
		if len(w.Residual[i].Biases) != w.Channels {
			return nil, &LoadError{File: path, Line: idx, Message: "residual conv channel width does not match tower width"}
		}
	}

	if w.PolicyConv, err = readConv(); err != nil {
		return nil, err
	}
	if w.PolicyWeights, err = readFloats(idx); err != nil {
		return nil, err
	}
	idx++
	if w.PolicyBiases, err = readFloats(idx); err != nil {
		return nil, err
	}
	idx++
	w.PolicyOutputs = len(w.PolicyBiases)

	if w.ValueConv, err = readConv(); err != nil {
		return nil, err
	}
	if w.ValueWeights1, err = readFloats(idx); err != nil {
		return nil, err
	}
	idx++
	if w.ValueBiases1, err = readFloats(idx); err != nil {
		return nil, err
	}
	idx++
	w.ValueHiddenWidth = len(w.ValueBiases1)
	if w.ValueWeights2, err = readFloats(idx); err != nil {
		return nil, err
	}
	idx++
	if w.ValueBiases2, err = readFloats(idx); err != nil {
		return nil, err
	}
	idx++

	if len(w.ValueBiases2) != 1 {
		return nil, &LoadError{File: path, Message: "malformed network: value head must produce a single scalar"}
	}
	if len(w.PolicyConv.Biases) == 0 || len(w.ValueConv.Biases) == 0 {
		return nil, &LoadError{File: path, Message: "malformed weights: empty policy or value convolution"}
	}

	return w, nil
}
