package network

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/lczerogo/engine/internal/weightfile"
)

func buildLine(rng *rand.Rand, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strconv.FormatFloat(float64(rng.Float32()*2-1), 'f', 6, 32)
	}
	return strings.Join(parts, " ")
}

// syntheticWeights writes a tiny but structurally complete weight file
// with one residual block, small enough that a forward pass in a test
// runs instantly.
func syntheticWeights(t *testing.T) *weightfile.Weights {
	t.Helper()
	rng := rand.New(rand.NewSource(11))

	const (
		inputChannels     = 4
		channels          = 3
		policyConvOutputs = 2
		policyOutputs     = 5
		valueConvOutputs  = 1
		valueHidden       = 4
	)

	var lines []string
	lines = append(lines, "1")

	lines = append(lines, buildLine(rng, 9*inputChannels*channels))
	lines = append(lines, buildLine(rng, channels))
	lines = append(lines, buildLine(rng, channels))
	lines = append(lines, buildLine(rng, channels))

	for i := 0; i < 2; i++ { // one residual block = two convs
		lines = append(lines, buildLine(rng, 9*channels*channels))
		lines = append(lines, buildLine(rng, channels))
		lines = append(lines, buildLine(rng, channels))
		lines = append(lines, buildLine(rng, channels))
	}

	lines = append(lines, buildLine(rng, channels*policyConvOutputs))
	lines = append(lines, buildLine(rng, policyConvOutputs))
	lines = append(lines, buildLine(rng, policyConvOutputs))
	lines = append(lines, buildLine(rng, policyConvOutputs))
	lines = append(lines, buildLine(rng, policyOutputs*policyConvOutputs*64))
	lines = append(lines, buildLine(rng, policyOutputs))

	lines = append(lines, buildLine(rng, channels*valueConvOutputs))
	lines = append(lines, buildLine(rng, valueConvOutputs))
	lines = append(lines, buildLine(rng, valueConvOutputs))
	lines = append(lines, buildLine(rng, valueConvOutputs))
	lines = append(lines, buildLine(rng, valueHidden*valueConvOutputs*64))
	lines = append(lines, buildLine(rng, valueHidden))
	lines = append(lines, buildLine(rng, 1*valueHidden))
	lines = append(lines, buildLine(rng, 1))

	path := filepath.Join(t.TempDir(), "net.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write synthetic network: %v", err)
	}

	w, err := weightfile.Load(path)
	if err != nil {
		t.Fatalf("weightfile.Load() error = %v", err)
	}
	return w
}

func TestNewAndForwardShapes(t *testing.T) {
	w := syntheticWeights(t)
	n, err := New(w)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	planes := make([]float32, n.InputChannels()*8*8)
	policy, value := n.Forward(planes, 1.0)

	if len(policy) != n.PolicyOutputs() {
		t.Fatalf("Forward() policy len = %d, want %d", len(policy), n.PolicyOutputs())
	}

	var sum float32
	for _, p := range policy {
		if p < 0 {
			t.Fatalf("Forward() produced a negative policy probability %v", p)
		}
		sum += p
	}
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("Forward() policy sums to %v, want ~1.0", sum)
	}

	if value < -1.0001 || value > 1.0001 {
		t.Fatalf("Forward() value = %v, want in [-1, 1]", value)
	}
}

func TestForwardReferenceAgreesWithForward(t *testing.T) {
	w := syntheticWeights(t)
	n, err := New(w)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rng := rand.New(rand.NewSource(99))
	planes := make([]float32, n.InputChannels()*8*8)
	for i := range planes {
		planes[i] = rng.Float32()*2 - 1
	}

	fastPolicy, fastValue := n.Forward(planes, 1.0)
	refPolicy, refValue := n.ForwardReference(planes, 1.0)

	if len(fastPolicy) != len(refPolicy) {
		t.Fatalf("policy length mismatch: fast=%d ref=%d", len(fastPolicy), len(refPolicy))
	}
	for i := range fastPolicy {
		if diff := abs32(fastPolicy[i] - refPolicy[i]); diff > 1e-2 {
			t.Errorf("policy[%d]: fast=%v ref=%v diff=%v", i, fastPolicy[i], refPolicy[i], diff)
		}
	}
	if diff := abs32(fastValue - refValue); diff > 1e-2 {
		t.Errorf("value: fast=%v ref=%v diff=%v", fastValue, refValue, diff)
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
