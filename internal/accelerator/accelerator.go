// Package accelerator defines the pluggable evaluator interface the
// search driver calls into, and a self-checking decorator that
// occasionally re-runs an evaluation through an independent reference
// implementation and compares the two, exactly as compare_net_outputs
// does in this engine's ancestor: tolerate a few divergences, go fatal
// if they happen too often.
package accelerator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// EvalError reports a failure inside an Evaluator, including enough
// context to explain whether it came from the network itself or from
// the self-check decorator losing confidence in its results.
type EvalError struct {
	Op      string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("accelerator: %s: %s", e.Op, e.Message)
}

// Evaluator is the plug-in interface the search driver evaluates leaf
// positions through. Implementations must be safe for concurrent use by
// multiple search workers.
type Evaluator interface {
	// Evaluate returns a policy distribution over the engine's fixed
	// move-index space and a value in [-1, 1] from the side-to-move's
	// perspective, for the given input planes (inputChannels x 8 x 8).
	Evaluate(planes []float32) (policy []float32, value float32, err error)
}

// EvalFunc adapts a plain function to the Evaluator interface, the way a
// network's Forward method is adapted into one by NetEvaluator.
type EvalFunc func(planes []float32) (policy []float32, value float32, err error)

// Evaluate implements Evaluator.
func (f EvalFunc) Evaluate(planes []float32) ([]float32, float32, error) { return f(planes) }

// Self-check tuning constants, carried over unchanged from
// compare_net_outputs: a correct accelerator should pass thousands of
// expansions between checks, so the credit counter only needs to react
// to a sustained run of mismatches, not an isolated floating-point
// wobble.
const (
	// SelfCheckMinExpansions is the expansion count that
	// minCorrectExpansions divides by SelfCheckProbability and by 2 to get
	// the credit one mismatch costs.
	SelfCheckMinExpansions = 2_000_000
	// SelfCheckProbability is 1-in-N odds that any given evaluation
	// triggers a cross-check against the reference path.
	SelfCheckProbability = 2000
	// relativeError is the maximum tolerated relative difference
	// between a fast and reference evaluation before it counts as a
	// mismatch.
	relativeError = 0.1
	// smallNumber bounds values near zero away from a meaningless
	// relative-error blowup.
	smallNumber = 1e-3
)

func minCorrectExpansions() int64 {
	return SelfCheckMinExpansions / SelfCheckProbability / 2
}

// SelfChecking wraps a fast Evaluator and a reference Evaluator,
// occasionally running both and comparing their output. It maintains a
// credit counter exactly like compare_net_outputs: every check that
// passes not already at the cap earns a credit, every mismatch spends
// minCorrectExpansions worth of credit, and running out of credit is
// fatal (returned as an error, since this is a library and cannot
// abort the process on its caller's behalf).
type SelfChecking struct {
	fast      Evaluator
	reference Evaluator
	rng       *rand.Rand

	mu     sync.Mutex // guards rng and credit
	credit int64      // starts at minCorrectExpansions, capped at 3x
}

// NewSelfChecking builds a self-checking evaluator. seed controls which
// evaluations get cross-checked; pass a fixed seed for reproducible
// tests and time-derived entropy in production.
func NewSelfChecking(fast, reference Evaluator, seed int64) *SelfChecking {
	return &SelfChecking{
		fast:      fast,
		reference: reference,
		rng:       rand.New(rand.NewSource(seed)),
		credit:    minCorrectExpansions(),
	}
}

// Evaluate implements Evaluator. Most calls go straight to the fast
// path; with probability 1/SelfCheckProbability it additionally runs the
// reference path and compares.
func (s *SelfChecking) Evaluate(planes []float32) ([]float32, float32, error) {
	policy, value, err := s.fast.Evaluate(planes)
	if err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	check := s.rng.Intn(SelfCheckProbability) == 0
	s.mu.Unlock()
	if !check {
		return policy, value, nil
	}

	refPolicy, refValue, err := s.reference.Evaluate(planes)
	if err != nil {
		return nil, 0, &EvalError{Op: "self-check", Message: fmt.Sprintf("reference evaluator failed: %v", err)}
	}

	ok := matches(policy, refPolicy, value, refValue)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.credit -= minCorrectExpansions()
		if s.credit < 0 {
			return nil, 0, &EvalError{Op: "self-check", Message: "accelerator failed self-check too many times, refusing to continue"}
		}
		// tolerate this mismatch but keep the fast result; the
		// degraded credit means future mismatches are less forgiven
		return policy, value, nil
	}

	ceiling := 3 * minCorrectExpansions()
	if s.credit < ceiling {
		s.credit++
	}
	return policy, value, nil
}

func matches(policy, refPolicy []float32, value, refValue float32) bool {
	if len(policy) != len(refPolicy) {
		return false
	}
	if !relativelyClose(value, refValue) {
		return false
	}
	for i := range policy {
		if !relativelyClose(policy[i], refPolicy[i]) {
			return false
		}
	}
	return true
}

func relativelyClose(a, b float32) bool {
	if (a < 0) != (b < 0) {
		return math.Abs(float64(a-b)) < smallNumber
	}
	diff := math.Abs(float64(a - b))
	denom := math.Max(math.Abs(float64(a)), smallNumber)
	return diff/denom < relativeError
}
