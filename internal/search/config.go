package search

// Config carries every search tuning knob spec.md's external-interfaces
// section names, populated by the UCI front end's setoption handler the
// same way the teacher's UCILimits/TimeManager configuration used to be.
type Config struct {
	// PlayoutLimit stops the search once this many playouts have
	// completed. Zero means no playout limit.
	PlayoutLimit int
	// TimeLimitMS stops the search once this many milliseconds have
	// elapsed. Zero means no time limit.
	TimeLimitMS int
	// NumThreads is the number of worker goroutines descending the tree
	// concurrently.
	NumThreads int
	// CPuct is the exploration constant in the PUCT formula.
	CPuct float32
	// SoftmaxTemperature scales the policy head's softmax; 1.0
	// reproduces the network's raw distribution.
	SoftmaxTemperature float32
	// VirtualLoss is the visit-count inflation applied to a node while
	// a playout that has committed to it is still in flight.
	VirtualLoss int32
	// MaxTreeNodes caps total node allocation; the search stops growing
	// the tree (but may keep running existing playouts) past this
	// count, mirroring UCTSearch::MAX_TREE_SIZE.
	MaxTreeNodes int64
	// Quiet suppresses periodic progress output.
	Quiet bool
	// Analyze disables TimeLimitMS so the search keeps running until Stop
	// is called, for "go infinite"-style analysis; PlayoutLimit and
	// MaxTreeNodes still end it.
	Analyze bool
}

// DefaultConfig returns the engine's out-of-the-box tuning: c_puct 1.0
// exactly as specified, a virtual loss of 3 per in-flight playout, and
// a 40 million node ceiling.
func DefaultConfig() Config {
	return Config{
		NumThreads:         4,
		CPuct:              1.0,
		SoftmaxTemperature: 1.0,
		VirtualLoss:        3,
		MaxTreeNodes:       40_000_000,
	}
}
