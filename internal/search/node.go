package search

import (
	"math"
	"sync/atomic"

	"github.com/lczerogo/engine/internal/board"
)

// nodeState is the CAS-driven expansion state of a Node, mirroring the
// single-flight expansion this engine's UCT tree relies on to let many
// worker goroutines descend the same tree without ever evaluating a
// position twice.
type nodeState int32

const (
	stateUnexpanded nodeState = iota
	stateExpanding
	stateExpanded
	stateTerminal
)

// Node is one vertex of the search tree: the move that reaches it from
// its parent, its prior probability, and the running visit/value
// statistics every worker updates concurrently. A Node's child slice is
// only ever written once, by whichever goroutine wins the CAS race to
// expand it, and is never mutated afterwards, so reading children
// requires no lock once state has moved past stateExpanding.
type Node struct {
	Move   board.Move
	Prior  float32
	Parent *Node

	children []*Node

	state         atomic.Int32
	visits        atomic.Int32
	virtualLoss   atomic.Int32
	valueSumBits  atomic.Uint64 // float64 bit pattern, CAS-accumulated
	terminalValue float32
}

// NewNode creates a fresh, unexpanded node for the given move and prior.
func NewNode(move board.Move, prior float32) *Node {
	n := &Node{Move: move, Prior: prior}
	n.state.Store(int32(stateUnexpanded))
	return n
}

// State returns the node's current expansion state.
func (n *Node) State() nodeState { return nodeState(n.state.Load()) }

// TryExpand attempts to claim this node for expansion, transitioning it
// from stateUnexpanded to stateExpanding. Exactly one caller across all
// concurrently running workers ever observes a true return for a given
// node; everyone else must either wait for it to finish or move on.
func (n *Node) TryExpand() bool {
	return n.state.CompareAndSwap(int32(stateUnexpanded), int32(stateExpanding))
}

// Expand installs the node's children and publishes it as expanded. The
// release-ordering guarantee callers depend on (every other goroutine
// that later observes stateExpanded also observes the fully-populated
// children slice) comes from the fact that children is only ever
// written here, before the atomic Store that exposes stateExpanded,
// and atomic stores provide the necessary memory barrier.
func (n *Node) Expand(children []*Node) {
	n.children = children
	n.state.Store(int32(stateExpanded))
}

// MarkTerminal records a position-is-over value (win/loss/draw, from the
// side-to-move's perspective at this node) and publishes the node as
// terminal; terminal nodes are never evaluated by the network and never
// gain children.
func (n *Node) MarkTerminal(value float32) {
	n.terminalValue = value
	n.state.Store(int32(stateTerminal))
}

// TerminalValue returns the value recorded by MarkTerminal. Only valid
// once State() reports stateTerminal.
func (n *Node) TerminalValue() float32 { return n.terminalValue }

// Children returns the node's children. Only valid once State() reports
// stateExpanded or stateTerminal (terminal nodes simply have none).
func (n *Node) Children() []*Node { return n.children }

// AddVirtualLoss inflates this node's apparent visit count by amount
// without touching its value sum, so concurrently running workers are
// discouraged from piling onto the same line while a playout that
// already committed to it is still in flight.
func (n *Node) AddVirtualLoss(amount int32) { n.virtualLoss.Add(amount) }

// RemoveVirtualLoss reverses a prior AddVirtualLoss once the playout
// that added it has backed up its result.
func (n *Node) RemoveVirtualLoss(amount int32) { n.virtualLoss.Add(-amount) }

// Visits returns the number of completed backups at this node.
func (n *Node) Visits() int32 { return n.visits.Load() }

// Update records one playout's backed-up value at this node: increments
// the visit count and folds value into the running sum with a
// compare-and-swap retry loop, since float64 has no native atomic add.
func (n *Node) Update(value float32) {
	n.visits.Add(1)
	for {
		old := n.valueSumBits.Load()
		sum := math.Float64frombits(old)
		next := math.Float64bits(sum + float64(value))
		if n.valueSumBits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Q returns the node's mean backed-up value, or 0 if it has never been
// visited and carries no virtual loss (a first-play-urgency of zero,
// the simplest choice and the one spec.md leaves unresolved). Virtual
// loss inflates this denominator exactly as it inflates puctScore's
// exploration term, discouraging other workers from piling onto a node
// a playout has already committed to without touching the value sum
// itself.
func (n *Node) Q() float32 {
	visits := n.visits.Load()
	vloss := n.virtualLoss.Load()
	denom := visits + vloss
	if denom == 0 {
		return 0
	}
	sum := math.Float64frombits(n.valueSumBits.Load())
	return float32(sum / float64(denom))
}

// puctScore computes the PUCT selection value for this node given its
// parent's total visit count: Q + c_puct * prior * sqrt(parentVisits) /
// (1 + visits + virtualLoss). Virtual loss inflates both the Q and the
// exploration term's denominator; it never pollutes the value sum Q is
// computed from.
func (n *Node) puctScore(cPuct float32, parentVisits int32) float32 {
	visits := n.visits.Load()
	vloss := n.virtualLoss.Load()
	exploration := cPuct * n.Prior * float32(math.Sqrt(float64(parentVisits))) / float32(1+visits+vloss)
	return n.Q() + exploration
}

// SelectChild returns the child with the highest PUCT score, using this
// node's own visit count as the parent-visit term.
func (n *Node) SelectChild(cPuct float32) *Node {
	if len(n.children) == 0 {
		return nil
	}
	parentVisits := n.visits.Load()
	best := n.children[0]
	bestScore := best.puctScore(cPuct, parentVisits)
	for _, c := range n.children[1:] {
		score := c.puctScore(cPuct, parentVisits)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}
