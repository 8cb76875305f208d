// Package search implements the concurrent UCT/PUCT tree search driver:
// a worker pool descends a shared tree using virtual loss and
// single-flight node expansion, evaluating leaves through a pluggable
// accelerator.Evaluator, until a playout or time budget is exhausted.
// The overall shape — a driver that owns the tree and playout/node
// counters, and a pool of workers each with their own board copy
// looping until told to stop — is a direct translation of UCTSearch and
// UCTWorker in this engine's ancestor.
package search

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lczerogo/engine/internal/accelerator"
	"github.com/lczerogo/engine/internal/board"
	"github.com/lczerogo/engine/internal/planes"
)

// ErrBudgetExhausted is returned by Think when the search stopped because
// its playout or node budget ran out before producing any completed
// playout at all (e.g. a budget of zero).
var ErrBudgetExhausted = errors.New("search: budget exhausted with no completed playouts")

// ErrCancelled is returned by Think when the supplied context was
// cancelled before the search could produce a result.
var ErrCancelled = errors.New("search: cancelled")

// Stats is a read-only snapshot of search progress, safe to take while
// workers are still running.
type Stats struct {
	Playouts  int32
	Nodes     int64
	Elapsed   time.Duration
	RootValue float32
	RootMove  board.Move
}

// Driver owns a search tree and the worker pool that grows it. A single
// Driver instance is reused across successive Think calls the way a
// single UCTSearch instance is reused across a UCI session.
type Driver struct {
	evaluator accelerator.Evaluator
	cfg       Config

	root      *Node
	nodeCount atomic.Int64
	playouts  atomic.Int32
	running   atomic.Bool
	startedAt time.Time
}

// NewDriver builds a Driver evaluating leaves through ev, with the given
// search configuration.
func NewDriver(ev accelerator.Evaluator, cfg Config) *Driver {
	return &Driver{evaluator: ev, cfg: cfg}
}

// SetConfig replaces the driver's tuning parameters; it must not be
// called while a Think is in flight.
func (d *Driver) SetConfig(cfg Config) { d.cfg = cfg }

// Think runs the search from pos until the configured playout/time
// budget is exhausted, ctx is cancelled, or Stop is called, then returns
// the move with the most visits at the root — the standard robust-child
// choice for UCT, preferred over highest-Q because visit count is far
// less sensitive to a single noisy evaluation.
func (d *Driver) Think(ctx context.Context, pos *board.Position) (board.Move, Stats, error) {
	d.root = NewNode(board.NoMove, 1.0)
	d.nodeCount.Store(1)
	d.playouts.Store(0)
	d.running.Store(true)
	d.startedAt = time.Now()
	defer d.running.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.cfg.TimeLimitMS > 0 && !d.cfg.Analyze {
		timer := time.AfterFunc(time.Duration(d.cfg.TimeLimitMS)*time.Millisecond, cancel)
		defer timer.Stop()
	}

	threads := d.cfg.NumThreads
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < threads; i++ {
		workerPos := pos.Copy()
		g.Go(func() error {
			for d.shouldContinue(gctx) {
				if err := d.playSimulation(workerPos); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return board.NoMove, Stats{}, err
	}

	best := d.bestMove()
	stats := d.snapshot()
	if best == board.NoMove {
		if ctx.Err() != nil {
			return board.NoMove, stats, ErrCancelled
		}
		return board.NoMove, stats, ErrBudgetExhausted
	}
	return best, stats, nil
}

// Stop requests that a running Think return as soon as its in-flight
// playouts complete.
func (d *Driver) Stop() { d.running.Store(false) }

func (d *Driver) shouldContinue(ctx context.Context) bool {
	if !d.running.Load() {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	if d.cfg.PlayoutLimit > 0 && d.playouts.Load() >= int32(d.cfg.PlayoutLimit) {
		return false
	}
	if d.nodeCount.Load() >= d.cfg.MaxTreeNodes {
		return false
	}
	return true
}

// mostVisited returns the most-visited child of children, ties broken
// by Q and then by position in the slice (i.e. move order), per the
// robust-child selection rule this search uses both to pick a move and
// to walk the principal variation.
func mostVisited(children []*Node) *Node {
	if len(children) == 0 {
		return nil
	}
	best := children[0]
	for _, c := range children[1:] {
		switch {
		case c.Visits() > best.Visits():
			best = c
		case c.Visits() == best.Visits() && c.Q() > best.Q():
			best = c
		}
	}
	return best
}

// bestMove returns the root's most-visited child's move, or NoMove if
// the root has no children (no playout ever completed).
func (d *Driver) bestMove() board.Move {
	best := mostVisited(d.root.Children())
	if best == nil {
		return board.NoMove
	}
	return best.Move
}

func (d *Driver) snapshot() Stats {
	return Stats{
		Playouts:  d.playouts.Load(),
		Nodes:     d.nodeCount.Load(),
		Elapsed:   time.Since(d.startedAt),
		RootValue: d.root.Q(),
		RootMove:  d.bestMove(),
	}
}

// DumpStats returns a point-in-time snapshot of the ongoing (or just
// finished) search; it is safe to call concurrently with running
// workers since it only takes atomic reads.
func (d *Driver) DumpStats() Stats { return d.snapshot() }

// PrincipalVariation walks the most-visited child at each level starting
// from the root, ties broken by Q then move order, the same read-only-
// while-running traversal as UCTSearch::get_pv, up to maxLen moves.
func (d *Driver) PrincipalVariation(maxLen int) []board.Move {
	var pv []board.Move
	node := d.root
	for i := 0; i < maxLen && node != nil; i++ {
		best := mostVisited(node.Children())
		if best == nil || best.Visits() == 0 {
			break
		}
		pv = append(pv, best.Move)
		node = best
	}
	return pv
}

// playSimulation runs one playout: descend the tree from the root using
// PUCT selection and virtual loss, expand the first unexpanded node it
// reaches (evaluating it through the accelerator, or reading off a
// terminal value), then back the result up the path.
func (d *Driver) playSimulation(pos *board.Position) error {
	node := d.root
	path := []*Node{node}
	var moves []board.Move
	var undos []board.UndoInfo

	for {
		switch node.State() {
		case stateTerminal:
			d.backup(path, node.TerminalValue())
			d.unwind(pos, moves, undos)
			d.playouts.Add(1)
			return nil
		case stateUnexpanded:
			if node.TryExpand() {
				value, err := d.expand(node, pos)
				if err != nil {
					d.unwind(pos, moves, undos)
					return err
				}
				d.backup(path, value)
				d.unwind(pos, moves, undos)
				d.playouts.Add(1)
				return nil
			}
			runtime.Gosched()
		case stateExpanding:
			runtime.Gosched()
		default: // stateExpanded
			child := node.SelectChild(d.cfg.CPuct)
			if child == nil {
				d.backup(path, node.Q())
				d.unwind(pos, moves, undos)
				d.playouts.Add(1)
				return nil
			}
			child.AddVirtualLoss(d.cfg.VirtualLoss)
			undo := pos.MakeMove(child.Move)
			pos.UpdateCheckers()
			moves = append(moves, child.Move)
			undos = append(undos, undo)
			path = append(path, child)
			node = child
		}
	}
}

// expand evaluates a freshly-claimed node: if its position is already
// game-over it becomes a terminal node with the exact result, otherwise
// it is evaluated through the accelerator and given one child per legal
// move, seeded with the network's policy as priors.
func (d *Driver) expand(node *Node, pos *board.Position) (float32, error) {
	if pos.IsCheckmate() {
		node.MarkTerminal(-1)
		return -1, nil
	}
	if pos.IsDraw() {
		node.MarkTerminal(0)
		return 0, nil
	}

	input := planes.Materialize(planes.Generate(pos))
	policy, value, err := d.evaluator.Evaluate(input)
	if err != nil {
		return 0, fmt.Errorf("search: evaluation failed: %w", err)
	}

	legal := pos.GenerateLegalMoves()
	n := legal.Len()
	children := make([]*Node, 0, n)
	priors := make([]float32, n)
	var total float32
	for i := 0; i < n; i++ {
		idx := planes.PolicyIndex(legal.Get(i))
		var p float32
		if idx >= 0 && idx < len(policy) {
			p = policy[idx]
		}
		priors[i] = p
		total += p
	}
	if total <= 0 {
		for i := range priors {
			priors[i] = 1.0 / float32(n)
		}
		total = 1
	}
	for i := 0; i < n; i++ {
		children = append(children, NewNode(legal.Get(i), priors[i]/total))
	}
	d.nodeCount.Add(int64(len(children)))

	node.Expand(children)
	return value, nil
}

// backup propagates a leaf value up the playout's path, flipping its
// sign at every ply since the value is always expressed from the
// perspective of whichever side is to move at that node, and removes
// the virtual loss added to every node but the root while descending.
func (d *Driver) backup(path []*Node, leafValue float32) {
	v := leafValue
	for i := len(path) - 1; i >= 0; i-- {
		path[i].Update(v)
		if i > 0 {
			path[i].RemoveVirtualLoss(d.cfg.VirtualLoss)
		}
		v = -v
	}
}

// unwind undoes every move a playout made while descending, restoring
// pos to the root position so the worker's next playout starts clean.
func (d *Driver) unwind(pos *board.Position, moves []board.Move, undos []board.UndoInfo) {
	for i := len(moves) - 1; i >= 0; i-- {
		pos.UnmakeMove(moves[i], undos[i])
	}
}
