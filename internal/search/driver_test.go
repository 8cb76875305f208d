package search

import (
	"context"
	"testing"
	"time"

	"github.com/lczerogo/engine/internal/accelerator"
	"github.com/lczerogo/engine/internal/board"
	"github.com/lczerogo/engine/internal/planes"
)

// uniformEvaluator returns a uniform policy over the whole index space
// and a value of zero, standing in for a real network in these tests.
func uniformEvaluator() accelerator.Evaluator {
	return accelerator.EvalFunc(func(input []float32) ([]float32, float32, error) {
		policy := make([]float32, planes.PolicyOutputs)
		for i := range policy {
			policy[i] = 1
		}
		return policy, 0, nil
	})
}

func TestThinkReturnsLegalMove(t *testing.T) {
	d := NewDriver(uniformEvaluator(), Config{
		NumThreads:   2,
		PlayoutLimit: 50,
		CPuct:        1.4,
		VirtualLoss:  3,
		MaxTreeNodes: 100000,
	})

	pos := board.NewPosition()
	move, stats, err := d.Think(context.Background(), pos)
	if err != nil {
		t.Fatalf("Think() error = %v", err)
	}
	if move == board.NoMove {
		t.Fatal("Think() returned NoMove for a position with legal moves")
	}

	legal := pos.GenerateLegalMoves()
	found := false
	for i := 0; i < legal.Len(); i++ {
		if legal.Get(i) == move {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("Think() returned illegal move %s", move.String())
	}
	if stats.Playouts == 0 {
		t.Fatal("Think() completed zero playouts")
	}
}

func TestThinkRespectsTimeLimit(t *testing.T) {
	d := NewDriver(uniformEvaluator(), Config{
		NumThreads:   4,
		TimeLimitMS:  50,
		CPuct:        1.4,
		VirtualLoss:  3,
		MaxTreeNodes: 40_000_000,
	})

	pos := board.NewPosition()
	start := time.Now()
	_, _, err := d.Think(context.Background(), pos)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Think() error = %v", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("Think() took %v, expected to stop near its 50ms budget", elapsed)
	}
}

func TestThinkHonorsCancellation(t *testing.T) {
	d := NewDriver(uniformEvaluator(), Config{
		NumThreads:   2,
		CPuct:        1.4,
		VirtualLoss:  3,
		MaxTreeNodes: 40_000_000,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	pos := board.NewPosition()
	_, _, err := d.Think(ctx, pos)
	if err != nil && err != ErrCancelled && err != ErrBudgetExhausted {
		t.Fatalf("Think() unexpected error = %v", err)
	}
}

func TestPUCTPrefersHigherPrior(t *testing.T) {
	parent := NewNode(board.NoMove, 1)
	a := NewNode(board.NewMove(board.E2, board.E4), 0.9)
	b := NewNode(board.NewMove(board.D2, board.D4), 0.1)
	parent.Expand([]*Node{a, b})
	parent.visits.Store(10)

	best := parent.SelectChild(1.4)
	if best != a {
		t.Fatalf("SelectChild() picked the lower-prior child with no visits on either")
	}
}

func TestUpdateAccumulatesValue(t *testing.T) {
	n := NewNode(board.NoMove, 1)
	n.Update(1)
	n.Update(-0.5)
	if got, want := n.Visits(), int32(2); got != want {
		t.Fatalf("Visits() = %d, want %d", got, want)
	}
	if got, want := n.Q(), float32(0.25); !approxEq(got, want) {
		t.Fatalf("Q() = %v, want %v", got, want)
	}
}

func approxEq(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-4
}
