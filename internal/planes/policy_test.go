package planes

import (
	"testing"

	"github.com/lczerogo/engine/internal/board"
)

func TestPolicyIndexRoundTripsThroughLegalMoves(t *testing.T) {
	pos := board.NewPosition()
	legal := pos.GenerateLegalMoves()
	if legal.Len() == 0 {
		t.Fatal("starting position has no legal moves")
	}

	seen := map[int]board.Move{}
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		idx := PolicyIndex(m)
		if idx < 0 || idx >= PolicyOutputs {
			t.Errorf("PolicyIndex(%s) = %d, out of range [0, %d)", m.String(), idx, PolicyOutputs)
			continue
		}
		if other, ok := seen[idx]; ok {
			t.Errorf("PolicyIndex collision: %s and %s both map to %d", m.String(), other.String(), idx)
		}
		seen[idx] = m

		if SelectMove(legal, idx) != m {
			t.Errorf("SelectMove(legal, PolicyIndex(%s)) did not return %s", m.String(), m.String())
		}
	}
}

func TestPolicyIndexKnightMove(t *testing.T) {
	pos := board.NewPosition()
	legal := pos.GenerateLegalMoves()
	var knightMove board.Move
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if pos.PieceAt(m.From()).Type() == board.Knight {
			knightMove = m
			break
		}
	}
	if knightMove == board.NoMove {
		t.Fatal("expected a legal knight move from the starting position")
	}
	idx := PolicyIndex(knightMove)
	plane := idx / 64
	if plane < 56 || plane > 63 {
		t.Errorf("knight move %s mapped to plane %d, want a knight plane (56-63)", knightMove.String(), plane)
	}
}
