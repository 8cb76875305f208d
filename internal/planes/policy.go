package planes

import "github.com/lczerogo/engine/internal/board"

// This resolves the move-to-policy-index mapping left as an open design
// question: a flat AlphaZero-style 73-plane encoding, one plane per
// (direction, distance) queen move, one per knight jump, and one per
// underpromotion, each plane addressed by its origin square. Every
// policy index is PlaneIndex*64 + fromSquare, for a fixed PolicyOutputs
// of 73*64.

// PolicyOutputs is the size of the flat policy vector every loaded
// network's policy head must produce.
const PolicyOutputs = 73 * 64

// queenDirections lists the eight ray directions a queen move can travel,
// as (file delta, rank delta) pairs, in a fixed order that also orders
// the 56 queen-move planes (8 directions x 7 distances).
var queenDirections = [8][2]int{
	{0, 1}, {1, 1}, {1, 0}, {1, -1},
	{0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
}

// knightDeltas lists the eight knight-jump offsets, in the fixed order
// that numbers the 8 knight-move planes (56-63).
var knightDeltas = [8][2]int{
	{1, 2}, {2, 1}, {2, -1}, {1, -2},
	{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
}

// underpromoPieces lists the three underpromotion targets (queen
// promotions reuse the queen-move planes) in the fixed order that
// numbers the 9 underpromotion planes (64-72): 3 targets x 3 directions
// (capture-left, forward, capture-right).
var underpromoPieces = [3]board.PieceType{board.Knight, board.Bishop, board.Rook}

// PolicyIndex maps a legal move to its flat policy-vector slot. It
// returns -1 for a move this encoding cannot represent, which should
// never happen for a legal chess move generated by board.Position.
func PolicyIndex(m board.Move) int {
	from := m.From()
	to := m.To()
	fromFile, fromRank := from.File(), from.Rank()
	toFile, toRank := to.File(), to.Rank()
	df, dr := toFile-fromFile, toRank-fromRank

	if m.IsPromotion() && m.Promotion() != board.Queen {
		promoPlane := -1
		for i, pt := range underpromoPieces {
			if pt == m.Promotion() {
				promoPlane = i
				break
			}
		}
		if promoPlane < 0 {
			return -1
		}
		// direction: -1 = capture toward a-file, 0 = forward, 1 = capture toward h-file
		dir := df
		if dir < -1 || dir > 1 {
			return -1
		}
		plane := 64 + promoPlane*3 + (dir + 1)
		return plane*64 + int(from)
	}

	for i, d := range knightDeltas {
		if d[0] == df && d[1] == dr {
			plane := 56 + i
			return plane*64 + int(from)
		}
	}

	for dirIdx, d := range queenDirections {
		if d[0] == 0 && d[1] == 0 {
			continue
		}
		dist := queenDistance(df, dr, d)
		if dist > 0 {
			plane := dirIdx*7 + (dist - 1)
			return plane*64 + int(from)
		}
	}

	return -1
}

// queenDistance returns the tile distance from 1 to 7 if (df, dr) is a
// pure multiple of direction d, or 0 if it is not aligned with d at all.
func queenDistance(df, dr int, d [2]int) int {
	if d[0] == 0 {
		if df != 0 || dr == 0 || sign(dr) != sign(d[1]) {
			return 0
		}
		n := dr / d[1]
		if n < 1 || n > 7 {
			return 0
		}
		return n
	}
	if d[1] == 0 {
		if dr != 0 || df == 0 || sign(df) != sign(d[0]) {
			return 0
		}
		n := df / d[0]
		if n < 1 || n > 7 {
			return 0
		}
		return n
	}
	if df == 0 || dr == 0 || sign(df) != sign(d[0]) || sign(dr) != sign(d[1]) {
		return 0
	}
	if df != dr && df != -dr {
		return 0
	}
	n := df / d[0]
	if n*d[1] != dr {
		return 0
	}
	if n < 1 || n > 7 {
		return 0
	}
	return n
}

func sign(x int) int {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}

// SelectMove finds, among a position's legal moves, the one whose
// PolicyIndex matches idx. It returns board.NoMove if none match, which
// the search driver treats as an unreachable encoding bug rather than a
// recoverable condition since idx is always drawn from the legal-move
// set in the first place.
func SelectMove(legal *board.MoveList, idx int) board.Move {
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if PolicyIndex(m) == idx {
			return m
		}
	}
	return board.NoMove
}
