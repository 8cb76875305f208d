// Package planes converts a board.Position into the sparse input-plane
// representation the network consumes, and maps board.Move values into
// the network's fixed policy-index space and back. Both conversions are
// pure functions of immutable board state; neither allocates more than
// its single return value.
package planes

import (
	"math/bits"

	"github.com/lczerogo/engine/internal/board"
)

const allBits = ^uint64(0)

// BoardSize is the network's fixed spatial extent.
const BoardSize = 8

// NumChannels is the number of input planes Generate produces: 6 piece
// types x 2 colors, 1 side-to-move, 4 castling rights, 1 en passant
// file, 1 no-progress (fifty-move) counter.
const NumChannels = 6*2 + 1 + 4 + 1 + 1

// Plane is a single sparse input plane: every set bit of Mask (indexed
// a1=0 .. h8=63, matching board.Square) carries the constant Value. Most
// planes used here are binary (Value 1) indicator planes; the
// no-progress counter plane instead fills every square with a single
// normalized value.
type Plane struct {
	Mask  uint64
	Value float32
}

// Generate builds the NumChannels sparse input planes for pos, in a
// fixed, network-agnostic channel order:
//
//	0-5:   white pawn, knight, bishop, rook, queen, king
//	6-11:  black pawn, knight, bishop, rook, queen, king
//	12:    side to move (all-ones if black to move, else empty)
//	13-16: white kingside, white queenside, black kingside, black queenside castling rights
//	17:    en passant target file (all-ones on that file if set)
//	18:    no-progress counter, normalized halfmove clock / 100, broadcast to every square
func Generate(pos *board.Position) []Plane {
	out := make([]Plane, 0, NumChannels)

	for color := board.White; color <= board.Black; color++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			out = append(out, Plane{Mask: uint64(pos.Pieces[color][pt]), Value: 1})
		}
	}

	var stm uint64
	if pos.SideToMove == board.Black {
		stm = allBits
	}
	out = append(out, Plane{Mask: stm, Value: 1})

	out = append(out,
		Plane{Mask: boolMask(pos.CastlingRights.CanCastle(board.White, true)), Value: 1},
		Plane{Mask: boolMask(pos.CastlingRights.CanCastle(board.White, false)), Value: 1},
		Plane{Mask: boolMask(pos.CastlingRights.CanCastle(board.Black, true)), Value: 1},
		Plane{Mask: boolMask(pos.CastlingRights.CanCastle(board.Black, false)), Value: 1},
	)

	var epMask uint64
	if pos.EnPassant.IsValid() {
		file := pos.EnPassant.File()
		for rank := 0; rank < BoardSize; rank++ {
			epMask |= 1 << uint(board.NewSquare(file, rank))
		}
	}
	out = append(out, Plane{Mask: epMask, Value: 1})

	out = append(out, Plane{Mask: allBits, Value: float32(pos.HalfMoveClock) / 100})

	return out
}

func boolMask(v bool) uint64 {
	if v {
		return allBits
	}
	return 0
}

// Materialize expands a Generate-produced plane list into a dense
// channels x 8 x 8 row-major float32 tensor, one row per input channel,
// by bit-scanning each plane's mask the same way get_scored_moves
// expands lc0's InputPlanes before calling into the forward pass.
func Materialize(ps []Plane) []float32 {
	out := make([]float32, len(ps)*BoardSize*BoardSize)
	for c, p := range ps {
		base := c * BoardSize * BoardSize
		mask := p.Mask
		for mask != 0 {
			sq := bits.TrailingZeros64(mask)
			mask &= mask - 1
			out[base+sq] = p.Value
		}
	}
	return out
}
