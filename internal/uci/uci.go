// Package uci implements the Universal Chess Interface protocol on top
// of a search.Driver, adapted from this engine's alpha-beta-era UCI
// front end: the protocol dispatch loop, move parsing, and time
// management all keep their original shape, but "go" now launches a UCT
// search instead of iterative-deepening alpha-beta, and setoption
// configures the search.Config the new driver reads instead of a hash
// table size or NNUE file paths.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lczerogo/engine/internal/board"
	"github.com/lczerogo/engine/internal/search"
)

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	driver   *search.Driver
	position *board.Position

	// Hashes of the positions in the current game; recorded, not read
	// by the search
	positionHashes []uint64

	cfg search.Config

	searching     bool
	searchDone    chan struct{}
	stopRequested atomic.Bool
	cancel        context.CancelFunc

	profileFile *os.File
}

// New creates a new UCI protocol handler driving the given search.Driver.
func New(driver *search.Driver) *UCI {
	return &UCI{
		driver:   driver,
		position: board.NewPosition(),
		cfg:      search.DefaultConfig(),
	}
}

// Run starts the UCI main loop.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleQuit()
		case "setoption":
			u.handleSetOption(args)
		case "d":
			fmt.Println(u.position.String())
			u.printLegalMoves()
		case "perft":
			u.handlePerft(args)
		}
	}
}

func (u *UCI) handleUCI() {
	fmt.Println("id name lczerogo")
	fmt.Println("id author lczerogo contributors")
	fmt.Println()
	fmt.Println("option name Threads type spin default 4 min 1 max 128")
	fmt.Println("option name CPuct type string default 1.0")
	fmt.Println("option name SoftmaxTemp type string default 1.0")
	fmt.Println("option name VirtualLoss type spin default 3 min 1 max 64")
	fmt.Println("option name MaxTreeNodes type spin default 40000000 min 1000 max 100000000")
	fmt.Println("uciok")
}

// printLegalMoves lists the legal moves from the current position in
// Standard Algebraic Notation, for interactive debugging at a terminal.
func (u *UCI) printLegalMoves() {
	legal := u.position.GenerateLegalMoves()
	moves := make([]string, 0, legal.Len())
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		moves = append(moves, m.ToSAN(u.position))
	}
	fmt.Println("Legal moves:", strings.Join(moves, " "))
}

func (u *UCI) handleNewGame() {
	u.position = board.NewPosition()
	u.positionHashes = []uint64{u.position.Hash}
}

// handlePosition parses and sets up a position.
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	u.positionHashes = nil
	var moveStart int

	switch args[0] {
	case "startpos":
		u.position = board.NewPosition()
		moveStart = 1
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	case "fen":
		fenEnd := len(args)
		for i, arg := range args[1:] {
			if arg == "moves" {
				fenEnd = i + 1
				break
			}
		}
		fenStr := strings.Join(args[1:fenEnd], " ")
		pos, err := board.ParseFEN(fenStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string Invalid FEN: %v\n", err)
			return
		}
		u.position = pos
		moveStart = len(args)
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	default:
		return
	}

	u.positionHashes = append(u.positionHashes, u.position.Hash)

	if moveStart < len(args) {
		for _, moveStr := range args[moveStart:] {
			move := u.parseMove(moveStr)
			if move == board.NoMove {
				fmt.Fprintf(os.Stderr, "info string Invalid move: %s\n", moveStr)
				return
			}
			u.position.MakeMove(move)
			u.position.UpdateCheckers()
			u.positionHashes = append(u.positionHashes, u.position.Hash)
		}
	}
}

func (u *UCI) parseMove(moveStr string) board.Move {
	if len(moveStr) < 4 {
		return board.NoMove
	}

	fromFile := int(moveStr[0] - 'a')
	fromRank := int(moveStr[1] - '1')
	toFile := int(moveStr[2] - 'a')
	toRank := int(moveStr[3] - '1')

	if fromFile < 0 || fromFile > 7 || fromRank < 0 || fromRank > 7 ||
		toFile < 0 || toFile > 7 || toRank < 0 || toRank > 7 {
		return board.NoMove
	}

	from := board.NewSquare(fromFile, fromRank)
	to := board.NewSquare(toFile, toRank)

	var promo board.PieceType
	if len(moveStr) == 5 {
		switch moveStr[4] {
		case 'q':
			promo = board.Queen
		case 'r':
			promo = board.Rook
		case 'b':
			promo = board.Bishop
		case 'n':
			promo = board.Knight
		}
	}

	moves := u.position.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.From() == from && m.To() == to {
			if promo != 0 {
				if m.IsPromotion() && m.Promotion() == promo {
					return m
				}
			} else if !m.IsPromotion() {
				return m
			}
		}
	}

	return board.NoMove
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Nodes     uint64
	MoveTime  time.Duration
	Infinite  bool
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
}

func (u *UCI) handleGo(args []string) {
	opts := u.parseGoOptions(args)

	cfg := u.cfg
	cfg.Analyze = opts.Infinite
	if opts.Nodes > 0 {
		cfg.PlayoutLimit = int(opts.Nodes)
	}
	if !opts.Infinite {
		if opts.MoveTime > 0 {
			cfg.TimeLimitMS = int(opts.MoveTime.Milliseconds())
		} else if opts.WTime > 0 || opts.BTime > 0 {
			cfg.TimeLimitMS = int(u.calculateTimeForMove(opts).Milliseconds())
		}
	}
	u.driver.SetConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel

	u.searching = true
	u.stopRequested.Store(false)
	u.searchDone = make(chan struct{})

	pos := u.position.Copy()

	go func() {
		defer close(u.searchDone)
		defer cancel()

		bestMove, stats, err := u.driver.Think(ctx, pos)
		u.searching = false

		if err != nil && bestMove == board.NoMove {
			fmt.Fprintf(os.Stderr, "info string search error: %v\n", err)
			legal := u.position.Copy().GenerateLegalMoves()
			if legal.Len() > 0 {
				fmt.Printf("bestmove %s\n", legal.Get(0).String())
			} else {
				fmt.Println("bestmove 0000")
			}
			return
		}

		u.sendInfo(stats)
		fmt.Printf("bestmove %s\n", bestMove.String())
	}()
}

func (u *UCI) parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "nodes":
			if i+1 < len(args) {
				n, _ := strconv.ParseUint(args[i+1], 10, 64)
				opts.Nodes = n
				i++
			}
		case "movetime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.MoveTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "infinite":
			opts.Infinite = true
		case "wtime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "btime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "winc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "binc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "movestogo":
			if i+1 < len(args) {
				opts.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		}
	}

	return opts
}

func (u *UCI) calculateTimeForMove(opts GoOptions) time.Duration {
	var ourTime, ourInc time.Duration

	if u.position.SideToMove == board.White {
		ourTime = opts.WTime
		ourInc = opts.WInc
	} else {
		ourTime = opts.BTime
		ourInc = opts.BInc
	}

	movesRemaining := opts.MovesToGo
	if movesRemaining == 0 {
		movesRemaining = u.estimateMovesRemaining()
	}

	baseTime := ourTime / time.Duration(movesRemaining)
	moveTime := baseTime + (ourInc * 90 / 100)

	maxTime := ourTime * 90 / 100
	if moveTime > maxTime {
		moveTime = maxTime
	}
	if moveTime < 10*time.Millisecond {
		moveTime = 10 * time.Millisecond
	}

	return moveTime
}

func (u *UCI) estimateMovesRemaining() int {
	totalPieces := u.position.AllOccupied.PopCount()

	if totalPieces > 24 {
		return 40
	} else if totalPieces > 12 {
		return 30
	}
	return 20
}

// sendInfo outputs search progress in UCI format from a search.Stats
// snapshot: node count, elapsed time, nps, and the current best line.
func (u *UCI) sendInfo(stats search.Stats) {
	var parts []string

	parts = append(parts, fmt.Sprintf("nodes %d", stats.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", stats.Elapsed.Milliseconds()))
	if stats.Elapsed > 0 {
		nps := uint64(float64(stats.Playouts) / stats.Elapsed.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}
	parts = append(parts, fmt.Sprintf("score cp %d", int(stats.RootValue*100)))

	pv := u.driver.PrincipalVariation(64)
	if len(pv) > 0 {
		strs := make([]string, len(pv))
		for i, m := range pv {
			strs[i] = m.String()
		}
		parts = append(parts, "pv "+strings.Join(strs, " "))
	}

	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

func (u *UCI) handleStop() {
	if u.searching {
		u.stopRequested.Store(true)
		u.driver.Stop()
		if u.cancel != nil {
			u.cancel()
		}
		<-u.searchDone
	}
}

func (u *UCI) handleQuit() {
	u.handleStop()
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
		fmt.Fprintf(os.Stderr, "info string CPU profile saved\n")
	}
	os.Exit(0)
}

func (u *UCI) handleSetOption(args []string) {
	var name, value string
	readingName := false
	readingValue := false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName = true
			readingValue = false
		case "value":
			readingName = false
			readingValue = true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	switch strings.ToLower(name) {
	case "threads":
		n, err := strconv.Atoi(value)
		if err == nil && n >= 1 {
			u.cfg.NumThreads = n
		}
	case "cpuct":
		v, err := strconv.ParseFloat(value, 32)
		if err == nil {
			u.cfg.CPuct = float32(v)
		}
	case "softmaxtemp":
		v, err := strconv.ParseFloat(value, 32)
		if err == nil && v > 0 {
			u.cfg.SoftmaxTemperature = float32(v)
		}
	case "virtualloss":
		n, err := strconv.Atoi(value)
		if err == nil && n >= 1 {
			u.cfg.VirtualLoss = int32(n)
		}
	case "maxtreenodes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err == nil && n > 0 {
			u.cfg.MaxTreeNodes = n
		}
	case "cpuprofile":
		if u.profileFile != nil {
			pprof.StopCPUProfile()
			u.profileFile.Close()
			u.profileFile = nil
		}
		if value != "" && value != "stop" {
			f, err := os.Create(value)
			if err != nil {
				fmt.Fprintf(os.Stderr, "info string Failed to create profile: %v\n", err)
				return
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				fmt.Fprintf(os.Stderr, "info string Failed to start profile: %v\n", err)
				return
			}
			u.profileFile = f
			fmt.Fprintf(os.Stderr, "info string CPU profiling to %s\n", value)
		}
	}
}

// handlePerft runs a perft (move generator path enumeration) test,
// counting leaf positions directly through the position's own move
// generator rather than through the search tree.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		depth, _ = strconv.Atoi(args[0])
	}

	start := time.Now()
	nodes := perft(u.position.Copy(), depth)
	elapsed := time.Since(start)

	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		nps := float64(nodes) / elapsed.Seconds()
		fmt.Printf("NPS: %.0f\n", nps)
	}
}

func perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}
	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := pos.MakeMove(m)
		pos.UpdateCheckers()
		nodes += perft(pos, depth-1)
		pos.UnmakeMove(m, undo)
		pos.UpdateCheckers()
	}
	return nodes
}
