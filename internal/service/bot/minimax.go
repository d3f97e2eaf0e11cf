package bot

import (
	"log"
	"math"

	"github.com/Dharmateja69/4-in-Row/internal/domain"
)

const (
	MinDepth = 3
	MaxDepth = 7

	scoreWin    = 1000000
	scoreThree  = 50
	scoreTwo    = 10
	scoreCenter = 3

	centerCol = domain.Cols / 2
)

// FindBestMove picks a column for the bot. Priority order: win immediately,
// block an immediate opponent win, otherwise minimax with alpha-beta
// pruning to the clamped depth. The board is mutated and undone in place
// during search; the caller must hand in a board it owns for the duration.
func FindBestMove(board domain.Board, botSeat domain.Seat, maxDepth int) int {
	depth := maxDepth
	if depth < MinDepth {
		depth = MinDepth
	}
	if depth > MaxDepth {
		depth = MaxDepth
	}
	if depth != maxDepth {
		log.Printf("[BOT] depth clamped from %d to %d", maxDepth, depth)
	}

	playerSeat := domain.Opponent(botSeat)
	validMoves := domain.LegalColumns(board)
	if len(validMoves) == 0 {
		return centerCol
	}

	bestCol := validMoves[0]
	if contains(validMoves, centerCol) {
		bestCol = centerCol
	}

	// Immediate win
	for _, col := range validMoves {
		if _, ok := domain.ApplyMove(board, col, botSeat); ok {
			won := domain.CheckWinner(board) == botSeat
			domain.UndoMove(board, col)
			if won {
				return col
			}
		}
	}

	// Immediate block
	for _, col := range validMoves {
		if _, ok := domain.ApplyMove(board, col, playerSeat); ok {
			loses := domain.CheckWinner(board) == playerSeat
			domain.UndoMove(board, col)
			if loses {
				return col
			}
		}
	}

	bestScore := math.MinInt32
	for _, col := range validMoves {
		if _, ok := domain.ApplyMove(board, col, botSeat); !ok {
			continue
		}
		score := minimax(board, depth-1, math.MinInt32, math.MaxInt32, false, botSeat, playerSeat)
		domain.UndoMove(board, col)

		if score > bestScore {
			bestScore = score
			bestCol = col
		}
	}

	return bestCol
}

func minimax(board domain.Board, depth, alpha, beta int, maximizing bool, botSeat, playerSeat domain.Seat) int {
	winner := domain.CheckWinner(board)
	if winner == botSeat {
		return scoreWin - depth // quicker wins score higher
	}
	if winner == playerSeat {
		return -scoreWin + depth // slower losses score higher
	}

	validMoves := domain.LegalColumns(board)
	if depth == 0 || len(validMoves) == 0 {
		return scorePosition(board, botSeat)
	}

	if maximizing {
		value := math.MinInt32
		for _, col := range validMoves {
			if _, ok := domain.ApplyMove(board, col, botSeat); !ok {
				continue
			}
			value = max(value, minimax(board, depth-1, alpha, beta, false, botSeat, playerSeat))
			domain.UndoMove(board, col)
			alpha = max(alpha, value)
			if alpha >= beta {
				break
			}
		}
		return value
	}

	value := math.MaxInt32
	for _, col := range validMoves {
		if _, ok := domain.ApplyMove(board, col, playerSeat); !ok {
			continue
		}
		value = min(value, minimax(board, depth-1, alpha, beta, true, botSeat, playerSeat))
		domain.UndoMove(board, col)
		beta = min(beta, value)
		if alpha >= beta {
			break
		}
	}
	return value
}

// scorePosition is the leaf heuristic: center-column occupancy plus a
// score per 4-cell window in every direction.
func scorePosition(board domain.Board, piece domain.Seat) int {
	score := 0

	for r := 0; r < domain.Rows; r++ {
		if board[r][centerCol] == piece {
			score += scoreCenter
		}
	}

	// horizontal
	for r := 0; r < domain.Rows; r++ {
		for c := 0; c <= domain.Cols-4; c++ {
			score += evaluateWindow(board, r, c, 0, 1, piece)
		}
	}
	// vertical
	for c := 0; c < domain.Cols; c++ {
		for r := 0; r <= domain.Rows-4; r++ {
			score += evaluateWindow(board, r, c, 1, 0, piece)
		}
	}
	// diagonal down-right
	for r := 0; r <= domain.Rows-4; r++ {
		for c := 0; c <= domain.Cols-4; c++ {
			score += evaluateWindow(board, r, c, 1, 1, piece)
		}
	}
	// diagonal up-right
	for r := 3; r < domain.Rows; r++ {
		for c := 0; c <= domain.Cols-4; c++ {
			score += evaluateWindow(board, r, c, -1, 1, piece)
		}
	}

	return score
}

func evaluateWindow(board domain.Board, r, c, dr, dc int, piece domain.Seat) int {
	opp := domain.Opponent(piece)
	var pieceCount, oppCount, emptyCount int

	for i := 0; i < 4; i++ {
		switch board[r+dr*i][c+dc*i] {
		case piece:
			pieceCount++
		case opp:
			oppCount++
		default:
			emptyCount++
		}
	}

	score := 0
	switch {
	case pieceCount == 4:
		score += scoreWin
	case pieceCount == 3 && emptyCount == 1:
		score += scoreThree
	case pieceCount == 2 && emptyCount == 2:
		score += scoreTwo
	}
	if oppCount == 3 && emptyCount == 1 {
		score -= scoreThree * 9 / 10
	}
	return score
}

func contains(cols []int, col int) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}
