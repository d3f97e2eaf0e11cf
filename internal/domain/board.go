package domain

// Board is a 6x7 grid; row 0 is the top, row Rows-1 the bottom.
type Board [][]Seat

func NewBoard() Board {
	board := make(Board, Rows)
	for i := range board {
		board[i] = make([]Seat, Cols)
	}
	return board
}

// Clone returns a deep copy, used to hand the bot its own scratch board.
func (b Board) Clone() Board {
	out := make(Board, len(b))
	for i := range b {
		out[i] = make([]Seat, len(b[i]))
		copy(out[i], b[i])
	}
	return out
}

// ApplyMove drops a piece into the given column (gravity). It mutates the
// board in place and returns the landing row, or ok=false if the column is
// out of range or full.
func ApplyMove(board Board, col int, seat Seat) (int, bool) {
	if col < 0 || col >= Cols || board[0][col] != SeatNone {
		return -1, false
	}
	for row := Rows - 1; row >= 0; row-- {
		if board[row][col] == SeatNone {
			board[row][col] = seat
			return row, true
		}
	}
	return -1, false
}

// UndoMove removes the topmost piece of the column. Pairs with ApplyMove
// during search.
func UndoMove(board Board, col int) bool {
	for row := 0; row < Rows; row++ {
		if board[row][col] != SeatNone {
			board[row][col] = SeatNone
			return true
		}
	}
	return false
}

// LegalColumns returns every column with at least one empty cell.
func LegalColumns(board Board) []int {
	moves := []int{}
	for c := 0; c < Cols; c++ {
		if board[0][c] == SeatNone {
			moves = append(moves, c)
		}
	}
	return moves
}

// CheckWinner scans the whole board for a run of four. Directions are
// right, down, down-right and down-left; every run starts from its topmost
// or leftmost cell, so scanning those four is enough.
func CheckWinner(board Board) Seat {
	dirs := [4][2]int{
		{0, 1},  // right
		{1, 0},  // down
		{1, 1},  // down-right
		{1, -1}, // down-left
	}

	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			cell := board[r][c]
			if cell == SeatNone {
				continue
			}
			for _, d := range dirs {
				count := 1
				rr, cc := r+d[0], c+d[1]
				for rr >= 0 && rr < Rows && cc >= 0 && cc < Cols && board[rr][cc] == cell {
					count++
					if count == 4 {
						return cell
					}
					rr += d[0]
					cc += d[1]
				}
			}
		}
	}
	return SeatNone
}

// IsDraw reports a full board with no winner.
func IsDraw(board Board) bool {
	return len(LegalColumns(board)) == 0 && CheckWinner(board) == SeatNone
}
