package codec

import (
	"fmt"
	"sort"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

const (
	// VehicleBoardSize is the side of the Rush Hour grid
	VehicleBoardSize = 6
	// VehicleCells is the length of a board description
	VehicleCells = VehicleBoardSize * VehicleBoardSize

	EmptyCell byte = 'o'
	WallCell  byte = 'x'
	MainCar   byte = 'A'

	MinPieceLength = 2
	MaxPieceLength = 3
)

// ExitCell is where the main car's rightmost cell must land to win
var ExitCell = core.Coordinate{Row: 2, Col: VehicleBoardSize - 1}

// Orientation is the fixed axis a piece slides along
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "V"
	}
	return "H"
}

// Allows reports whether a move in direction d travels along the axis
func (o Orientation) Allows(d core.Direction) bool {
	if o == Vertical {
		return d.IsVertical()
	}
	return !d.IsVertical()
}

// Piece describes one vehicle. It never changes after decoding.
type Piece struct {
	ID          byte
	Orientation Orientation
	Length      int
}

// VehicleLayout is a decoded board description
type VehicleLayout struct {
	Description string
	Cells       []byte
	Pieces      []Piece
}

// PieceIndex returns the action index of piece id, or -1
func (l *VehicleLayout) PieceIndex(id byte) int {
	for i, p := range l.Pieces {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// IsPieceSymbol reports whether b names a vehicle
func IsPieceSymbol(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

// DecodeVehicleBoard parses a 36-character row-major board description.
// Pieces are returned sorted by id so that action indices are stable.
func DecodeVehicleBoard(desc string) (*VehicleLayout, error) {
	if len(desc) != VehicleCells {
		return nil, fmt.Errorf("%w: expected %d characters, got %d", core.ErrInvalidBoardDescription, VehicleCells, len(desc))
	}

	cells := []byte(desc)
	positions := make(map[byte][]core.Coordinate)
	for i, b := range cells {
		switch {
		case b == EmptyCell || b == WallCell:
		case IsPieceSymbol(b):
			positions[b] = append(positions[b], core.FromIndex(i, VehicleBoardSize))
		default:
			return nil, fmt.Errorf("%w: unexpected symbol %q at index %d", core.ErrInvalidBoardDescription, b, i)
		}
	}

	ids := make([]byte, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pieces := make([]Piece, 0, len(ids))
	for _, id := range ids {
		piece, err := decodePiece(id, positions[id])
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, piece)
	}

	return &VehicleLayout{
		Description: desc,
		Cells:       cells,
		Pieces:      pieces,
	}, nil
}

// decodePiece expects cells in row-major order
func decodePiece(id byte, cells []core.Coordinate) (Piece, error) {
	n := len(cells)
	if n < MinPieceLength || n > MaxPieceLength {
		return Piece{}, fmt.Errorf("%w: piece %c occupies %d cells, want %d-%d",
			core.ErrInvalidBoardDescription, id, n, MinPieceLength, MaxPieceLength)
	}

	first := cells[0]
	horizontal, vertical := true, true
	for i, c := range cells {
		if c.Row != first.Row || c.Col != first.Col+i {
			horizontal = false
		}
		if c.Col != first.Col || c.Row != first.Row+i {
			vertical = false
		}
	}

	switch {
	case horizontal:
		return Piece{ID: id, Orientation: Horizontal, Length: n}, nil
	case vertical:
		return Piece{ID: id, Orientation: Vertical, Length: n}, nil
	}
	return Piece{}, fmt.Errorf("%w: piece %c is not a straight contiguous run", core.ErrInvalidBoardDescription, id)
}
