package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

const sampleBoard = "ooxoKoCCoIKoGAAIKoGoHJDDEEHJoLoFFFoL"

func TestDecodeVehicleBoard(t *testing.T) {
	layout, err := DecodeVehicleBoard(sampleBoard)
	require.NoError(t, err)

	assert.Equal(t, sampleBoard, layout.Description)
	assert.Equal(t, []byte(sampleBoard), layout.Cells)

	expected := []Piece{
		{ID: 'A', Orientation: Horizontal, Length: 2},
		{ID: 'C', Orientation: Horizontal, Length: 2},
		{ID: 'D', Orientation: Horizontal, Length: 2},
		{ID: 'E', Orientation: Horizontal, Length: 2},
		{ID: 'F', Orientation: Horizontal, Length: 3},
		{ID: 'G', Orientation: Vertical, Length: 2},
		{ID: 'H', Orientation: Vertical, Length: 2},
		{ID: 'I', Orientation: Vertical, Length: 2},
		{ID: 'J', Orientation: Vertical, Length: 2},
		{ID: 'K', Orientation: Vertical, Length: 3},
		{ID: 'L', Orientation: Vertical, Length: 2},
	}
	assert.Equal(t, expected, layout.Pieces)
	assert.Equal(t, 0, layout.PieceIndex('A'))
	assert.Equal(t, 9, layout.PieceIndex('K'))
	assert.Equal(t, -1, layout.PieceIndex('B'))
}

func TestDecodeVehicleBoard_Rejects(t *testing.T) {
	pad := strings.Repeat("o", 30)
	tests := []struct {
		name string
		desc string
	}{
		{"TooShort", sampleBoard[:35]},
		{"TooLong", sampleBoard + "o"},
		{"LowercaseSymbol", "aaoooo" + pad},
		{"Digit", "AA1ooo" + pad},
		{"LShape", "AAoooo" + "Aooooo" + pad[6:]},
		{"Gap", "AoAooo" + pad},
		{"SingleCell", "Aooooo" + pad},
		{"TooLong4", "AAAAoo" + pad},
		{"WrapsRow", "ooooAA" + "Aooooo" + pad[6:]},
		{"VerticalGap", "Aooooo" + "oooooo" + "Aooooo" + pad[12:]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeVehicleBoard(tt.desc)
			assert.ErrorIs(t, err, core.ErrInvalidBoardDescription)
		})
	}
}

func TestDecodeVehicleBoard_WallsAndEmptyBoard(t *testing.T) {
	layout, err := DecodeVehicleBoard(strings.Repeat("x", 6) + strings.Repeat("o", 30))
	require.NoError(t, err)
	assert.Empty(t, layout.Pieces)
}

func TestOrientation_Allows(t *testing.T) {
	assert.True(t, Horizontal.Allows(core.Left))
	assert.True(t, Horizontal.Allows(core.Right))
	assert.False(t, Horizontal.Allows(core.Up))
	assert.True(t, Vertical.Allows(core.Down))
	assert.False(t, Vertical.Allows(core.Right))
	assert.Equal(t, "H", Horizontal.String())
	assert.Equal(t, "V", Vertical.String())
}
