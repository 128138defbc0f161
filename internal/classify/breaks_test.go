package classify

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestBreaks_Bin(t *testing.T) {
	b := Breaks{1, 10, 100, 1000}
	assert.Equal(t, 3, b.Classes())
	assert.Equal(t, 0, b.Bin(1))
	assert.Equal(t, 0, b.Bin(5))
	assert.Equal(t, 1, b.Bin(10))
	assert.Equal(t, 1, b.Bin(99))
	assert.Equal(t, 2, b.Bin(100))
	assert.Equal(t, 2, b.Bin(1000)) // final bin closed on the right
}

func TestBreaks_BinOutOfRange(t *testing.T) {
	b := Breaks{1, 10, 100}
	assert.Equal(t, 0, b.Bin(0.5))
	assert.Equal(t, 1, b.Bin(500))
}

func TestBreaks_Validate(t *testing.T) {
	assert.NoError(t, Breaks{1, 2, 3}.Validate())
	assert.NoError(t, Breaks{5, 5}.Validate())

	err := Breaks{3, 2}.Validate()
	assert.True(t, eris.Is(err, ErrInvalidInput))
	err = Breaks{1}.Validate()
	assert.True(t, eris.Is(err, ErrInvalidInput))
}

func TestDedupe(t *testing.T) {
	b := dedupe(Breaks{1, 1, 2, 2.0000000000001, 3}, 1e-9)
	assert.Equal(t, Breaks{1, 2, 3}, b)
}

func TestDedupe_AllEqual(t *testing.T) {
	b := dedupe(Breaks{4, 4, 4}, 1e-9)
	assert.Equal(t, Breaks{4, 4}, b)
}
