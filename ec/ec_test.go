package ec

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnError(t *testing.T) {
	err := Column(ErrPersistence, "load", "/tmp/p/1.idx", 3, io.ErrUnexpectedEOF)

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.False(t, errors.Is(err, ErrLogic))
	assert.Equal(t, `persistence error: load "/tmp/p/1.idx" column 3: unexpected EOF`, err.Error())

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.Column)
	assert.Equal(t, "/tmp/p/1.idx", ce.Path)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(ErrLogic, "op", nil))

	err := Wrap(ErrPersistence, "save", io.ErrShortWrite)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, io.ErrShortWrite))

	// Already-kinded errors are not double wrapped.
	assert.Same(t, err, Wrap(ErrPersistence, "again", err))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"plain", io.EOF, nil},
		{"logic", New(ErrLogic, "forgot to shrink"), ErrLogic},
		{"column", Column(ErrConstruction, "init", "", -1, nil), ErrConstruction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
