package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("new error carries its code", func(t *testing.T) {
		err := New(CodeValidation, "business name is required")
		assert.True(t, HasCode(err, CodeValidation))
		assert.Equal(t, "business name is required", err.Error())
	})

	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "draft save failed")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, CodeUnavailable, CodeOf(err))
		assert.Equal(t, "draft save failed", MessageOf(err))
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})

	t.Run("uncoded errors default to internal", func(t *testing.T) {
		err := fmt.Errorf("plain: %w", errors.New("boom"))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}
