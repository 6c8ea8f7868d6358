package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	res := fmt.Errorf("resolve: %w", &ResolutionError{Kind: KindGuest, PublicID: "abc"})
	assert.True(t, IsResolutionError(res))
	assert.False(t, IsStorageError(res))
	assert.Contains(t, res.Error(), `unknown guest identifier "abc"`)

	amb := &ResolutionError{Kind: KindEvent, PublicID: "x", Ambiguous: true}
	assert.Contains(t, amb.Error(), "ambiguous event")

	cause := errors.New("connection reset")
	st := storageErr("list wishes", cause)
	assert.True(t, IsStorageError(st))
	assert.ErrorIs(t, st, cause)

	assert.True(t, IsValidationError(NewValidationError("guestId", "required")))
}
