package id

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUUID(t *testing.T) {
	_, err := uuid.Parse(New())
	assert.NoError(t, err)
	assert.NotEqual(t, New(), New())
}

func TestTokenLength(t *testing.T) {
	tok, err := Token(32)
	require.NoError(t, err)
	assert.Len(t, tok, 43)

	other, err := Token(0)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}
