package utils

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUniquePromoterCode_SkipsTakenCodes(t *testing.T) {
	calls := 0
	code, err := GenerateUniquePromoterCode(context.Background(), func(_ context.Context, code string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, code, promoterCodeLength)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(letterBytes, r), "unexpected rune %q", r)
	}
}

func TestGenerateUniquePromoterCode_GivesUp(t *testing.T) {
	_, err := GenerateUniquePromoterCode(context.Background(), func(context.Context, string) (bool, error) {
		return true, nil
	})
	assert.Error(t, err)

	boom := errors.New("db down")
	_, err = GenerateUniquePromoterCode(context.Background(), func(context.Context, string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestNewPayoutReference(t *testing.T) {
	a, b := NewPayoutReference(), NewPayoutReference()
	assert.True(t, strings.HasPrefix(a, "PO-"))
	assert.Len(t, a, 3+26)
	assert.NotEqual(t, a, b)
}
