package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full name", "Maria Silva Costa", "Maria S. C."},
		{"single name", "Maria", "Maria"},
		{"empty", "", ""},
		{"extra whitespace", "  João   dos Santos ", "João D. S."},
		{"accented surname initial", "Ana Álvares", "Ana Á."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClaimedIdentity{Name: tt.in}.DisplayName())
		})
	}
}

func TestHashIdentifier(t *testing.T) {
	a := HashIdentifier("52998224725")
	b := HashIdentifier("52998224725")
	c := HashIdentifier("52998224726")

	assert.Equal(t, a, b, "hashing must be deterministic")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "sha-256 hex digest")
	assert.NotContains(t, a, "52998224725", "raw identifier must not survive")
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusManualReview.Terminal())
}
