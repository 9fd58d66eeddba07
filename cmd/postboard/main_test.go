package main

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))

	// Multi-byte titles must not be cut mid-rune.
	got := truncate("héllö wörld ünicode", 8)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "héllö w…", got)
}
