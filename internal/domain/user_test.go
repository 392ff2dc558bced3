package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldUsername(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Bob", "bob", true},
		{"Émile", "émile", true},
		{"ÉMILE", "émile", true},
		{"Straße", "STRASSE", true},
		{"bob", "bo", false},
		{"a/b", "A/B", true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.same, FoldUsername(tc.a) == FoldUsername(tc.b), "%q vs %q", tc.a, tc.b)
	}
}
