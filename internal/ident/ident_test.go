package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Dog":     "DOG",
		" dog ":   "DOG",
		"OwnedBy": "OWNEDBY",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in))
	}
}

func TestRelIDFrom(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{1, "R1"},
		{"1", "R1"},
		{"R1", "R1"},
		{"r12", "R12"},
		{int64(7), "R7"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RelIDFrom(c.in))
	}
}
