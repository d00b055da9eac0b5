package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "single", in: "http://localhost:3000", want: []string{"http://localhost:3000"}},
		{name: "spaces", in: "http://a, http://b ,http://c", want: []string{"http://a", "http://b", "http://c"}},
		{name: "blanks", in: " ,http://a,, ", want: []string{"http://a"}},
		{name: "empty", in: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.in))
		})
	}
}
