package suite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixture struct{}

func (fixture) Method(ctx context.Context) error { return nil }

func TestFuncLabel(t *testing.T) {
	tests := []struct {
		name string
		fn   any
		want string
	}{
		{"nil", nil, ""},
		{"not a function", 42, ""},
		{"declared function", noop, "noop"},
		{"closure", func() {}, ""},
		{"method value", fixture{}.Method, "Method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, funcLabel(tt.fn))
		})
	}
}
