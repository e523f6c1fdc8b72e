package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown command", errors.New(`unknown command "foo" for "netwatch"`), true},
		{"unknown flag", errors.New(`unknown flag: --foo`), true},
		{"unknown shorthand", errors.New(`unknown shorthand flag: 'x' in -x`), true},
		{"other error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}

func TestExtractUnknownCommand(t *testing.T) {
	assert.Equal(t, "dashbord", extractUnknownCommand(errors.New(`unknown command "dashbord" for "netwatch"`)))
	assert.Empty(t, extractUnknownCommand(errors.New("unknown flag: --foo")))
}
