package color

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	saved := Enabled
	defer func() { Enabled = saved }()

	Enabled = true
	var s Stack
	var b bytes.Buffer
	require.NoError(t, s.Start(&b, Bold))
	require.NoError(t, s.Start(&b, Red))
	b.WriteString("x")
	require.NoError(t, s.End(&b))
	require.NoError(t, s.End(&b))
	assert.Equal(t, "\033[1m\033[31mx\033[1m\033[0m", b.String())

	Enabled = false
	assert.Equal(t, "y", Red.Colorize("y"))
	assert.Equal(t, "", s.Push(Bold))
}
