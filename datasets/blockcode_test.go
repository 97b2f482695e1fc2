package datasets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultBlockCodeLengths(t *testing.T) {
	var c DefaultBlockCode
	require.Len(t, c.Prologue(), 64, "one 4-byte mov per GPR")
	require.NotEmpty(t, c.Epilogue())
}

func TestDefaultBlockCodeLoadsRdiLast(t *testing.T) {
	var c DefaultBlockCode
	p := c.Prologue()
	// The last instruction must be the rdi load (48 8B 7F 28): rdi is the
	// addressing base for every other load, so it has to be clobbered last.
	require.Equal(t, []byte{0x48, 0x8B, 0x7F, 0x28}, p[len(p)-4:])
}
