//go:build linux && amd64

package datasets

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAlignDown(t *testing.T) {
	require.Equal(t, uintptr(0x50010000), alignDown(0x50010aaa, 0x1000))
	require.Equal(t, uintptr(0x50010000), alignDown(0x50010000, 0x1000))
	require.Equal(t, uintptr(0), alignDown(0xfff, 0x1000))
}

func TestDumpRegsIncludesAllGPRs(t *testing.T) {
	var regs unix.PtraceRegs
	s := dumpRegs(&regs)
	for _, want := range []string{"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rsp", "rbp",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15", "rip"} {
		require.Contains(t, s, want)
	}
}
