//go:build linux && amd64

package datasets

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

// testBlockCode wraps DefaultBlockCode's prologue/epilogue around whatever
// block bytes a scenario supplies, so these tests don't depend on a real
// assembler (out of scope for this package) while still exercising the real
// fork+ptrace path end to end.
type testBlockCode struct{}

func (testBlockCode) Prologue() []byte { return DefaultBlockCode{}.Prologue() }
func (testBlockCode) Epilogue() []byte { return DefaultBlockCode{}.Epilogue() }

// S1: a block that immediately falls through to the epilogue touches
// nothing.
func TestFindAccessedAddrs_EmptyBlockTouchesNothing(t *testing.T) {
	addrs, err := findAccessedAddrs(nil, testBlockCode{})
	require.NoError(t, err)
	require.Empty(t, addrs.AccessedBlocks)
	require.NotZero(t, addrs.CodeLocation)
}

// S2: mov rax, [rdi+0x50000000] ; with rdi loaded from the default register
// state (0x15000) faults on page_align(0x15000 + 0x50000000).
func TestFindAccessedAddrs_OffsetLoadFaultsOnExpectedPage(t *testing.T) {
	// 48 8B 87 00 00 00 50   mov rax, [rdi+0x50000000]
	block := []byte{0x48, 0x8B, 0x87, 0x00, 0x00, 0x00, 0x50}

	addrs, err := findAccessedAddrs(block, testBlockCode{})
	require.NoError(t, err)
	require.Len(t, addrs.AccessedBlocks, 1)

	want := alignDown(uintptr(initialRegValue+0x50000000), addrs.BlockSize)
	require.Equal(t, want, addrs.AccessedBlocks[0])
}

// S3: two loads through different registers that land on the same page
// dedup to a single accessed block.
func TestFindAccessedAddrs_SamePageDedups(t *testing.T) {
	// 48 8B 07         mov rax, [rdi]
	// 48 8B 1E         mov rbx, [rsi]
	block := []byte{0x48, 0x8B, 0x07, 0x48, 0x8B, 0x1E}

	addrs, err := findAccessedAddrs(block, testBlockCode{})
	require.NoError(t, err)
	require.Len(t, addrs.AccessedBlocks, 1)
}

// S4: an illegal instruction is not one of the recognised fixable signals,
// so it surfaces as CodeInternal with a register dump in the message.
func TestFindAccessedAddrs_IllegalInstructionIsInternal(t *testing.T) {
	block := []byte{0x0F, 0x0B} // ud2

	_, err := findAccessedAddrs(block, testBlockCode{})
	require.Error(t, err)
	se, ok := err.(*StatusError)
	require.True(t, ok)
	require.Equal(t, CodeInternal, se.Code)
}

// S5: xor rcx, rcx ; div rcx zeroes rcx itself before dividing, so every
// trial raises SIGFPE whatever registers the randomiser picks, and the driver
// gives up with CodeInvalidArgument once maxRetries randomisations are used
// up. The test accepts a nil error; any error must be CodeInvalidArgument.
func TestFindAccessedAddrs_DivByZeroIsInvalidArgumentOrConverges(t *testing.T) {
	// 48 31 C9      xor rcx, rcx
	// 48 F7 F1      div rcx
	block := []byte{0x48, 0x31, 0xC9, 0x48, 0xF7, 0xF1}

	_, err := findAccessedAddrs(block, testBlockCode{})
	if err == nil {
		return
	}
	se, ok := err.(*StatusError)
	require.True(t, ok)
	require.Equal(t, CodeInvalidArgument, se.Code)
}

// S6: a block that writes to a page it just caused to be mapped, then reads
// it back, doesn't fault a second time and so reports only the one block.
func TestFindAccessedAddrs_WriteThenReadSamePage(t *testing.T) {
	// 48 C7 07 2A 00 00 00   mov qword [rdi], 0x2a
	// 48 8B 07               mov rax, [rdi]
	block := []byte{
		0x48, 0xC7, 0x07, 0x2A, 0x00, 0x00, 0x00,
		0x48, 0x8B, 0x07,
	}

	addrs, err := findAccessedAddrs(block, testBlockCode{})
	require.NoError(t, err)
	require.Len(t, addrs.AccessedBlocks, 1)
}

// Invariant 1: every returned block is block_size-aligned and unique.
func TestFindAccessedAddrs_BlocksAreAlignedAndUnique(t *testing.T) {
	block := []byte{0x48, 0x8B, 0x07, 0x48, 0x8B, 0x1E} // same as S3

	addrs, err := findAccessedAddrs(block, testBlockCode{})
	require.NoError(t, err)

	seen := map[uintptr]bool{}
	for _, b := range addrs.AccessedBlocks {
		require.Zero(t, b%addrs.BlockSize)
		require.False(t, seen[b], "duplicate accessed block %#x", b)
		seen[b] = true
	}
}

// Invariant 2/6: re-running the same block with the same registers produces
// an equal-as-a-set accessed_blocks.
func TestFindAccessedAddrs_RepeatedRunsAgree(t *testing.T) {
	block := []byte{0x48, 0x8B, 0x07} // mov rax, [rdi]

	first, err := findAccessedAddrs(block, testBlockCode{})
	require.NoError(t, err)
	second, err := findAccessedAddrs(block, testBlockCode{})
	require.NoError(t, err)

	less := func(a, b uintptr) bool { return a < b }
	if diff := cmp.Diff(first.AccessedBlocks, second.AccessedBlocks, cmpopts.SortSlices(less)); diff != "" {
		t.Errorf("accessed blocks differ between runs (-first +second):\n%s", diff)
	}
}
