// Package datasets discovers, by forking and ptracing the calling process,
// the set of memory addresses an arbitrary x86-64 basic block reads or
// writes when run with a chosen initial register state. It is the Go
// counterpart of gematria's find_accessed_addrs: FindAccessedAddrs is the
// public entry point, and everything else in this package exists to make
// that one call correct and bounded.
package datasets

import "fmt"

// Registers holds the 16 general-purpose x86-64 integer registers, laid out
// to match the prologue's expectation: a pointer to a Registers value is
// passed in the first integer-argument register (rdi under the System V
// ABI), and the prologue loads each field into its namesake register before
// falling through into the caller-supplied block.
type Registers struct {
	Rax, Rbx, Rcx, Rdx uint64
	Rsi, Rdi, Rsp, Rbp uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
}

// initialRegValue is "almost the lowest mappable page" -- low enough that a
// small multiplication or addition still lands in addressable memory, high
// enough to survive small negative displacements taken off of it.
const initialRegValue = 0x15000

func defaultRegisters() Registers {
	return Registers{
		Rax: initialRegValue, Rbx: initialRegValue, Rcx: initialRegValue, Rdx: initialRegValue,
		Rsi: initialRegValue, Rdi: initialRegValue, Rsp: initialRegValue, Rbp: initialRegValue,
		R8: initialRegValue, R9: initialRegValue, R10: initialRegValue, R11: initialRegValue,
		R12: initialRegValue, R13: initialRegValue, R14: initialRegValue, R15: initialRegValue,
	}
}

// AccessedAddrs is the iterate of the fixed-point convergence loop: the set
// of page-aligned addresses a block has been observed to fault on, the
// register state under which that was observed, and the virtual address the
// trampoline was mapped at.
type AccessedAddrs struct {
	// CodeLocation is the address the trampoline is mapped at. Zero means
	// "let the child pick a default, or let the kernel choose if that's busy".
	CodeLocation uintptr

	// BlockSize is the granularity at which fault addresses are bucketed;
	// always the OS page size for the lifetime of one FindAccessedAddrs call.
	BlockSize uintptr

	// AccessedBlocks is an ordered sequence with set semantics: page-aligned
	// addresses observed to fault, in discovery order, each appearing once.
	AccessedBlocks []uintptr

	// InitialRegs is the register state loaded before the block runs.
	InitialRegs Registers
}

// hasBlock reports whether addr is already present in AccessedBlocks.
func (a *AccessedAddrs) hasBlock(addr uintptr) bool {
	for _, b := range a.AccessedBlocks {
		if b == addr {
			return true
		}
	}
	return false
}

// addBlock appends addr if it isn't already present, preserving the
// set-with-insertion-order semantics required of AccessedBlocks.
func (a *AccessedAddrs) addBlock(addr uintptr) {
	if !a.hasBlock(addr) {
		a.AccessedBlocks = append(a.AccessedBlocks, addr)
	}
}

func (a AccessedAddrs) String() string {
	return fmt.Sprintf("AccessedAddrs{code=0x%x, blocksize=%d, blocks=%d}",
		a.CodeLocation, a.BlockSize, len(a.AccessedBlocks))
}
