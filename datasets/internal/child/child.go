//go:build linux && amd64

// Package child holds the cgo glue for the child side of one trial (C2,
// the child executor, and C6, the memory-safe byte mover). It exists
// because a process forked via a raw libc fork() retains only the forking
// OS thread -- the rest of the Go runtime's scheduler and GC threads simply
// aren't there -- so nothing in the child branch may run ordinary
// allocating Go code. Everything from the trace-me request through jumping
// into the trampoline happens in child.c, which never calls back into Go.
package child

/*
#include "child.h"
#include <stdlib.h>
*/
import "C"
import "unsafe"

// Regs mirrors datasets.Registers field-for-field (see child.h's
// gematria_regs); kept as a separate type here rather than importing
// datasets, since datasets is this package's parent and importing it back
// would be circular.
type Regs struct {
	Rax, Rbx, Rcx, Rdx uint64
	Rsi, Rdi, Rsp, Rbp uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
}

// Run hands off to gematria_run_child. It only returns if that call
// somehow returns without the process having exited or aborted, which the
// contract says cannot happen; callers should treat a return as fatal.
func Run(pipeWriteFD int, prologue, block, epilogue []byte,
	accessedBlocks []uint64, blockSize, codeLocation uint64, regs Regs) {

	var prologuePtr, blockPtr, epiloguePtr *C.uint8_t
	if len(prologue) > 0 {
		prologuePtr = (*C.uint8_t)(unsafe.Pointer(&prologue[0]))
	}
	if len(block) > 0 {
		blockPtr = (*C.uint8_t)(unsafe.Pointer(&block[0]))
	}
	if len(epilogue) > 0 {
		epiloguePtr = (*C.uint8_t)(unsafe.Pointer(&epilogue[0]))
	}

	var blocksPtr *C.uint64_t
	if len(accessedBlocks) > 0 {
		blocksPtr = (*C.uint64_t)(unsafe.Pointer(&accessedBlocks[0]))
	}

	cregs := C.gematria_regs{
		rax: C.uint64_t(regs.Rax), rbx: C.uint64_t(regs.Rbx),
		rcx: C.uint64_t(regs.Rcx), rdx: C.uint64_t(regs.Rdx),
		rsi: C.uint64_t(regs.Rsi), rdi: C.uint64_t(regs.Rdi),
		rsp: C.uint64_t(regs.Rsp), rbp: C.uint64_t(regs.Rbp),
		r8: C.uint64_t(regs.R8), r9: C.uint64_t(regs.R9),
		r10: C.uint64_t(regs.R10), r11: C.uint64_t(regs.R11),
		r12: C.uint64_t(regs.R12), r13: C.uint64_t(regs.R13),
		r14: C.uint64_t(regs.R14), r15: C.uint64_t(regs.R15),
	}

	C.gematria_run_child(
		C.int(pipeWriteFD),
		prologuePtr, C.size_t(len(prologue)),
		blockPtr, C.size_t(len(block)),
		epiloguePtr, C.size_t(len(epilogue)),
		blocksPtr, C.size_t(len(accessedBlocks)),
		C.uint64_t(blockSize),
		C.uint64_t(codeLocation),
		&cregs,
	)
}
