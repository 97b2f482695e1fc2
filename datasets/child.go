//go:build linux && amd64

package datasets

import (
	"github.com/mtrofin/gematria/datasets/internal/child"
	"github.com/mtrofin/gematria/debug"
	"golang.org/x/sys/unix"
)

// forkAndTestAddresses runs exactly one trial: fork the calling process,
// have the child request tracing and then execute code.Prologue() + block +
// code.Epilogue() under the register state and previously-discovered
// blocks recorded in addrs, and have the parent supervise that child via
// ptrace until it stops or terminates. On return, addrs.AccessedBlocks has
// been updated in place if a new block was discovered, and
// addrs.CodeLocation records where the child mapped its trampoline.
//
// This is component C2 (child executor) plus the Go-side half of C3 (parent
// supervisor); the actual supervision loop lives in parent.go. The split
// exists because only one of the two processes to come out of fork() may
// safely keep running ordinary Go code -- see internal/child's package doc.
func forkAndTestAddresses(block []byte, addrs *AccessedAddrs, code BlockCode) error {
	readFD, writeFD, err := pipe()
	if err != nil {
		return err
	}

	// Everything the child needs is assembled here, before the fork, and
	// never touched again in the child branch: a forked child only keeps
	// the one OS thread that called fork, so nothing after fork() may
	// allocate, append, or otherwise lean on the Go runtime's other
	// threads. Preparing these values now means the child branch below is
	// just a single non-allocating call into cgo.
	prologue := code.Prologue()
	epilogue := code.Epilogue()
	blocks := make([]uint64, len(addrs.AccessedBlocks))
	for i, b := range addrs.AccessedBlocks {
		blocks[i] = uint64(b)
	}
	regs := child.Regs(addrs.InitialRegs)
	blockSize := uint64(addrs.BlockSize)
	codeLocation := uint64(addrs.CodeLocation)

	pid, err := debug.Fork()
	if err != nil {
		unix.Close(readFD)
		unix.Close(writeFD)
		return fromErrno("fork", err)
	}

	if pid == 0 {
		// Child.
		unix.Close(readFD)
		child.Run(writeFD, prologue, block, epilogue, blocks, blockSize, codeLocation, regs)

		// child.Run's contract says it never returns. If it somehow does,
		// exit immediately without unwinding through any more Go code.
		unix.Exit(1)
	}

	// Parent.
	unix.Close(writeFD)
	return superviseChild(pid, readFD, addrs)
}

// pipe creates an anonymous pipe, returning (readFD, writeFD).
func pipe() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, fromErrno("pipe", err)
	}
	return fds[0], fds[1], nil
}
