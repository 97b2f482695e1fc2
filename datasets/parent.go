//go:build linux && amd64

package datasets

import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ptraceGetSigInfo is PTRACE_GETSIGINFO. x/sys/unix doesn't wrap it (unlike
// PTRACE_GETREGS/PTRACE_CONT), so it's issued as a raw syscall instead.
const ptraceGetSigInfo = 0x4202

// linuxSigInfo mirrors just enough of struct siginfo_t (see
// bits/types/siginfo_t.h) to recover si_addr for a SIGSEGV/SIGBUS: the three
// leading int32 fields, four bytes of padding to the union's natural
// alignment, then the faulting address as the first word of the sigfault
// member. The kernel always writes a full siginfo_t, so the buffer passed to
// PTRACE_GETSIGINFO must be at least that large even though this struct only
// names the prefix we read.
type linuxSigInfo struct {
	Signo int32
	Errno int32
	Code  int32
	_     int32
	Addr  uint64
}

// sigInfoBufSize is sizeof(siginfo_t) on linux/amd64; PTRACE_GETSIGINFO
// writes the whole thing regardless of how much of it the caller reads back.
const sigInfoBufSize = 128

func ptraceGetSigInfoAddr(pid int) (uintptr, error) {
	buf := make([]byte, sigInfoBufSize)
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceGetSigInfo,
		uintptr(pid), 0, uintptr(unsafe.Pointer(&buf[0])), 0, 0)
	if errno != 0 {
		return 0, fromErrno("ptrace(PTRACE_GETSIGINFO)", errno)
	}
	info := (*linuxSigInfo)(unsafe.Pointer(&buf[0]))
	return uintptr(info.Addr), nil
}

func alignDown(x, align uintptr) uintptr {
	return x - (x % align)
}

func dumpRegs(r *unix.PtraceRegs) string {
	return fmt.Sprintf(
		"\trsp=%016x rbp=%016x rip=%016x\n"+
			"\trax=%016x rbx=%016x rcx=%016x\n"+
			"\trdx=%016x rsi=%016x rdi=%016x\n"+
			"\t r8=%016x  r9=%016x r10=%016x\n"+
			"\tr11=%016x r12=%016x r13=%016x\n"+
			"\tr14=%016x r15=%016x",
		r.Rsp, r.Rbp, r.Rip, r.Rax, r.Rbx, r.Rcx, r.Rdx, r.Rsi, r.Rdi,
		r.R8, r.R9, r.R10, r.R11, r.R12, r.R13, r.R14, r.R15)
}

// superviseChild is component C3, the parent-side half of one trial: it
// waits out the child's initial TRACEME stop, lets it run, and classifies
// whatever stop or termination follows. Whatever the outcome, it
// unconditionally kills and reaps the child before returning -- detaching
// and letting the child deliver its own fatal signal would let a SIGSEGV (an
// entirely expected outcome here) leak out and get reported by the
// controlling terminal as if something had gone wrong.
func superviseChild(pid int, pipeReadFD int, addrs *AccessedAddrs) error {
	result := superviseChildInner(pid, addrs)

	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		logrus.WithError(err).WithField("pid", pid).Warn("failed to kill child")
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		logrus.WithError(err).WithField("pid", pid).Warn("failed to reap child")
	}

	if result != nil {
		unix.Close(pipeReadFD)
		return result
	}

	frame, err := readFrame(pipeReadFD)
	if err != nil {
		unix.Close(pipeReadFD)
		return err
	}
	if Code(frame.statusCode) != CodeOK {
		return &StatusError{Code: Code(frame.statusCode), Message: frame.message()}
	}
	addrs.CodeLocation = uintptr(frame.codeAddress)
	return nil
}

func superviseChildInner(pid int, addrs *AccessedAddrs) error {
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return fromErrno("wait4", err)
	}
	if !ws.Stopped() {
		return internalf("child terminated with unexpected status: %v", ws)
	}

	// TODO(orodley): since no ptrace options are set, this initial stop and
	// continue may be unnecessary -- could the child just TRACEME and keep
	// going without an initial SIGSTOP?
	if err := unix.PtraceCont(pid, 0); err != nil {
		return fromErrno("ptrace(PTRACE_CONT)", err)
	}

	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return fromErrno("wait4", err)
	}
	if !ws.Stopped() {
		return internalf("child terminated with unexpected status: %v", ws)
	}

	sig := ws.StopSignal()
	switch sig {
	case unix.SIGSEGV:
		addr, err := ptraceGetSigInfoAddr(pid)
		if err != nil {
			return err
		}
		addrs.addBlock(alignDown(addr, addrs.BlockSize))
		return nil

	case unix.SIGABRT:
		// The block ran to completion and hit our epilogue, which exits
		// cleanly. No new memory was accessed.
		return nil

	case unix.SIGFPE:
		return invalidArgumentf("floating point exception")

	case unix.SIGBUS:
		addr, _ := ptraceGetSigInfoAddr(pid)
		var regs unix.PtraceRegs
		unix.PtraceGetRegs(pid, &regs)
		return internalf("child stopped with unexpected signal: %v, address 0x%x\n%s",
			sig, addr, dumpRegs(&regs))

	default:
		var regs unix.PtraceRegs
		unix.PtraceGetRegs(pid, &regs)
		return internalf("child stopped with unexpected signal: %v\n%s", sig, dumpRegs(&regs))
	}
}
