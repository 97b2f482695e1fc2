//go:build linux && amd64

package datasets

import (
	"github.com/mtrofin/gematria/msg"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// maxRetries bounds how many times the driver will randomise registers and
// retry after a CodeInvalidArgument trial before giving up and surfacing
// that error to the caller.
const maxRetries = 100

// trace is the per-trial fire-hose: too chatty for logrus's default levels.
// Its Trace output is on only when DEBUG=+all is set; its Warning output
// (one line per fixable failure) is always on.
var trace = msg.StdChan()

// FindAccessedAddrs is the public entry point (component C5, the
// convergence driver, plus whatever of C1-C4 it takes to get there): given a
// basic block of raw x86-64 machine code, it discovers the set of
// page-aligned memory addresses that block reads or writes when executed
// with some initial register state, by repeatedly forking and ptracing the
// calling process.
//
// Each trial maps every block discovered by previous trials (so a block's
// second access doesn't just re-fault on the same address) and runs the
// code; the first trial uses defaultRegisters (every GPR set to
// initialRegValue). If a
// trial comes back CodeInvalidArgument -- a floating point exception, or a
// previously-discovered block that's no longer mappable at its recorded
// address -- the discovered set is reset and the registers are randomised
// before retrying, up to maxRetries times. The loop otherwise continues
// until a trial discovers no block beyond what was already known.
func FindAccessedAddrs(block []byte) (*AccessedAddrs, error) {
	return findAccessedAddrs(block, DefaultBlockCode{})
}

// findAccessedAddrs is FindAccessedAddrs parameterised over BlockCode, kept
// unexported so tests can supply deterministic prologue/epilogue bytes
// without widening the public API.
func findAccessedAddrs(block []byte, code BlockCode) (*AccessedAddrs, error) {
	addrs := &AccessedAddrs{
		BlockSize:   uintptr(unix.Getpagesize()),
		InitialRegs: defaultRegisters(),
	}

	retries := 0
	for {
		before := len(addrs.AccessedBlocks)
		trace.Trace("retry %d: %d blocks known", retries, before)

		err := forkAndTestAddresses(block, addrs, code)
		if se, ok := err.(*StatusError); ok && se.Code == CodeInvalidArgument {
			logrus.WithFields(logrus.Fields{
				"retry": retries,
				"error": se,
			}).Debug("trial failed with a fixable error, randomising registers")
			trace.Warning("retry %d: %s, randomising registers", retries, se)

			if retries >= maxRetries {
				return nil, err
			}
			addrs.AccessedBlocks = nil
			addrs.InitialRegs = randomiseRegisters()
			retries++
			continue
		}
		if err != nil {
			return nil, err
		}

		if len(addrs.AccessedBlocks) == before {
			trace.Trace("converged after %d retries with %d blocks", retries, before)
			return addrs, nil
		}
	}
}
