package datasets

import "math/rand"

// candidateRegValues are the only values a register is ever randomised to.
// All three are small, page-aligned-ish values chosen so that using one as a
// pointer either lands on a plausible mapping or reliably faults: 0 (always
// unmapped), the same initialRegValue every register starts at, and a value
// roughly 200 times higher to perturb any computation that scales with
// register contents.
var candidateRegValues = [3]uint64{0, initialRegValue, 0x1000000}

func randomRegValue() uint64 {
	return candidateRegValues[rand.Intn(len(candidateRegValues))]
}

// randomiseRegisters is component C4. It's called between trials once a
// block has faulted with CodeInvalidArgument, on the theory that a
// differently-valued register may avoid whatever made the previous attempt
// unfixable (typically a previously-discovered block landing at an address
// that's no longer mappable).
func randomiseRegisters() Registers {
	return Registers{
		Rax: randomRegValue(), Rbx: randomRegValue(), Rcx: randomRegValue(), Rdx: randomRegValue(),
		Rsi: randomRegValue(), Rdi: randomRegValue(), Rsp: randomRegValue(), Rbp: randomRegValue(),
		R8: randomRegValue(), R9: randomRegValue(), R10: randomRegValue(), R11: randomRegValue(),
		R12: randomRegValue(), R13: randomRegValue(), R14: randomRegValue(), R15: randomRegValue(),
	}
}
