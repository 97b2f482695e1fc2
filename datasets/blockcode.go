package datasets

// BlockCode is the boundary with the (out-of-scope) assembler: it supplies
// the two machine-code fragments wrapped around a caller's basic block.
//
//   - Prologue must load the 16 GPRs from the Registers record pointed to by
//     the first integer-argument register (rdi, under the System V AMD64
//     ABI) and then fall through into the block.
//   - Epilogue must terminate the process cleanly, equivalent to raising
//     SIGABRT, and must never return.
//
// The real implementation of this lives in whatever assembler produces the
// caller's basic block in the first place; this package only consumes the
// two byte sequences.
type BlockCode interface {
	Prologue() []byte
	Epilogue() []byte
}

// DefaultBlockCode is a minimal, literal implementation of BlockCode: not a
// general assembler, just the hand-encoded bytes for exactly the contract
// documented above. It is what FindAccessedAddrs always uses (only the
// unexported findAccessedAddrs takes another BlockCode), and what the tests
// exercise against.
type DefaultBlockCode struct{}

// prologueBytes loads all 16 GPRs from [rdi+offset] in Registers field
// order, loading Rdi itself last since it is the base register every other
// load addresses through. Each line is one `mov reg64, [rdi+disp8]`:
//
//	48 8B 47 00   mov rax, [rdi+0x00]
//	48 8B 5F 08   mov rbx, [rdi+0x08]
//	48 8B 4F 10   mov rcx, [rdi+0x10]
//	48 8B 57 18   mov rdx, [rdi+0x18]
//	48 8B 77 20   mov rsi, [rdi+0x20]
//	48 8B 67 30   mov rsp, [rdi+0x30]
//	48 8B 6F 38   mov rbp, [rdi+0x38]
//	4C 8B 47 40   mov r8,  [rdi+0x40]
//	4C 8B 4F 48   mov r9,  [rdi+0x48]
//	4C 8B 57 50   mov r10, [rdi+0x50]
//	4C 8B 5F 58   mov r11, [rdi+0x58]
//	4C 8B 67 60   mov r12, [rdi+0x60]
//	4C 8B 6F 68   mov r13, [rdi+0x68]
//	4C 8B 77 70   mov r14, [rdi+0x70]
//	4C 8B 7F 78   mov r15, [rdi+0x78]
//	48 8B 7F 28   mov rdi, [rdi+0x28]   -- done last, clobbers the base
var prologueBytes = []byte{
	0x48, 0x8B, 0x47, 0x00,
	0x48, 0x8B, 0x5F, 0x08,
	0x48, 0x8B, 0x4F, 0x10,
	0x48, 0x8B, 0x57, 0x18,
	0x48, 0x8B, 0x77, 0x20,
	0x48, 0x8B, 0x67, 0x30,
	0x48, 0x8B, 0x6F, 0x38,
	0x4C, 0x8B, 0x47, 0x40,
	0x4C, 0x8B, 0x4F, 0x48,
	0x4C, 0x8B, 0x57, 0x50,
	0x4C, 0x8B, 0x5F, 0x58,
	0x4C, 0x8B, 0x67, 0x60,
	0x4C, 0x8B, 0x6F, 0x68,
	0x4C, 0x8B, 0x77, 0x70,
	0x4C, 0x8B, 0x7F, 0x78,
	0x48, 0x8B, 0x7F, 0x28,
}

// epilogueBytes raises SIGABRT against the current process via raw
// getpid/kill syscalls (no libc symbol resolution is available to code
// mapped bare into an anonymous page) and then spins forever as a defensive
// fallback in case delivery is somehow delayed:
//
//	B8 27 00 00 00   mov eax, 39      ; SYS_getpid
//	0F 05            syscall
//	89 C7            mov edi, eax     ; pid
//	BE 06 00 00 00   mov esi, 6       ; SIGABRT
//	B8 3E 00 00 00   mov eax, 62      ; SYS_kill
//	0F 05            syscall
//	EB FE            jmp $            ; never reached
var epilogueBytes = []byte{
	0xB8, 0x27, 0x00, 0x00, 0x00,
	0x0F, 0x05,
	0x89, 0xC7,
	0xBE, 0x06, 0x00, 0x00, 0x00,
	0xB8, 0x3E, 0x00, 0x00, 0x00,
	0x0F, 0x05,
	0xEB, 0xFE,
}

func (DefaultBlockCode) Prologue() []byte { return prologueBytes }
func (DefaultBlockCode) Epilogue() []byte { return epilogueBytes }
