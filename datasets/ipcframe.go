package datasets

import (
	"encoding/binary"
	"golang.org/x/sys/unix"
)

// pipedData is the only message ever sent over the child->parent pipe. Its
// layout has to match internal/child/child.h's gematria_piped_data exactly,
// field for field, because the child writes it as a raw byte record.
//
//	offset 0    uint64  code_address
//	offset 8    int32   status_code
//	offset 12   [1024]byte status_message (NUL-terminated, zero-padded)
//	offset 1036 [4]byte  trailing alignment padding (always zero)
type pipedData struct {
	codeAddress  uint64
	statusCode   int32
	statusMsg    [1024]byte
}

const (
	frameSize       = 1040
	msgOffset       = 12
	msgCapacity     = 1024
	codeAddrOffset  = 0
	statusCodeOffset = 8
)

func (p *pipedData) marshal() []byte {
	buf := make([]byte, frameSize) // zero-initialised: no uninitialised padding ever leaves this process.
	binary.LittleEndian.PutUint64(buf[codeAddrOffset:], p.codeAddress)
	binary.LittleEndian.PutUint32(buf[statusCodeOffset:], uint32(p.statusCode))
	copy(buf[msgOffset:msgOffset+msgCapacity], p.statusMsg[:])
	return buf
}

func unmarshalPipedData(buf []byte) pipedData {
	var p pipedData
	p.codeAddress = binary.LittleEndian.Uint64(buf[codeAddrOffset:])
	p.statusCode = int32(binary.LittleEndian.Uint32(buf[statusCodeOffset:]))
	copy(p.statusMsg[:], buf[msgOffset:msgOffset+msgCapacity])
	return p
}

func (p *pipedData) message() string {
	n := 0
	for n < len(p.statusMsg) && p.statusMsg[n] != 0 {
		n++
	}
	return string(p.statusMsg[:n])
}

func (p *pipedData) setMessage(msg string) {
	n := copy(p.statusMsg[:len(p.statusMsg)-1], msg) // always leave a trailing NUL.
	for i := n; i < len(p.statusMsg); i++ {
		p.statusMsg[i] = 0
	}
}

// writeFrame writes exactly frameSize bytes to fd, resuming short writes
// from the current offset and retrying immediately on EINTR/EAGAIN/EWOULDBLOCK.
// It closes fd on success: the writer owns and releases its end of this
// one-shot pipe.
func writeFrame(fd int, p *pipedData) error {
	data := p.marshal()
	offset := 0
	for offset < len(data) {
		n, err := unix.Write(fd, data[offset:])
		if err != nil {
			if isRetryable(err) {
				continue
			}
			return fromErrno("write", err)
		}
		offset += n
	}
	return unix.Close(fd)
}

// readFrame mirrors writeFrame, and additionally fails with CodeInternal if
// end-of-file arrives before a full frame has been read -- the child died
// before (or while) writing.
func readFrame(fd int) (pipedData, error) {
	buf := make([]byte, frameSize)
	offset := 0
	for offset < len(buf) {
		n, err := unix.Read(fd, buf[offset:])
		if err != nil {
			if isRetryable(err) {
				continue
			}
			return pipedData{}, fromErrno("read", err)
		}
		if n == 0 {
			break
		}
		offset += n
	}
	if offset != len(buf) {
		return pipedData{}, internalf(
			"read less than expected from pipe (expected %dB, got %dB)", len(buf), offset)
	}
	unix.Close(fd)
	return unmarshalPipedData(buf), nil
}
