// Package frame implements the binary chunk frame: the fixed big-endian
// layout that bundles a chunk's index, nonce, authentication tag and
// ciphertext into one blob. The frame is what the envelope layer wraps
// before persistence.
//
// Layout (all integers big-endian):
//
//	4  bytes  magic "SDC1"
//	4  bytes  chunk index
//	2  bytes  nonce length, then nonce
//	2  bytes  tag length, then tag
//	4  bytes  ciphertext length, then ciphertext
package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/stormdrive/stormdrive/internal/common"
)

// Magic identifies a v1 chunk frame.
var Magic = []byte("SDC1")

const headerLen = 4 + 4 + 2 + 2 + 4

// Chunk is the decoded form of a frame.
type Chunk struct {
	Index      uint32
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// Encode serializes the quadruple into the v1 frame layout. Nonce and tag
// must fit a 16-bit length prefix and the ciphertext a 32-bit one.
func Encode(index uint32, nonce, tag, ciphertext []byte) ([]byte, error) {
	if len(nonce) == 0 || len(nonce) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: nonce length %d out of range", common.ErrInvalid, len(nonce))
	}
	if len(tag) == 0 || len(tag) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: tag length %d out of range", common.ErrInvalid, len(tag))
	}
	if uint64(len(ciphertext)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: ciphertext too large", common.ErrInvalid)
	}

	buf := make([]byte, 0, headerLen+len(nonce)+len(tag)+len(ciphertext))
	buf = append(buf, Magic...)
	buf = binary.BigEndian.AppendUint32(buf, index)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(nonce)))
	buf = append(buf, nonce...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(tag)))
	buf = append(buf, tag...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(ciphertext)))
	buf = append(buf, ciphertext...)
	return buf, nil
}

// Decode parses a frame. Every length prefix is checked against the
// remaining buffer before slicing, so truncated or malformed input fails
// closed with common.ErrCorruption instead of reading out of bounds.
func Decode(blob []byte) (*Chunk, error) {
	if len(blob) < headerLen {
		return nil, fmt.Errorf("%w: chunk frame too small", common.ErrCorruption)
	}

	off := 0
	if string(blob[off:off+4]) != string(Magic) {
		return nil, fmt.Errorf("%w: bad chunk frame magic", common.ErrCorruption)
	}
	off += 4

	index := binary.BigEndian.Uint32(blob[off:])
	off += 4

	nonceLen := int(binary.BigEndian.Uint16(blob[off:]))
	off += 2
	if nonceLen == 0 || off+nonceLen > len(blob) {
		return nil, fmt.Errorf("%w: invalid nonce length in frame", common.ErrCorruption)
	}
	nonce := blob[off : off+nonceLen]
	off += nonceLen

	if off+2 > len(blob) {
		return nil, fmt.Errorf("%w: truncated chunk frame", common.ErrCorruption)
	}
	tagLen := int(binary.BigEndian.Uint16(blob[off:]))
	off += 2
	if tagLen == 0 || off+tagLen > len(blob) {
		return nil, fmt.Errorf("%w: invalid tag length in frame", common.ErrCorruption)
	}
	tag := blob[off : off+tagLen]
	off += tagLen

	if off+4 > len(blob) {
		return nil, fmt.Errorf("%w: truncated chunk frame", common.ErrCorruption)
	}
	ctLen := int(binary.BigEndian.Uint32(blob[off:]))
	off += 4
	if ctLen < 0 || off+ctLen > len(blob) {
		return nil, fmt.Errorf("%w: invalid ciphertext length in frame", common.ErrCorruption)
	}
	ciphertext := blob[off : off+ctLen]

	return &Chunk{
		Index:      index,
		Nonce:      nonce,
		Tag:        tag,
		Ciphertext: ciphertext,
	}, nil
}
