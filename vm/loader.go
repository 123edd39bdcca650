package vm

import "fmt"

// MemSize is the number of addressable words: 32,768, i.e. 2^15.
const MemSize = 1 << 15

// maxBytes is the largest binary the loader will accept: one byte pair per
// memory word.
const maxBytes = MemSize * 2

// DecodeProgram turns a raw little-endian byte stream into words, one word
// per 16-bit pair: for pair (low, high) the word is (high<<8)|low. An odd
// trailing byte is zero-padded into a final word rather than rejected (see
// the "odd-length binary" design note); oddTrailing reports whether that
// happened so the CLI host can warn about it without the VM itself carrying
// any notion of logging.
//
// The returned slice never exceeds MemSize words; a longer input is
// rejected with ErrProgramTooLarge before any byte is interpreted.
func DecodeProgram(data []byte) (words []uint16, oddTrailing bool, err error) {
	if len(data) > maxBytes {
		return nil, false, fmt.Errorf("%w: %d bytes exceeds %d byte capacity", ErrProgramTooLarge, len(data), maxBytes)
	}

	n := len(data) / 2
	oddTrailing = len(data)%2 == 1
	if oddTrailing {
		n++
	}

	words = make([]uint16, n)
	for i := 0; i < len(data)/2; i++ {
		words[i] = uint16(data[2*i]) | uint16(data[2*i+1])<<8
	}
	if oddTrailing {
		words[n-1] = uint16(data[len(data)-1])
	}
	return words, oddTrailing, nil
}
