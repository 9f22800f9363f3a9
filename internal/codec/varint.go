package codec

import "encoding/binary"

// EncodeVarint returns the LEB128-style unsigned varint encoding of v.
//
// Mirrors the encoding used throughout the example corpus's multiaddr
// codec (binary.PutUvarint over a MaxVarintLen64 scratch buffer).
func EncodeVarint(v uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)
	return buf[:n]
}

// DecodeVarint decodes an unsigned varint from the front of buf, returning
// the value and the number of bytes consumed. n is 0 if buf does not yet
// contain a complete varint (more bytes are needed).
func DecodeVarint(buf []byte) (value uint64, n int) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, 0
	}
	return v, n
}
