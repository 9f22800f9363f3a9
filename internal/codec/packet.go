// Package codec implements the stream runtime's wire framing: a
// configurable length-prefixed packet codec and a newline-terminated line
// codec layered on top of a varint frame, used by the multistream
// negotiator.
package codec

import (
	"errors"
	"fmt"
)

// LengthKind identifies the width/encoding of one header length field.
type LengthKind int

const (
	LenU8 LengthKind = iota
	LenU16
	LenU32
	LenU64
	LenVarint
)

func (k LengthKind) String() string {
	switch k {
	case LenU8:
		return "u8"
	case LenU16:
		return "u16"
	case LenU32:
		return "u32"
	case LenU64:
		return "u64"
	case LenVarint:
		return "varint"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// maxValue returns the largest value representable by a fixed-width kind.
// Varint has no fixed ceiling (bounded only by uint64).
func (k LengthKind) maxValue() uint64 {
	switch k {
	case LenU8:
		return 1<<8 - 1
	case LenU16:
		return 1<<16 - 1
	case LenU32:
		return 1<<32 - 1
	default:
		return 1<<64 - 1
	}
}

// PacketSpec is an ordered sequence of length-field descriptors defining a
// framing header. A nil/empty spec means "no framing header": Decode hands
// back the entire input buffer as a single packet.
type PacketSpec []LengthKind

// Equal reports whether two specs describe the same framing.
func (s PacketSpec) Equal(other PacketSpec) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// ErrLengthOverflow is returned by Encode when a supplied length does not
// fit the width of its descriptor.
var ErrLengthOverflow = errors.New("codec: length overflow for descriptor")

// Encode concatenates the encoded header lengths (in spec order, each using
// its descriptor's width/encoding) with payload. The last entry in lengths
// is conventionally the payload length, but Encode trusts the caller's
// values verbatim; Decode is what interprets the last field specially.
func Encode(spec PacketSpec, lengths []uint64, payload []byte) ([]byte, error) {
	if len(lengths) != len(spec) {
		return nil, fmt.Errorf("codec: expected %d length fields, got %d", len(spec), len(lengths))
	}

	var header []byte
	for i, kind := range spec {
		v := lengths[i]
		if kind != LenVarint && v > kind.maxValue() {
			return nil, fmt.Errorf("%w: field %d (%s) value %d", ErrLengthOverflow, i, kind, v)
		}
		header = append(header, encodeField(kind, v)...)
	}

	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out, nil
}

func encodeField(kind LengthKind, v uint64) []byte {
	switch kind {
	case LenU8:
		return []byte{byte(v)}
	case LenU16:
		return []byte{byte(v >> 8), byte(v)}
	case LenU32:
		return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	case LenU64:
		return []byte{
			byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
			byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
		}
	default: // LenVarint
		return EncodeVarint(v)
	}
}

func fieldWidth(kind LengthKind) int {
	switch kind {
	case LenU8:
		return 1
	case LenU16:
		return 2
	case LenU32:
		return 4
	case LenU64:
		return 8
	default:
		return -1 // variable width; caller must decode to know
	}
}

func decodeField(kind LengthKind, buf []byte) (value uint64, n int, ok bool) {
	if kind == LenVarint {
		v, n := DecodeVarint(buf)
		if n == 0 {
			return 0, 0, false
		}
		return v, n, true
	}

	w := fieldWidth(kind)
	if len(buf) < w {
		return 0, 0, false
	}
	var v uint64
	for i := 0; i < w; i++ {
		v = v<<8 | uint64(buf[i])
	}
	return v, w, true
}

// DecodeResult is the successful outcome of Decode: the opaque header
// fields (in spec order, including the payload length as the last entry),
// the extracted payload, and whatever bytes remain after the frame.
type DecodeResult struct {
	HeaderLengths []uint64
	Payload       []byte
	Tail          []byte
}

// NeedMore is returned by Decode when input does not yet hold a complete
// frame. NHint is a lower bound on how many additional bytes are needed;
// implementations may report an approximation.
type NeedMore struct {
	NHint int
}

// Decode parses one frame from the front of input per spec. On success it
// returns a *DecodeResult. If input is short of a complete frame it returns
// a *NeedMore. Decode never mutates input.
func Decode(spec PacketSpec, input []byte) (*DecodeResult, *NeedMore, error) {
	if len(spec) == 0 {
		// No framing header: the whole buffer is one packet.
		return &DecodeResult{Payload: input, Tail: nil}, nil, nil
	}

	headerLengths := make([]uint64, len(spec))
	off := 0
	for i, kind := range spec {
		v, n, ok := decodeField(kind, input[off:])
		if !ok {
			// Lower-bound hint: at least one more byte for varint fields,
			// the remaining fixed width otherwise.
			hint := 1
			if w := fieldWidth(kind); w > 0 {
				hint = w - len(input[off:])
				if hint < 1 {
					hint = 1
				}
			}
			return nil, &NeedMore{NHint: hint}, nil
		}
		headerLengths[i] = v
		off += n
	}

	payloadLen := headerLengths[len(headerLengths)-1]
	remaining := uint64(len(input) - off)
	if remaining < payloadLen {
		return nil, &NeedMore{NHint: int(payloadLen - remaining)}, nil
	}

	payload := input[off : off+int(payloadLen)]
	tail := input[off+int(payloadLen):]
	return &DecodeResult{HeaderLengths: headerLengths, Payload: payload, Tail: tail}, nil, nil
}
