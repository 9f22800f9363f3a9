package codec

import (
	"errors"
	"fmt"
)

// MaxLineLength is the largest single line (excluding the trailing
// newline) the line codec will encode or accept.
const MaxLineLength = 64 * 1024

var (
	// ErrMaxLine is returned when a line exceeds MaxLineLength.
	ErrMaxLine = errors.New("codec: line exceeds max length")
	// ErrInvalidLine is returned when a line is not newline-terminated, or
	// when its varint-length-prefixed unit is incomplete.
	ErrInvalidLine = errors.New("codec: line missing terminating newline")
	// ErrInvalidLines is returned when a multi-line payload's outer frame
	// is incomplete.
	ErrInvalidLines = errors.New("codec: invalid lines payload")
	// ErrInvalidLineCount is returned when a multi-line payload's count
	// prefix is missing, or disagrees with the number of line units that
	// actually follow it. A malformed line unit inside the payload is also
	// reported as ErrInvalidLineCount, wrapping the unit's own error text.
	ErrInvalidLineCount = errors.New("codec: invalid line count")
)

var varintSpec = PacketSpec{LenVarint}

func encodeLineInner(line []byte) ([]byte, error) {
	if len(line) > MaxLineLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMaxLine, len(line))
	}
	withNL := make([]byte, len(line)+1)
	copy(withNL, line)
	withNL[len(line)] = '\n'
	return withNL, nil
}

// ParseLine validates and strips the trailing newline from a payload that
// has already had its outer varint frame removed: the shape a
// transport.Handler receives once its Transport decodes with a [varint]
// packet spec.
func ParseLine(buf []byte) ([]byte, error) {
	if len(buf) == 0 || buf[len(buf)-1] != '\n' {
		return nil, ErrInvalidLine
	}
	if len(buf)-1 > MaxLineLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMaxLine, len(buf)-1)
	}
	return buf[:len(buf)-1], nil
}

// encodeLineUnit produces one varint-length-prefixed, newline-terminated
// line: the same on-wire unit EncodeLine emits for a standalone line, reused
// as one member of an encode_lines sequence.
func encodeLineUnit(line []byte) ([]byte, error) {
	inner, err := encodeLineInner(line)
	if err != nil {
		return nil, err
	}
	return Encode(varintSpec, []uint64{uint64(len(inner))}, inner)
}

// decodeLineUnit reads one varint-length-prefixed line unit from the front
// of buf, returning the line, the number of bytes consumed, and any error.
func decodeLineUnit(buf []byte) (line []byte, n int, err error) {
	res, more, err := Decode(varintSpec, buf)
	if err != nil {
		return nil, 0, err
	}
	if more != nil {
		return nil, 0, fmt.Errorf("%w: incomplete line unit, need %d more bytes", ErrInvalidLine, more.NHint)
	}
	line, err = ParseLine(res.Payload)
	if err != nil {
		return nil, 0, err
	}
	return line, len(buf) - len(res.Tail), nil
}

// ParseLines splits an already-unwrapped encode_lines payload: a varint
// line count followed by that many varint-length-prefixed line units. It is
// the shape a transport.Handler receives once its Transport decodes with a
// [varint] packet spec, i.e. with the outer frame already stripped.
func ParseLines(buf []byte) ([][]byte, error) {
	count, n := DecodeVarint(buf)
	if n == 0 {
		return nil, fmt.Errorf("%w: missing count prefix", ErrInvalidLineCount)
	}
	buf = buf[n:]

	capHint := count
	if capHint > 1024 {
		capHint = 1024
	}
	out := make([][]byte, 0, capHint)
	for i := uint64(0); i < count; i++ {
		line, consumed, err := decodeLineUnit(buf)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidLineCount, i, err)
		}
		out = append(out, line)
		buf = buf[consumed:]
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after declared count of %d", ErrInvalidLineCount, len(buf), count)
	}
	return out, nil
}

// EncodeLine wraps line in a single varint-length-prefixed frame: the
// complete on-wire form of a one-line multistream message.
func EncodeLine(line []byte) ([]byte, error) {
	return encodeLineUnit(line)
}

// DecodeLine reads one varint-length-prefixed frame from the front of buf
// and parses its payload as a single line, returning whatever bytes
// follow the frame. For a payload a transport.Handler receives directly
// (its Transport has already stripped the outer frame), use ParseLine.
func DecodeLine(buf []byte) (line []byte, tail []byte, err error) {
	line, n, err := decodeLineUnit(buf)
	if err != nil {
		return nil, nil, err
	}
	return line, buf[n:], nil
}

// EncodeLines prepends a varint line count to the concatenation of each
// line's own varint-length-prefixed unit, then wraps the whole thing in one
// outer varint frame: varint(count) followed by len(lines) EncodeLine-shaped
// units, all inside a single length-prefixed frame.
func EncodeLines(lines [][]byte) ([]byte, error) {
	inner := EncodeVarint(uint64(len(lines)))
	for _, l := range lines {
		unit, err := encodeLineUnit(l)
		if err != nil {
			return nil, err
		}
		inner = append(inner, unit...)
	}
	return Encode(varintSpec, []uint64{uint64(len(inner))}, inner)
}

// DecodeLines reads one varint-length-prefixed frame from the front of buf
// and splits its payload into lines per ParseLines, returning whatever
// bytes follow the frame. For a payload received directly from a
// transport.Handler, use ParseLines.
func DecodeLines(buf []byte) (lines [][]byte, tail []byte, err error) {
	res, more, err := Decode(varintSpec, buf)
	if err != nil {
		return nil, nil, err
	}
	if more != nil {
		return nil, nil, fmt.Errorf("%w: incomplete frame, need %d more bytes", ErrInvalidLines, more.NHint)
	}
	lines, err = ParseLines(res.Payload)
	if err != nil {
		return nil, nil, err
	}
	return lines, res.Tail, nil
}
