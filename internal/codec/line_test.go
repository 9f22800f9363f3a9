package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestLineRoundTrip(t *testing.T) {
	tests := [][]byte{
		[]byte(""),
		[]byte("/multistream/1.0.0"),
		[]byte("ls"),
		[]byte("na"),
		bytes.Repeat([]byte("x"), MaxLineLength),
	}

	for _, line := range tests {
		encoded, err := EncodeLine(line)
		if err != nil {
			t.Fatalf("EncodeLine(%d bytes) error = %v", len(line), err)
		}

		decoded, tail, err := DecodeLine(encoded)
		if err != nil {
			t.Fatalf("DecodeLine() error = %v", err)
		}
		if !bytes.Equal(decoded, line) {
			t.Errorf("DecodeLine() = %q, want %q", decoded, line)
		}
		if len(tail) != 0 {
			t.Errorf("DecodeLine() tail = %v, want empty", tail)
		}

		// ParseLine operates on the already-unwrapped payload a
		// transport.Handler receives directly from its Transport.
		parsed, err := ParseLine(append(append([]byte{}, line...), '\n'))
		if err != nil {
			t.Fatalf("ParseLine() error = %v", err)
		}
		if !bytes.Equal(parsed, line) {
			t.Errorf("ParseLine() = %q, want %q", parsed, line)
		}
	}
}

func TestEncodeLineTooLong(t *testing.T) {
	_, err := EncodeLine(bytes.Repeat([]byte("x"), MaxLineLength+1))
	if err == nil {
		t.Fatal("expected ErrMaxLine")
	}
}

func TestDecodeLineMissingNewline(t *testing.T) {
	// Hand-build a varint frame whose payload doesn't end in '\n'.
	framed, err := Encode(varintSpec, []uint64{3}, []byte("abc"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	_, _, err = DecodeLine(framed)
	if err == nil {
		t.Fatal("expected ErrInvalidLine")
	}
}

func TestParseLineMissingNewline(t *testing.T) {
	_, err := ParseLine([]byte("abc"))
	if err == nil {
		t.Fatal("expected ErrInvalidLine")
	}
}

func TestLinesRoundTrip(t *testing.T) {
	lines := [][]byte{[]byte("/foo"), []byte("/bar"), []byte("/baz/1.0.0")}

	encoded, err := EncodeLines(lines)
	if err != nil {
		t.Fatalf("EncodeLines() error = %v", err)
	}

	decoded, tail, err := DecodeLines(encoded)
	if err != nil {
		t.Fatalf("DecodeLines() error = %v", err)
	}
	if len(decoded) != len(lines) {
		t.Fatalf("DecodeLines() returned %d lines, want %d", len(decoded), len(lines))
	}
	for i := range lines {
		if !bytes.Equal(decoded[i], lines[i]) {
			t.Errorf("line %d = %q, want %q", i, decoded[i], lines[i])
		}
	}
	if len(tail) != 0 {
		t.Errorf("tail = %v, want empty", tail)
	}
}

func TestLinesEmptyList(t *testing.T) {
	encoded, err := EncodeLines(nil)
	if err != nil {
		t.Fatalf("EncodeLines() error = %v", err)
	}
	decoded, _, err := DecodeLines(encoded)
	if err != nil {
		t.Fatalf("DecodeLines() error = %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("got %d lines, want 0", len(decoded))
	}
}

func TestParseLinesDirect(t *testing.T) {
	want := []string{"/foo", "/bar", "/baz/1.0.0"}

	payload := EncodeVarint(uint64(len(want)))
	for _, w := range want {
		unit, err := encodeLineUnit([]byte(w))
		if err != nil {
			t.Fatalf("encodeLineUnit() error = %v", err)
		}
		payload = append(payload, unit...)
	}

	lines, err := ParseLines(payload)
	if err != nil {
		t.Fatalf("ParseLines() error = %v", err)
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, w := range want {
		if string(lines[i]) != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestDecodeLinesMissingTrailingNewline(t *testing.T) {
	// Outer frame whose inner payload declares one line but the unit's
	// own payload isn't newline-terminated.
	unit, err := Encode(varintSpec, []uint64{4}, []byte("/bar"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	inner := append(EncodeVarint(1), unit...)
	framed, err := Encode(varintSpec, []uint64{uint64(len(inner))}, inner)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	_, _, err = DecodeLines(framed)
	if err == nil {
		t.Fatal("expected ErrInvalidLineCount (wrapped)")
	}
}

func TestDecodeLinesCountMismatchTooFew(t *testing.T) {
	// Declares 2 lines but only one line unit actually follows.
	unit, err := encodeLineUnit([]byte("/foo"))
	if err != nil {
		t.Fatalf("encodeLineUnit() error = %v", err)
	}
	inner := append(EncodeVarint(2), unit...)
	framed, err := Encode(varintSpec, []uint64{uint64(len(inner))}, inner)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	_, _, err = DecodeLines(framed)
	if err == nil || !errors.Is(err, ErrInvalidLineCount) {
		t.Fatalf("DecodeLines() error = %v, want ErrInvalidLineCount", err)
	}
}

func TestDecodeLinesCountMismatchTooMany(t *testing.T) {
	// Declares 1 line but two line units actually follow.
	unit1, err := encodeLineUnit([]byte("/foo"))
	if err != nil {
		t.Fatalf("encodeLineUnit() error = %v", err)
	}
	unit2, err := encodeLineUnit([]byte("/bar"))
	if err != nil {
		t.Fatalf("encodeLineUnit() error = %v", err)
	}
	inner := append(EncodeVarint(1), append(unit1, unit2...)...)
	framed, err := Encode(varintSpec, []uint64{uint64(len(inner))}, inner)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	_, _, err = DecodeLines(framed)
	if err == nil || !errors.Is(err, ErrInvalidLineCount) {
		t.Fatalf("DecodeLines() error = %v, want ErrInvalidLineCount", err)
	}
}

func TestParseLinesMissingCountPrefix(t *testing.T) {
	_, err := ParseLines(nil)
	if err == nil || !errors.Is(err, ErrInvalidLineCount) {
		t.Fatalf("ParseLines() error = %v, want ErrInvalidLineCount", err)
	}
}
