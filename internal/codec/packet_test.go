package codec

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		spec    PacketSpec
		lengths []uint64
		payload []byte
	}{
		{"u8 header", PacketSpec{LenU8}, []uint64{5}, []byte("hello")},
		{"u16 header", PacketSpec{LenU16}, []uint64{3}, []byte("abc")},
		{"u32 header", PacketSpec{LenU32}, []uint64{0}, nil},
		{"varint header", PacketSpec{LenVarint}, []uint64{300}, make([]byte, 300)},
		{"multi-field header", PacketSpec{LenU8, LenU16}, []uint64{7, 4}, []byte("data")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.spec, tt.lengths, tt.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			res, more, err := Decode(tt.spec, encoded)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if more != nil {
				t.Fatalf("Decode() reported NeedMore unexpectedly: %+v", more)
			}
			if len(res.Tail) != 0 {
				t.Errorf("Tail = %v, want empty", res.Tail)
			}
			if len(res.Payload) != len(tt.payload) {
				t.Errorf("Payload length = %d, want %d", len(res.Payload), len(tt.payload))
			}
			for i, v := range tt.lengths {
				if res.HeaderLengths[i] != v {
					t.Errorf("HeaderLengths[%d] = %d, want %d", i, res.HeaderLengths[i], v)
				}
			}
		})
	}
}

func TestEncodeLengthOverflow(t *testing.T) {
	_, err := Encode(PacketSpec{LenU8}, []uint64{256}, nil)
	if err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestDecodeNeedsMore(t *testing.T) {
	// A u32 header claiming 10 bytes of payload, but only 2 are present.
	spec := PacketSpec{LenU32}
	full, err := Encode(spec, []uint64{10}, make([]byte, 10))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	short := full[:6] // 4-byte header + 2 payload bytes
	res, more, err := Decode(spec, short)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if res != nil {
		t.Fatalf("Decode() returned a result for a short buffer: %+v", res)
	}
	if more == nil || more.NHint < 1 {
		t.Fatalf("Decode() NeedMore = %+v, want a positive hint", more)
	}
}

func TestDecodeEmptySpecYieldsWholeBuffer(t *testing.T) {
	input := []byte("no framing at all")
	res, more, err := Decode(nil, input)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if more != nil {
		t.Fatalf("Decode() with empty spec reported NeedMore: %+v", more)
	}
	if string(res.Payload) != string(input) {
		t.Errorf("Payload = %q, want %q", res.Payload, input)
	}
	if len(res.Tail) != 0 {
		t.Errorf("Tail = %v, want empty", res.Tail)
	}
}

func TestPacketSpecEqual(t *testing.T) {
	a := PacketSpec{LenU8, LenVarint}
	b := PacketSpec{LenU8, LenVarint}
	c := PacketSpec{LenU8}

	if !a.Equal(b) {
		t.Error("expected equal specs to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected specs of different length to compare unequal")
	}
}
