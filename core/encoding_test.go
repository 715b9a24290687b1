package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name                   string
		opcode, rd, ra, rb     byte
		imm32                  int32
	}{
		{"zero", 0, 0, 0, 0, 0},
		{"halt-like", OpHalt, 0, 0, 0, 0},
		{"mov-ri-positive", OpMovRI, 1, 0, 0, 5},
		{"mov-ri-negative", OpMovRI, 2, 0, 0, -1},
		{"selectors", OpMovRR, SelectorSP, SelectorFP, 0, 0},
		{"max-fields", 0xFF, 0xFF, 0xFF, 0xFF, 0x7FFFFFFF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			word := Encode(tc.opcode, tc.rd, tc.ra, tc.rb, tc.imm32)
			got := Decode(word[:])
			require.Equal(t, tc.opcode, got.Opcode)
			require.Equal(t, tc.rd, got.Rd)
			require.Equal(t, tc.ra, got.Ra)
			require.Equal(t, tc.rb, got.Rb)
			require.Equal(t, tc.imm32, got.Imm32)
		})
	}
}

func TestEncodeCheckedRejectsOutOfRange(t *testing.T) {
	_, err := EncodeChecked(0x100, 0, 0, 0, 0)
	require.Error(t, err)

	_, err = EncodeChecked(0, 0, 0, 0, 1<<32)
	require.Error(t, err)

	word, err := EncodeChecked(int64(OpAdd), 1, 2, 3, 0)
	require.NoError(t, err)
	got := Decode(word[:])
	require.Equal(t, OpAdd, got.Opcode)
}

func TestDecodePanicsOnWrongLength(t *testing.T) {
	require.Panics(t, func() {
		Decode([]byte{1, 2, 3})
	})
}
