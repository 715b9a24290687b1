package core

import (
	"encoding/binary"
	"fmt"
)

// InstrSize is the fixed width, in bytes, of every instruction word.
const InstrSize = 8

// ErrEncodingRange is returned by EncodeChecked when one of opcode/rd/ra/rb/imm32
// falls outside the range the wire format can carry.
type ErrEncodingRange struct {
	Field string
	Value int64
}

func (e *ErrEncodingRange) Error() string {
	return fmt.Sprintf("%s out of encodable range: %d", e.Field, e.Value)
}

func packU8(field string, v int64) (byte, error) {
	if v < 0 || v > 0xFF {
		return 0, &ErrEncodingRange{Field: field, Value: v}
	}
	return byte(v), nil
}

// Encode packs (opcode, rd, ra, rb, imm32) into the 8-byte little-endian
// instruction word. opcode/rd/ra/rb must fit in 0..=0xFF; imm32 must fit
// in the signed 32-bit range.
func Encode(opcode, rd, ra, rb byte, imm32 int32) [InstrSize]byte {
	var word [InstrSize]byte
	word[0] = opcode
	word[1] = rd
	word[2] = ra
	word[3] = rb
	binary.LittleEndian.PutUint32(word[4:], uint32(imm32))
	return word
}

// EncodeChecked is Encode with explicit range validation on every field,
// used by the pass-2 emitter (which works with untyped int64 operand
// values prior to this final narrowing step).
func EncodeChecked(opcode, rd, ra, rb int64, imm32 int64) ([InstrSize]byte, error) {
	op, err := packU8("opcode", opcode)
	if err != nil {
		return [InstrSize]byte{}, err
	}
	d, err := packU8("rd", rd)
	if err != nil {
		return [InstrSize]byte{}, err
	}
	a, err := packU8("ra", ra)
	if err != nil {
		return [InstrSize]byte{}, err
	}
	b, err := packU8("rb", rb)
	if err != nil {
		return [InstrSize]byte{}, err
	}
	if imm32 < -(1<<31) || imm32 > (1<<31)-1 {
		return [InstrSize]byte{}, &ErrEncodingRange{Field: "imm32", Value: imm32}
	}
	return Encode(op, d, a, b, int32(imm32)), nil
}

// DecodedInstr is the fully unpacked form of one instruction word.
type DecodedInstr struct {
	Opcode byte
	Rd     byte
	Ra     byte
	Rb     byte
	Imm32  int32
}

// Decode unpacks exactly 8 bytes into a DecodedInstr. The caller is
// responsible for ensuring len(word) == InstrSize; Decode panics
// otherwise since that invariant is established by the fetch stage, not
// by the caller's input.
func Decode(word []byte) DecodedInstr {
	if len(word) != InstrSize {
		panic(fmt.Sprintf("core: Decode requires exactly %d bytes, got %d", InstrSize, len(word)))
	}
	return DecodedInstr{
		Opcode: word[0],
		Rd:     word[1],
		Ra:     word[2],
		Rb:     word[3],
		Imm32:  int32(binary.LittleEndian.Uint32(word[4:])),
	}
}
