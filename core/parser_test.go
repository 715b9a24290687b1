package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustLex(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := Lex(src, "t.asm")
	require.NoError(t, err)
	return toks
}

func TestParseLabelAndInstruction(t *testing.T) {
	lines, err := Parse(mustLex(t, "loop:\n  MOV_RI R1, 5\n  JMP_ABS loop\n"))
	require.NoError(t, err)
	require.Len(t, lines, 3)

	require.True(t, lines[0].HasLabel)
	require.Equal(t, "LOOP", lines[0].Label)
	require.False(t, lines[0].HasInstr)

	require.True(t, lines[1].HasInstr)
	require.Equal(t, "MOV_RI", lines[1].Instr.Mnemonic)
	require.Len(t, lines[1].Instr.Operands, 2)
	reg, ok := lines[1].Instr.Operands[0].(Register)
	require.True(t, ok)
	require.Equal(t, 1, reg.Index)
	num, ok := lines[1].Instr.Operands[1].(Number)
	require.True(t, ok)
	require.EqualValues(t, 5, num.Value)

	require.True(t, lines[2].HasInstr)
	ref, ok := lines[2].Instr.Operands[0].(LabelRef)
	require.True(t, ok)
	require.Equal(t, "LOOP", ref.Name)
}

func TestParseLabelAndInstructionOnSameLine(t *testing.T) {
	lines, err := Parse(mustLex(t, "start: HALT\n"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.True(t, lines[0].HasLabel)
	require.True(t, lines[0].HasInstr)
	require.Equal(t, "HALT", lines[0].Instr.Mnemonic)
}

func TestParseUnknownMnemonic(t *testing.T) {
	_, err := Parse(mustLex(t, "FROB R1\n"))
	require.Error(t, err)
	asmErr, ok := err.(*AsmError)
	require.True(t, ok)
	require.Equal(t, ErrUnknownMnemonic, asmErr.Code)
}

func TestParseTrailingTokens(t *testing.T) {
	_, err := Parse(mustLex(t, "MOV_RI R1, 5 extra\n"))
	require.Error(t, err)
	asmErr, ok := err.(*AsmError)
	require.True(t, ok)
	require.Equal(t, ErrTrailingTokens, asmErr.Code)
}

func TestParseBlankLines(t *testing.T) {
	lines, err := Parse(mustLex(t, "\n\nHALT\n"))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.False(t, lines[0].HasInstr)
	require.False(t, lines[1].HasInstr)
	require.True(t, lines[2].HasInstr)
}
