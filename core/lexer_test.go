package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexBasicLine(t *testing.T) {
	toks, err := Lex("loop: MOV_RI R1, 5\n", "t.asm")
	require.NoError(t, err)

	kinds := make([]TokenKind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []TokenKind{
		TokIdent, TokColon, TokIdent, TokReg, TokComma, TokNumber, TokEOL, TokEOF,
	}, kinds)

	require.Equal(t, "LOOP", toks[0].Text)
	require.Equal(t, "R1", toks[3].Text)
	require.Equal(t, "5", toks[5].Text)
}

func TestLexUppercasesAndAcceptsHexAndNegative(t *testing.T) {
	toks, err := Lex("mov_ri r2, -0x10\n", "t.asm")
	require.NoError(t, err)
	require.Equal(t, "MOV_RI", toks[0].Text)
	require.Equal(t, "R2", toks[1].Text)
	require.Equal(t, "-0x10", toks[3].Text)
}

func TestLexCommentsAndBlankLines(t *testing.T) {
	toks, err := Lex("; just a comment\n\nHALT ; trailing comment\n", "t.asm")
	require.NoError(t, err)
	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []TokenKind{TokEOL, TokEOL, TokIdent, TokEOL, TokEOF}, kinds)
}

func TestLexRejectsIllegalChar(t *testing.T) {
	_, err := Lex("MOV_RI R1, #5\n", "t.asm")
	require.Error(t, err)
	asmErr, ok := err.(*AsmError)
	require.True(t, ok)
	require.Equal(t, ErrBadChar, asmErr.Code)
}

func TestIsRegisterTextBounds(t *testing.T) {
	require.True(t, isRegisterText("R0"))
	require.True(t, isRegisterText("R15"))
	require.False(t, isRegisterText("R16"))
	require.False(t, isRegisterText("RX"))
	require.False(t, isRegisterText("REG"))
}
