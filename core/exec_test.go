package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func runToHalt(state *State, mem *Memory, maxSteps int) int {
	steps := 0
	for !state.Halt.Halted && steps < maxSteps {
		Step(state, mem, nil)
		steps++
	}
	return steps
}

func loadAndRun(t *testing.T, src string, maxSteps int) *State {
	t.Helper()
	binary := mustAssemble(t, src, 0)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, binary))
	state := NewState()
	runToHalt(state, mem, maxSteps)
	return state
}

func TestScenarioAddTwoImmediates(t *testing.T) {
	state := loadAndRun(t, "MOV_RI R1, 5\nMOV_RI R2, 10\nADD R3, R1, R2\nHALT\n", 10)
	require.EqualValues(t, 5, state.Registers[1])
	require.EqualValues(t, 10, state.Registers[2])
	require.EqualValues(t, 15, state.Registers[3])
	require.False(t, state.Z)
	require.Equal(t, HaltNormal, state.Halt.Reason)
	require.EqualValues(t, 0x0018, state.PC)
}

func TestScenarioStoreThenLoad(t *testing.T) {
	state := loadAndRun(t, "MOV_RI R1, 5\nSTORE8_ABS 0x0200, R1\nLOAD8_ABS R2, 0x0200\nHALT\n", 10)
	require.EqualValues(t, 5, state.Registers[2])
	require.Equal(t, HaltNormal, state.Halt.Reason)
}

func TestScenarioPushPopRoundTrip(t *testing.T) {
	state := loadAndRun(t, "MOV_RI R1, 0xAB\nPUSH8 R1\nPOP8 R2\nHALT\n", 10)
	require.EqualValues(t, 0xAB, state.Registers[2])
	require.EqualValues(t, 0xFDFF, state.SP)
}

func TestScenarioNestedCallReturn(t *testing.T) {
	src := `
MOV_RI R1, 1
CALL_ABS F1
HALT
F1: CALL_ABS F2
RET
F2: RET
`
	state := loadAndRun(t, src, 50)
	require.Equal(t, HaltNormal, state.Halt.Reason)
	require.EqualValues(t, 0xFDFF, state.SP)
}

func TestMovRISignExtends(t *testing.T) {
	binary := mustAssemble(t, "MOV_RI R1, 0x80000000\nHALT\n", 0)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, binary))
	state := NewState()
	runToHalt(state, mem, 5)
	require.EqualValues(t, 0xFFFFFFFF80000000, state.Registers[1])
}

func TestFetchAtPC0xFFF9FaultsPCOOB(t *testing.T) {
	mem := NewMemory()
	state := NewState()
	state.PC = 0xFFF9
	Step(state, mem, nil)
	require.True(t, state.Halt.Halted)
	require.Equal(t, HaltFault, state.Halt.Reason)
	require.Equal(t, FaultPCOOB, state.Halt.Fault.Code)
}

func TestLoad8AbsOutOfRangeFaultsMemOOB(t *testing.T) {
	binary := mustAssemble(t, "LOAD8_ABS R1, 0x10000\n", 0)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, binary))
	state := NewState()
	Step(state, mem, nil)
	require.Equal(t, HaltFault, state.Halt.Reason)
	require.Equal(t, FaultMemOOB, state.Halt.Fault.Code)
}

func TestJmpAbsMisalignedTarget(t *testing.T) {
	word := Encode(OpJmpAbs, 0, 0, 0, 3)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, word[:]))
	state := NewState()
	Step(state, mem, nil)
	require.Equal(t, HaltFault, state.Halt.Reason)
	require.Equal(t, FaultMisaligned, state.Halt.Fault.Code)
}

func TestPush8UnderflowFaults(t *testing.T) {
	word := Encode(OpPush8, 0, 1, 0, 0)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, word[:]))
	state := NewState()
	state.SP = 0
	Step(state, mem, nil)
	require.Equal(t, HaltFault, state.Halt.Reason)
	require.Equal(t, FaultMemOOB, state.Halt.Fault.Code)
}

func TestPop8OverflowFaults(t *testing.T) {
	word := Encode(OpPop8, 1, 0, 0, 0)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, word[:]))
	state := NewState()
	state.SP = 0xFFFF
	Step(state, mem, nil)
	require.Equal(t, HaltFault, state.Halt.Reason)
	require.Equal(t, FaultMemOOB, state.Halt.Fault.Code)
}

func TestCallAbsMisalignedSP(t *testing.T) {
	word := Encode(OpCallAbs, 0, 0, 0, 0)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, word[:]))
	state := NewState()
	state.SP = 0xFDFA
	Step(state, mem, nil)
	require.Equal(t, HaltFault, state.Halt.Reason)
	require.Equal(t, FaultMisaligned, state.Halt.Fault.Code)
}

func TestCallAbsWritesReturnAddressBytesLowAtHighAddress(t *testing.T) {
	word := Encode(OpCallAbs, 0, 0, 0, 0x40)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, word[:]))
	state := NewState()
	spBefore := state.SP
	Step(state, mem, nil)
	require.False(t, state.Halt.Halted)
	require.EqualValues(t, 0x40, state.PC)

	// mem[spBefore] holds the least-significant byte, mem[spBefore-7]
	// the most-significant: mem[spBefore-i] == (return_pc >> 8*i) & 0xFF.
	returnPC := uint64(8)
	for i := 0; i < 8; i++ {
		b, err := mem.ReadU8(int(spBefore) - i)
		require.NoError(t, err)
		require.Equal(t, byte(returnPC>>uint(8*i)), b)
	}
}

func TestHaltIllegalEncoding(t *testing.T) {
	word := Encode(OpHalt, 1, 0, 0, 0)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, word[:]))
	state := NewState()
	Step(state, mem, nil)
	require.Equal(t, HaltFault, state.Halt.Reason)
	require.Equal(t, FaultIllegalEncoding, state.Halt.Fault.Code)
}

func TestRegOOBOnNonMovOpcode(t *testing.T) {
	word := Encode(OpAdd, SelectorSP, 1, 2, 0)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, word[:]))
	state := NewState()
	Step(state, mem, nil)
	require.Equal(t, HaltFault, state.Halt.Reason)
	require.Equal(t, FaultRegOOB, state.Halt.Fault.Code)
}

func TestCmpSetsZeroFlag(t *testing.T) {
	state := loadAndRun(t, "MOV_RI R1, 7\nMOV_RI R2, 7\nCMP R1, R2\nHALT\n", 10)
	require.True(t, state.Z)
}

func TestStepIsNoOpAfterHalt(t *testing.T) {
	word := Encode(OpHalt, 0, 0, 0, 0)
	mem := NewMemory()
	require.NoError(t, mem.Load(0, word[:]))
	state := NewState()
	Step(state, mem, nil)
	require.True(t, state.Halt.Halted)
	pcBefore := state.PC
	Step(state, mem, nil)
	require.Equal(t, pcBefore, state.PC)
}
