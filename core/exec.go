package core

// Tracer receives one callback per executed step, carrying snapshots
// from before and after it, for --trace support. The zero value (nil)
// disables tracing.
type Tracer interface {
	OnStep(before Snapshot, instr DecodedInstr, after Snapshot)
}

// Step executes exactly one instruction against state/mem, in place. It
// is a no-op if the CPU has already halted. Fault precedence is fixed:
// PC bounds, alignment, fetch, decode (trivial here, decode never
// fails), field-zero legality, register-range, immediate-range,
// semantic effect, then PC update — each opcode below checks in that
// order before touching any state.
func Step(state *State, mem *Memory, tracer Tracer) {
	if state.Halt.Halted {
		return
	}

	before := state.Snapshot()

	if int(state.PC)+InstrSize-1 > 0xFFFF {
		state.fault(&Fault{Code: FaultPCOOB, PC: state.PC, Message: "PC fetch out of range"})
		return
	}
	if state.PC%InstrSize != 0 {
		state.fault(&Fault{Code: FaultMisaligned, PC: state.PC, Message: "PC not 8-byte aligned"})
		return
	}

	word, err := mem.ReadSlice(int(state.PC), InstrSize)
	if err != nil {
		state.fault(&Fault{Code: FaultPCOOB, PC: state.PC, Message: "fetch failed"})
		return
	}
	ins := Decode(word)

	dispatch(state, mem, ins)

	if tracer != nil {
		tracer.OnStep(before, ins, state.Snapshot())
	}
}

func dispatch(state *State, mem *Memory, ins DecodedInstr) {
	switch ins.Opcode {
	case OpHalt:
		execHalt(state, ins)
	case OpMovRI:
		execMovRI(state, ins)
	case OpMovRR:
		execMovRR(state, ins)
	case OpAdd:
		execAddSub(state, ins, true)
	case OpSub:
		execAddSub(state, ins, false)
	case OpCmp:
		execCmp(state, ins)
	case OpLoad8Abs:
		execLoad8Abs(state, mem, ins)
	case OpStore8Abs:
		execStore8Abs(state, mem, ins)
	case OpJmpAbs:
		execJmpAbs(state, ins)
	case OpJmpRel:
		execJmpRel(state, ins)
	case OpJzAbs:
		execJzAbs(state, ins)
	case OpJzRel:
		execJzRel(state, ins)
	case OpPush8:
		execPush8(state, mem, ins)
	case OpPop8:
		execPop8(state, mem, ins)
	case OpCallAbs:
		execCallAbs(state, mem, ins)
	case OpRet:
		execRet(state, mem, ins)
	default:
		state.fault(&Fault{Code: FaultIllegalOpcode, PC: state.PC, Opcode: ins.Opcode,
			Rd: ins.Rd, Ra: ins.Ra, Rb: ins.Rb, Imm32: ins.Imm32, Message: "unknown opcode"})
	}
}

func illegalEncoding(state *State, ins DecodedInstr, message string) {
	state.fault(&Fault{Code: FaultIllegalEncoding, PC: state.PC, Opcode: ins.Opcode,
		Rd: ins.Rd, Ra: ins.Ra, Rb: ins.Rb, Imm32: ins.Imm32, Message: message})
}

func regOOB(state *State, ins DecodedInstr, message string) {
	state.fault(&Fault{Code: FaultRegOOB, PC: state.PC, Opcode: ins.Opcode,
		Rd: ins.Rd, Ra: ins.Ra, Rb: ins.Rb, Imm32: ins.Imm32, Message: message})
}

func memOOB(state *State, ins DecodedInstr, message string) {
	state.fault(&Fault{Code: FaultMemOOB, PC: state.PC, Opcode: ins.Opcode,
		Rd: ins.Rd, Ra: ins.Ra, Rb: ins.Rb, Imm32: ins.Imm32, Message: message})
}

func pcOOB(state *State, ins DecodedInstr, message string) {
	state.fault(&Fault{Code: FaultPCOOB, PC: state.PC, Opcode: ins.Opcode,
		Rd: ins.Rd, Ra: ins.Ra, Rb: ins.Rb, Imm32: ins.Imm32, Message: message})
}

func misaligned(state *State, ins DecodedInstr, message string) {
	state.fault(&Fault{Code: FaultMisaligned, PC: state.PC, Opcode: ins.Opcode,
		Rd: ins.Rd, Ra: ins.Ra, Rb: ins.Rb, Imm32: ins.Imm32, Message: message})
}

// advancePC applies the default "next instruction" PC update, itself
// subject to a PC_OOB check (running off the end of memory on the very
// last instruction is a fault, not silent wraparound).
func advancePC(state *State, ins DecodedInstr) {
	next := int(state.PC) + InstrSize
	if next+InstrSize-1 > 0xFFFF {
		pcOOB(state, ins, "next PC out of range")
		return
	}
	state.PC = uint16(next)
}

func readRegOrSelector(state *State, sel byte) (uint64, bool) {
	switch {
	case sel == SelectorSP:
		return state.SP, true
	case sel == SelectorFP:
		return state.FP, true
	case sel <= 15:
		return state.Registers[sel], true
	default:
		return 0, false
	}
}

func execHalt(state *State, ins DecodedInstr) {
	if ins.Rd != 0 || ins.Ra != 0 || ins.Rb != 0 || ins.Imm32 != 0 {
		illegalEncoding(state, ins, "HALT requires all fields zero")
		return
	}
	state.haltNormal()
}

func execMovRI(state *State, ins DecodedInstr) {
	if ins.Ra != 0 || ins.Rb != 0 {
		illegalEncoding(state, ins, "MOV_RI requires ra=0, rb=0")
		return
	}
	val := uint64(int64(ins.Imm32))
	switch {
	case ins.Rd == SelectorSP:
		if state.SP > 0xFFFF {
			memOOB(state, ins, "SP out of memory range")
			return
		}
		state.SP = val
	case ins.Rd == SelectorFP:
		if state.FP > 0xFFFF {
			memOOB(state, ins, "FP out of memory range")
			return
		}
		state.FP = val
	case ins.Rd <= 15:
		state.Registers[ins.Rd] = val
	default:
		regOOB(state, ins, "rd out of range")
		return
	}
	advancePC(state, ins)
}

func execMovRR(state *State, ins DecodedInstr) {
	if ins.Rb != 0 || ins.Imm32 != 0 {
		illegalEncoding(state, ins, "MOV_RR requires rb=0, imm32=0")
		return
	}
	switch {
	case ins.Rd == SelectorSP:
		if state.SP > 0xFFFF {
			memOOB(state, ins, "SP out of memory range")
			return
		}
	case ins.Rd == SelectorFP:
		if state.FP > 0xFFFF {
			memOOB(state, ins, "FP out of memory range")
			return
		}
	case ins.Rd <= 15:
		// no pre-condition
	default:
		regOOB(state, ins, "rd out of range")
		return
	}

	switch {
	case ins.Ra == SelectorSP:
		if state.SP > 0xFFFF {
			memOOB(state, ins, "SP out of memory range")
			return
		}
	case ins.Ra == SelectorFP:
		if state.FP > 0xFFFF {
			memOOB(state, ins, "FP out of memory range")
			return
		}
	case ins.Ra <= 15:
		// no pre-condition
	default:
		regOOB(state, ins, "ra out of range")
		return
	}

	srcVal, _ := readRegOrSelector(state, ins.Ra)

	switch {
	case ins.Rd == SelectorSP:
		state.SP = srcVal
	case ins.Rd == SelectorFP:
		state.FP = srcVal
	default:
		state.Registers[ins.Rd] = srcVal
	}
	advancePC(state, ins)
}

func execAddSub(state *State, ins DecodedInstr, isAdd bool) {
	if ins.Imm32 != 0 {
		mnemonic := "SUB"
		if isAdd {
			mnemonic = "ADD"
		}
		illegalEncoding(state, ins, mnemonic+" requires imm32=0")
		return
	}
	if ins.Rd > 15 {
		regOOB(state, ins, "rd out of range")
		return
	}
	if ins.Ra > 15 {
		regOOB(state, ins, "ra out of range")
		return
	}
	if ins.Rb > 15 {
		regOOB(state, ins, "rb out of range")
		return
	}
	var result uint64
	if isAdd {
		result = state.Registers[ins.Ra] + state.Registers[ins.Rb]
	} else {
		result = state.Registers[ins.Ra] - state.Registers[ins.Rb]
	}
	state.Registers[ins.Rd] = result
	state.Z = result == 0
	advancePC(state, ins)
}

func execCmp(state *State, ins DecodedInstr) {
	if ins.Imm32 != 0 || ins.Rd != 0 {
		illegalEncoding(state, ins, "CMP requires rd=0, imm32=0")
		return
	}
	if ins.Ra > 15 {
		regOOB(state, ins, "ra out of range")
		return
	}
	if ins.Rb > 15 {
		regOOB(state, ins, "rb out of range")
		return
	}
	result := state.Registers[ins.Ra] - state.Registers[ins.Rb]
	state.Z = result == 0
	advancePC(state, ins)
}

func execLoad8Abs(state *State, mem *Memory, ins DecodedInstr) {
	if ins.Ra != 0 || ins.Rb != 0 {
		illegalEncoding(state, ins, "LOAD8_ABS requires ra=0, rb=0")
		return
	}
	if ins.Rd > 15 {
		regOOB(state, ins, "rd out of range")
		return
	}
	addr := ins.Imm32
	if addr < 0 || addr >= MemSize {
		memOOB(state, ins, "address is out of memory range")
		return
	}
	b, err := mem.ReadU8(int(addr))
	if err != nil {
		memOOB(state, ins, "address is out of memory range")
		return
	}
	state.Registers[ins.Rd] = uint64(b)
	advancePC(state, ins)
}

func execStore8Abs(state *State, mem *Memory, ins DecodedInstr) {
	if ins.Rd != 0 || ins.Rb != 0 {
		illegalEncoding(state, ins, "STORE8_ABS requires rd=0, rb=0")
		return
	}
	if ins.Ra > 15 {
		regOOB(state, ins, "ra out of range")
		return
	}
	addr := ins.Imm32
	if addr < 0 || addr >= MemSize {
		memOOB(state, ins, "address is out of memory range")
		return
	}
	if err := mem.WriteU8(int(addr), byte(state.Registers[ins.Ra])); err != nil {
		memOOB(state, ins, "address is out of memory range")
		return
	}
	advancePC(state, ins)
}

func execJmpAbs(state *State, ins DecodedInstr) {
	if ins.Rd != 0 || ins.Ra != 0 || ins.Rb != 0 {
		illegalEncoding(state, ins, "JMP_ABS requires rd=0, ra=0, rb=0")
		return
	}
	target := ins.Imm32
	if target < 0 || target >= 0xFFFF {
		pcOOB(state, ins, "target out of PC range")
		return
	}
	if target%InstrSize != 0 {
		misaligned(state, ins, "target is misaligned")
		return
	}
	if target+7 > 0xFFFF {
		pcOOB(state, ins, "target out of range")
		return
	}
	state.PC = uint16(target)
}

func execJmpRel(state *State, ins DecodedInstr) {
	if ins.Rd != 0 || ins.Ra != 0 || ins.Rb != 0 {
		illegalEncoding(state, ins, "JMP_REL requires rd=0, ra=0, rb=0")
		return
	}
	target := int64(state.PC) + int64(ins.Imm32)
	if target < 0 || target > 0xFFFF {
		pcOOB(state, ins, "target out of range")
		return
	}
	if target+7 > 0xFFFF {
		pcOOB(state, ins, "target out of range")
		return
	}
	if target%InstrSize != 0 {
		misaligned(state, ins, "target is misaligned")
		return
	}
	state.PC = uint16(target)
}

func execJzAbs(state *State, ins DecodedInstr) {
	if ins.Rd != 0 || ins.Ra != 0 || ins.Rb != 0 {
		illegalEncoding(state, ins, "JZ_ABS requires rd=0, ra=0, rb=0")
		return
	}
	target := ins.Imm32
	if target < 0 || target >= 0xFFFF {
		pcOOB(state, ins, "target out of PC range")
		return
	}
	if target+7 > 0xFFFF {
		pcOOB(state, ins, "target out of range")
		return
	}
	if target%InstrSize != 0 {
		misaligned(state, ins, "target is misaligned")
		return
	}
	if state.Z {
		state.PC = uint16(target)
		return
	}
	advancePC(state, ins)
}

func execJzRel(state *State, ins DecodedInstr) {
	if ins.Rd != 0 || ins.Ra != 0 || ins.Rb != 0 {
		illegalEncoding(state, ins, "JZ_REL requires rd=0, ra=0, rb=0")
		return
	}
	target := int64(state.PC) + int64(ins.Imm32)
	if target+7 > 0xFFFF {
		pcOOB(state, ins, "target out of range")
		return
	}
	if target < 0 || target > 0xFFFF {
		pcOOB(state, ins, "target out of range")
		return
	}
	if target%InstrSize != 0 {
		misaligned(state, ins, "target is misaligned")
		return
	}
	if state.Z {
		state.PC = uint16(target)
		return
	}
	advancePC(state, ins)
}

func execPush8(state *State, mem *Memory, ins DecodedInstr) {
	if ins.Rd != 0 || ins.Rb != 0 || ins.Imm32 != 0 {
		illegalEncoding(state, ins, "PUSH8 requires rd=0, rb=0, imm32=0")
		return
	}
	if ins.Ra > 15 {
		regOOB(state, ins, "ra out of range")
		return
	}
	if state.SP > 0xFFFF {
		memOOB(state, ins, "SP out of memory range")
		return
	}
	if state.SP == 0 {
		memOOB(state, ins, "SP underflow")
		return
	}
	if err := mem.WriteU8(int(state.SP), byte(state.Registers[ins.Ra])); err != nil {
		memOOB(state, ins, "SP out of memory range")
		return
	}
	state.SP--
	advancePC(state, ins)
}

func execPop8(state *State, mem *Memory, ins DecodedInstr) {
	if ins.Ra != 0 || ins.Rb != 0 || ins.Imm32 != 0 {
		illegalEncoding(state, ins, "POP8 requires ra=0, rb=0, imm32=0")
		return
	}
	if ins.Rd > 15 {
		regOOB(state, ins, "rd out of range")
		return
	}
	if state.SP >= 0xFFFF {
		memOOB(state, ins, "SP overflow")
		return
	}
	state.SP++
	b, err := mem.ReadU8(int(state.SP))
	if err != nil {
		memOOB(state, ins, "SP out of memory range")
		return
	}
	state.Registers[ins.Rd] = uint64(b)
	advancePC(state, ins)
}

// execCallAbs writes return_pc's 8 little-endian bytes into
// mem[SP_before-7 .. SP_before], one byte per post-decrement of SP,
// writing the least-significant byte first at the current (highest)
// SP: mem[SP_before] = LSB, mem[SP_before-7] = MSB.
func execCallAbs(state *State, mem *Memory, ins DecodedInstr) {
	if ins.Rd != 0 || ins.Ra != 0 || ins.Rb != 0 {
		illegalEncoding(state, ins, "CALL_ABS requires rd=0, ra=0, rb=0")
		return
	}
	if int(state.PC)+15 > 0xFFFF {
		pcOOB(state, ins, "PC is out of range")
		return
	}
	base := int64(state.SP) - 7
	if base%8 != 0 {
		misaligned(state, ins, "SP is not aligned")
		return
	}
	if base < 0 || base+7 > 0xFFFF {
		memOOB(state, ins, "SP is not in range")
		return
	}

	returnPC := uint64(state.PC) + 8
	sp := state.SP
	for i := 0; i < 8; i++ {
		shift := uint(8 * i)
		b := byte(returnPC >> shift)
		if err := mem.WriteU8(int(sp), b); err != nil {
			memOOB(state, ins, "SP is not in range")
			return
		}
		sp--
	}
	state.SP = sp
	state.PC = uint16(uint32(ins.Imm32) & 0xFFFF)
}

func execRet(state *State, mem *Memory, ins DecodedInstr) {
	if ins.Rd != 0 || ins.Ra != 0 || ins.Rb != 0 || ins.Imm32 != 0 {
		illegalEncoding(state, ins, "RET requires rd=0, ra=0, rb=0, imm32=0")
		return
	}
	if int(state.PC)+15 > 0xFFFF {
		pcOOB(state, ins, "PC is out of range")
		return
	}
	base := int64(state.SP) + 1
	if base%8 != 0 {
		misaligned(state, ins, "SP is not aligned")
		return
	}
	if base < 0 || base+7 > 0xFFFF {
		memOOB(state, ins, "SP is not in range")
		return
	}

	bytes, err := mem.ReadSlice(int(base), 8)
	if err != nil {
		memOOB(state, ins, "SP is not in range")
		return
	}
	// mem[base] holds the most-significant byte (it's the mirror of
	// execCallAbs's write: mem[SP_before-i] = byte_i, and base is
	// SP_before-7), so reconstruct newPC with the byte index reversed.
	var newPC uint64
	for i := 0; i < 8; i++ {
		newPC |= uint64(bytes[i]) << uint(8*(7-i))
	}
	state.SP += 8
	state.PC = uint16(newPC)
}
