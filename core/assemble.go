package core

// Binary is an assembled, flat stream of 8-byte instruction words ready
// to be loaded into Memory at a base address.
type Binary []byte

// SymbolTable maps a label name to its resolved absolute address.
type SymbolTable map[string]uint16

// Assemble runs both passes over already-parsed source lines: pass 1
// builds the symbol table by walking addresses forward from base, pass 2
// resolves operands (including label references) against that table and
// emits the final instruction stream.
func Assemble(lines []Line, base uint16) (Binary, SymbolTable, error) {
	symbols, err := resolveSymbols(lines, base)
	if err != nil {
		return nil, nil, err
	}

	out := make(Binary, 0, len(lines)*InstrSize)
	for _, ln := range lines {
		if !ln.HasInstr {
			continue
		}
		word, err := emitInstruction(ln.Instr, symbols)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, word[:]...)
	}

	return out, symbols, nil
}

// resolveSymbols is pass 1: it never inspects operand values, only label
// bindings, so it cannot raise anything but E_DUP_LABEL.
func resolveSymbols(lines []Line, base uint16) (SymbolTable, error) {
	symbols := make(SymbolTable)
	pc := base
	for _, ln := range lines {
		if ln.HasLabel {
			if _, dup := symbols[ln.Label]; dup {
				return nil, newAsmErr(ln.LabelPos, ErrDupLabel, "label already defined: %s", ln.Label)
			}
			symbols[ln.Label] = pc
		}
		if ln.HasInstr {
			pc += InstrSize
		}
	}
	return symbols, nil
}

// emitInstruction resolves one parsed instruction's operands against its
// ISA schema and the symbol table, then encodes the final word. addr_rel
// operands resolve to the same absolute value as addr_abs here; only the
// emulator interprets the stored imm32 as a PC-relative displacement.
func emitInstruction(instr *Instruction, symbols SymbolTable) ([InstrSize]byte, error) {
	spec, ok := ISATable[instr.Mnemonic]
	if !ok {
		return [InstrSize]byte{}, newAsmErr(instr.Pos, ErrUnknownMnemonic, "unknown mnemonic: %s", instr.Mnemonic)
	}

	if len(instr.Operands) != len(spec.Schema) {
		return [InstrSize]byte{}, newAsmErr(instr.Pos, ErrArity,
			"%s expects %d operand(s), got %d", instr.Mnemonic, len(spec.Schema), len(instr.Operands))
	}

	var rd, ra, rb int64
	var imm32 int64

	for i, kind := range spec.Schema {
		operand := instr.Operands[i]
		switch kind {
		case OpRd:
			v, err := resolveRegister(operand)
			if err != nil {
				return [InstrSize]byte{}, err
			}
			rd = v
		case OpRa:
			v, err := resolveRegister(operand)
			if err != nil {
				return [InstrSize]byte{}, err
			}
			ra = v
		case OpRb:
			v, err := resolveRegister(operand)
			if err != nil {
				return [InstrSize]byte{}, err
			}
			rb = v
		case OpImm32:
			v, err := resolveImmediate(operand, symbols)
			if err != nil {
				return [InstrSize]byte{}, err
			}
			// A value in [2^31, 2^32) is taken as its 32-bit pattern, so
			// MOV_RI R1, 0x80000000 encodes imm32 = -2^31.
			if v >= 1<<31 && v < 1<<32 {
				v -= 1 << 32
			}
			imm32 = v
		case OpAddrAbs:
			v, err := resolveAddress(operand, symbols)
			if err != nil {
				return [InstrSize]byte{}, err
			}
			imm32 = v
		case OpAddrRel:
			// addr_abs and addr_rel are the same when it comes to
			// assembling: both just fill the imm32 slot with the
			// resolved absolute address. Only the emulator treats
			// addr_rel's imm32 as a PC-relative displacement.
			v, err := resolveAddress(operand, symbols)
			if err != nil {
				return [InstrSize]byte{}, err
			}
			imm32 = v
		}
	}

	if spec.RdMustBeZero && rd != 0 {
		return [InstrSize]byte{}, newAsmErr(instr.Pos, ErrFieldNonzero, "%s: rd field must be zero", instr.Mnemonic)
	}
	if spec.RaMustBeZero && ra != 0 {
		return [InstrSize]byte{}, newAsmErr(instr.Pos, ErrFieldNonzero, "%s: ra field must be zero", instr.Mnemonic)
	}
	if spec.RbMustBeZero && rb != 0 {
		return [InstrSize]byte{}, newAsmErr(instr.Pos, ErrFieldNonzero, "%s: rb field must be zero", instr.Mnemonic)
	}
	if spec.ImmMustBeZero && imm32 != 0 {
		return [InstrSize]byte{}, newAsmErr(instr.Pos, ErrFieldNonzero, "%s: imm32 field must be zero", instr.Mnemonic)
	}

	word, err := EncodeChecked(int64(spec.Opcode), rd, ra, rb, imm32)
	if err != nil {
		return [InstrSize]byte{}, newAsmErr(instr.Pos, ErrRange, "%s: %s", instr.Mnemonic, err.Error())
	}
	return word, nil
}

// resolveRegister accepts a Register operand (R0..R15) or, since the
// lexer has no dedicated token for them, the bare identifiers SP/FP
// parsed as a LabelRef — resolved here to the selector bytes 0x10/0x11.
// Schema validation doesn't distinguish which opcodes may legally carry
// a selector, so any register slot assembles one; only the executor's
// REG_OOB check on non-MOV opcodes rejects it.
func resolveRegister(op Operand) (int64, error) {
	switch v := op.(type) {
	case Register:
		return int64(v.Index), nil
	case LabelRef:
		switch v.Name {
		case "SP":
			return int64(SelectorSP), nil
		case "FP":
			return int64(SelectorFP), nil
		}
	}
	return 0, newAsmErr(op.operandPos(), ErrBadOperand, "expected a register operand")
}

// resolveImmediate accepts a Number or, for forward-compatibility with
// label-as-constant usage, a LabelRef resolved to its address.
func resolveImmediate(op Operand, symbols SymbolTable) (int64, error) {
	switch v := op.(type) {
	case Number:
		return v.Value, nil
	case LabelRef:
		addr, ok := symbols[v.Name]
		if !ok {
			return 0, newAsmErr(v.Pos, ErrUndefLabel, "undefined label: %s", v.Name)
		}
		return int64(addr), nil
	default:
		return 0, newAsmErr(op.operandPos(), ErrBadOperand, "expected a number or label operand")
	}
}

// resolveAddress accepts a LabelRef (the common case) or a bare Number
// literal address.
func resolveAddress(op Operand, symbols SymbolTable) (int64, error) {
	switch v := op.(type) {
	case LabelRef:
		addr, ok := symbols[v.Name]
		if !ok {
			return 0, newAsmErr(v.Pos, ErrUndefLabel, "undefined label: %s", v.Name)
		}
		return int64(addr), nil
	case Number:
		return v.Value, nil
	default:
		return 0, newAsmErr(op.operandPos(), ErrBadOperand, "expected an address (label or number) operand")
	}
}
