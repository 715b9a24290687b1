package core

import (
	"fmt"
	"strings"
)

// FormatSnapshot renders a register dump the way `emu run --dump-regs`
// prints it: one register per line plus the special registers and halt
// record.
func FormatSnapshot(snap Snapshot) string {
	var b strings.Builder
	for i, v := range snap.Registers {
		fmt.Fprintf(&b, "R%-2d = 0x%016X\n", i, v)
	}
	fmt.Fprintf(&b, "SP  = 0x%016X\n", snap.SP)
	fmt.Fprintf(&b, "FP  = 0x%016X\n", snap.FP)
	fmt.Fprintf(&b, "PC  = 0x%04X\n", snap.PC)
	fmt.Fprintf(&b, "Z   = %v\n", snap.Z)
	if snap.Halted {
		switch snap.Reason {
		case HaltNormal:
			fmt.Fprintf(&b, "halted: NORMAL\n")
		case HaltFault:
			fmt.Fprintf(&b, "halted: FAULT: %s\n", snap.Fault.Error())
		}
	}
	return b.String()
}

// FormatHexDump renders a byte slice as a classic 16-bytes-per-row hex
// dump with an ASCII gutter, offsets relative to base.
func FormatHexDump(base int, data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]
		fmt.Fprintf(&b, "%08X  ", base+off)
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Fprintf(&b, "%02X ", row[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range row {
			if c >= 0x20 && c < 0x7F {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}

// DisassembleOne renders a single decoded instruction using the ISA
// table, falling back to a raw-bytes form for an unrecognized opcode
// (hexdump --annotate must never fail on stray data).
func DisassembleOne(ins DecodedInstr) string {
	spec, ok := SpecForOpcode(ins.Opcode)
	if !ok {
		return fmt.Sprintf("; unknown opcode 0x%02X", ins.Opcode)
	}
	var b strings.Builder
	b.WriteString(spec.Mnemonic)
	first := true
	sep := func() {
		if first {
			b.WriteByte(' ')
			first = false
		} else {
			b.WriteString(", ")
		}
	}
	for _, kind := range spec.Schema {
		sep()
		switch kind {
		case OpRd:
			fmt.Fprintf(&b, "%s", regName(ins.Rd))
		case OpRa:
			fmt.Fprintf(&b, "%s", regName(ins.Ra))
		case OpRb:
			fmt.Fprintf(&b, "%s", regName(ins.Rb))
		case OpImm32, OpAddrAbs, OpAddrRel:
			fmt.Fprintf(&b, "0x%X", uint32(ins.Imm32))
		}
	}
	return b.String()
}

func regName(sel byte) string {
	switch sel {
	case SelectorSP:
		return "SP"
	case SelectorFP:
		return "FP"
	default:
		return fmt.Sprintf("R%d", sel)
	}
}

// Disassemble walks a Binary as fixed 8-byte words and renders one
// mnemonic line per word. Purely additive: never consulted by Assemble.
func (b Binary) Disassemble(base uint16) []string {
	var lines []string
	for off := 0; off+InstrSize <= len(b); off += InstrSize {
		ins := Decode(b[off : off+InstrSize])
		addr := int(base) + off
		lines = append(lines, fmt.Sprintf("%04X: %s", addr, DisassembleOne(ins)))
	}
	return lines
}
