package core

import "fmt"

// MemSize is the fixed size of the emulator's address space: exactly
// 64 KiB, no holes, no MMIO.
const MemSize = 0x10000

// ErrOutOfRange is returned by every Memory accessor when the requested
// address (or address range) falls outside [0, MemSize). Inside Step the
// executor translates it into the appropriate MEM_OOB/PC_OOB fault; a
// driver calling Load or ReadSlice itself receives it as is.
type ErrOutOfRange struct {
	Addr int
	Len  int
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("address out of range: addr=0x%04X len=%d", e.Addr, e.Len)
}

// Memory is the flat byte-addressed address space shared by the
// assembler's loader and the executor.
type Memory struct {
	bytes [MemSize]byte
}

// NewMemory returns a zeroed 64 KiB memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Load copies bytes into memory starting at at. It fails if the write
// would run past the end of the address space; it never partially
// writes on failure.
func (m *Memory) Load(at int, data []byte) error {
	if at < 0 || at+len(data) > MemSize {
		return &ErrOutOfRange{Addr: at, Len: len(data)}
	}
	copy(m.bytes[at:], data)
	return nil
}

// ReadU8 reads a single byte.
func (m *Memory) ReadU8(addr int) (byte, error) {
	if addr < 0 || addr >= MemSize {
		return 0, &ErrOutOfRange{Addr: addr, Len: 1}
	}
	return m.bytes[addr], nil
}

// WriteU8 writes a single byte (callers pass an already-narrowed value).
func (m *Memory) WriteU8(addr int, v byte) error {
	if addr < 0 || addr >= MemSize {
		return &ErrOutOfRange{Addr: addr, Len: 1}
	}
	m.bytes[addr] = v
	return nil
}

// ReadSlice returns a copy of n bytes starting at addr. A copy (rather
// than a sub-slice of the backing array) keeps callers from being able to
// mutate memory through a "read" result.
func (m *Memory) ReadSlice(addr, n int) ([]byte, error) {
	if addr < 0 || n < 0 || addr+n > MemSize {
		return nil, &ErrOutOfRange{Addr: addr, Len: n}
	}
	out := make([]byte, n)
	copy(out, m.bytes[addr:addr+n])
	return out, nil
}
