// Package memory provides the flat 64K address space the emulator
// executes guest code within.
package memory

import (
	"fmt"
	"os"
)

// TPASize is the largest number of bytes a .COM image may occupy once
// loaded at the Transient Program Area base, truncated to avoid stomping
// the reserved high-memory tables.
const TPASize = 0xE000

// Memory is a 64 KiB byte-addressed space with 16-bit little-endian helpers.
//
// All addressing wraps modulo 65536 by virtue of the uint16 index type; no
// bounds check is required beyond that.
type Memory struct {
	buf [65536]uint8
}

// Set writes a single byte.
func (m *Memory) Set(addr uint16, value uint8) {
	m.buf[addr] = value
}

// Get reads a single byte as a data fetch.
func (m *Memory) Get(addr uint16) uint8 {
	return m.buf[addr]
}

// FetchOpcode reads a single byte as an opcode fetch.
//
// The distinction from Get is recorded for trace consumers only; the
// returned value is identical.
func (m *Memory) FetchOpcode(addr uint16) uint8 {
	return m.buf[addr]
}

// GetU16 returns a little-endian word.
func (m *Memory) GetU16(addr uint16) uint16 {
	l := m.Get(addr)
	h := m.Get(addr + 1)
	return (uint16(h) << 8) | uint16(l)
}

// SetU16 writes a little-endian word.
func (m *Memory) SetU16(addr uint16, val uint16) {
	m.Set(addr, uint8(val&0xFF))
	m.Set(addr+1, uint8(val>>8))
}

// SetRange copies bytes starting at addr.
func (m *Memory) SetRange(addr uint16, data ...uint8) {
	for i, b := range data {
		m.buf[uint16(int(addr)+i)] = b
	}
}

// FillRange fills size bytes starting at addr with a repeated byte.
func (m *Memory) FillRange(addr uint16, size int, char uint8) {
	for size > 0 {
		m.buf[addr] = char
		addr++
		size--
	}
}

// GetRange returns a copy of size bytes starting at addr.
func (m *Memory) GetRange(addr uint16, size int) []uint8 {
	ret := make([]uint8, 0, size)
	for size > 0 {
		ret = append(ret, m.buf[addr])
		addr++
		size--
	}
	return ret
}

// LoadFile zeroes the address space and loads a file at the given address,
// truncating to TPASize bytes if the file is larger.
func (m *Memory) LoadFile(addr uint16, name string) error {
	for i := range m.buf {
		m.buf[i] = 0x00
	}

	prog, err := os.ReadFile(name)
	if err != nil {
		return err
	}

	if len(prog) > TPASize {
		prog = prog[:TPASize]
	}

	m.SetRange(addr, prog...)
	return nil
}

// Save writes a slice of the address space to a file, for --save-memory.
func (m *Memory) Save(path string, start, end uint32) error {
	if end <= start || end > 0x10000 {
		return fmt.Errorf("invalid memory range 0x%04X-0x%04X", start, end)
	}
	return os.WriteFile(path, m.buf[start:end], 0644)
}
