package cpu

import "testing"

// flatMemory is a minimal Memory implementation for unit tests, sized to
// the full address space so tests can freely poke arbitrary addresses.
type flatMemory struct {
	buf [65536]uint8
}

func (m *flatMemory) Get(addr uint16) uint8        { return m.buf[addr] }
func (m *flatMemory) Set(addr uint16, v uint8)     { m.buf[addr] = v }
func (m *flatMemory) FetchOpcode(addr uint16) uint8 { return m.buf[addr] }
func (m *flatMemory) GetU16(addr uint16) uint16 {
	return uint16(m.buf[addr]) | uint16(m.buf[addr+1])<<8
}
func (m *flatMemory) SetU16(addr uint16, v uint16) {
	m.buf[addr] = uint8(v)
	m.buf[addr+1] = uint8(v >> 8)
}

type nullPorts struct{}

func (nullPorts) In(uint8) uint8    { return 0xFF }
func (nullPorts) Out(uint8, uint8) {}

func newTestCPU(mode Mode, program ...uint8) (*CPU, *flatMemory) {
	mem := &flatMemory{}
	copy(mem.buf[0x0000:], program)
	c := New(mode, mem, nullPorts{})
	c.Reg.PC.SetU16(0x0000)
	return c, mem
}

func step(t *testing.T, c *CPU, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("step %d: unexpected error: %s", i, err)
		}
	}
}

func TestMVIAndALU(t *testing.T) {
	c, _ := newTestCPU(ModeZ80,
		0x3E, 0x05, // MVI A,5
		0xC6, 0x03, // ADD A,3
	)
	step(t, c, 2)
	if c.Reg.A() != 8 {
		t.Fatalf("expected A=8, got %d", c.Reg.A())
	}
	if c.Reg.F()&FlagZ != 0 {
		t.Fatalf("Z flag should not be set for a nonzero result")
	}
}

func TestZeroFlagOnSub(t *testing.T) {
	c, _ := newTestCPU(ModeZ80,
		0x3E, 0x05, // MVI A,5
		0xD6, 0x05, // SUB 5
	)
	step(t, c, 2)
	if c.Reg.A() != 0 {
		t.Fatalf("expected A=0, got %d", c.Reg.A())
	}
	if c.Reg.F()&FlagZ == 0 {
		t.Fatalf("Z flag should be set")
	}
}

func TestLXIAndStore(t *testing.T) {
	c, mem := newTestCPU(ModeZ80,
		0x11, 0x00, 0x02, // LXI D,0x0200
		0x3E, 0x42, // MVI A,0x42
		0x12, // LD (DE),A
	)
	step(t, c, 3)
	if mem.Get(0x0200) != 0x42 {
		t.Fatalf("expected memory at 0x0200 to hold 0x42, got %#x", mem.Get(0x0200))
	}
}

func TestLDRegToRegDirection(t *testing.T) {
	c, _ := newTestCPU(ModeZ80,
		0x3E, 0x07, // MVI A,7
		0x06, 0x00, // MVI B,0
		0x78, // LD A,B (must load B's old value into A, not overwrite B)
	)
	step(t, c, 3)
	if c.Reg.A() != 0 {
		t.Fatalf("LD A,B should copy B into A, got A=%#x", c.Reg.A())
	}
	if c.Reg.BC.Hi != 0 {
		t.Fatalf("LD A,B must not modify B, got B=%#x", c.Reg.BC.Hi)
	}
}

func TestLDIndexedDisplacementFetched(t *testing.T) {
	c, mem := newTestCPU(ModeZ80,
		0x21, 0x00, 0x02, // LXI H,0x0200
		0xDD, 0x21, 0x00, 0x02, // LXI IX,0x0200
		0x3E, 0x55, // MVI A,0x55
		0xDD, 0x77, 0x05, // LD (IX+5),A
		0xDD, 0x7E, 0x05, // LD A,(IX+5)
		0x3E, 0x00, // MVI A,0
	)
	step(t, c, 4)
	if mem.Get(0x0205) != 0x55 {
		t.Fatalf("expected (IX+5) to hold 0x55, got %#x", mem.Get(0x0205))
	}
	step(t, c, 1)
	if c.Reg.A() != 0x55 {
		t.Fatalf("expected LD A,(IX+5) to read back 0x55, got %#x", c.Reg.A())
	}
	// A trailing instruction must decode cleanly: if the displacement byte
	// had been left in the stream, this MVI would instead consume 0x00 as
	// its own opcode and desync.
	step(t, c, 1)
	if c.Reg.A() != 0 {
		t.Fatalf("instruction stream desynced after indexed op, A=%#x", c.Reg.A())
	}
}

func TestALUIndexedDisplacementFetched(t *testing.T) {
	c, _ := newTestCPU(ModeZ80,
		0xDD, 0x21, 0x00, 0x02, // LXI IX,0x0200
		0x3E, 0x10, // MVI A,0x10
		0xDD, 0x77, 0x03, // LD (IX+3),A  ; mem[0x203] = 0x10
		0x3E, 0x01, // MVI A,1
		0xDD, 0x86, 0x03, // ADD A,(IX+3)
	)
	step(t, c, 5)
	if c.Reg.A() != 0x11 {
		t.Fatalf("expected ADD A,(IX+3) to add 0x10, got A=%#x", c.Reg.A())
	}
}

func TestIncDecIndexedDisplacementFetched(t *testing.T) {
	c, mem := newTestCPU(ModeZ80,
		0xDD, 0x21, 0x00, 0x02, // LXI IX,0x0200
		0xDD, 0x34, 0x02, // INC (IX+2)
	)
	step(t, c, 2)
	if mem.Get(0x0202) != 1 {
		t.Fatalf("expected (IX+2) to be incremented to 1, got %#x", mem.Get(0x0202))
	}
}

func TestCallAndRet(t *testing.T) {
	c, _ := newTestCPU(ModeZ80,
		0xCD, 0x04, 0x00, // CALL 0x0004
		0x76,       // HLT (only reached after RET)
		0xC9,       // 0x0004: RET
	)
	c.Reg.SP.SetU16(0xFFFE)
	halted := false
	c.Halt = func(c *CPU) error { halted = true; return nil }

	step(t, c, 3)
	if !halted {
		t.Fatalf("expected HLT to run after CALL/RET, PC=%#x", c.Reg.PC.U16())
	}
}

func TestLDIRBlockCopy(t *testing.T) {
	mem := &flatMemory{}
	src := []uint8{0xAA, 0xBB, 0xCC, 0xDD}
	copy(mem.buf[0x1000:], src)

	c := New(ModeZ80, mem, nullPorts{})
	c.Reg.HL.SetU16(0x1000)
	c.Reg.DE.SetU16(0x2000)
	c.Reg.BC.SetU16(uint16(len(src)))
	mem.buf[0x0000] = 0xED
	mem.buf[0x0001] = 0xB0 // LDIR
	c.Reg.PC.SetU16(0x0000)

	// LDIR repeats by rewinding PC, so each Step copies one byte.
	for i := 0; i < len(src); i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}

	for i, want := range src {
		if got := mem.Get(0x2000 + uint16(i)); got != want {
			t.Fatalf("byte %d: got %#x want %#x", i, got, want)
		}
	}
	if c.Reg.BC.U16() != 0 {
		t.Fatalf("expected BC to reach zero, got %d", c.Reg.BC.U16())
	}
}

func TestEIDelaysOneCheckInterrupts(t *testing.T) {
	c, _ := newTestCPU(ModeZ80,
		0xFB, // EI
		0x00, // NOP
		0x00, // NOP
	)
	c.Reg.IM = 1
	c.RequestRST(7)

	// The interrupt must not be taken on the instruction immediately
	// after EI.
	step(t, c, 1)
	if c.Reg.PC.U16() == 0x0038 {
		t.Fatalf("interrupt fired immediately after EI, violating the one-instruction delay")
	}

	step(t, c, 1)
	if c.Reg.PC.U16() != 0x0038 {
		t.Fatalf("expected interrupt to fire on the following instruction, PC=%#x", c.Reg.PC.U16())
	}
}

func TestMode8080SuppressesXYFlags(t *testing.T) {
	c, _ := newTestCPU(Mode8080,
		0x3E, 0xFF, // MVI A,0xFF
	)
	step(t, c, 1)
	if c.Reg.F()&(FlagX|FlagY) != 0 {
		t.Fatalf("8080 mode must clear undocumented X/Y flags")
	}
}

func TestUnknownOpcodeReturnsError(t *testing.T) {
	c, _ := newTestCPU(ModeZ80, 0xED, 0xFF)
	if err := c.Step(); err == nil {
		t.Fatalf("expected an error for an unimplemented ED-prefixed opcode")
	}
}
