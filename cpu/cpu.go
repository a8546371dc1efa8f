package cpu

import "fmt"

// Memory is the address-space contract the interpreter executes against;
// satisfied by *memory.Memory.
type Memory interface {
	Get(addr uint16) uint8
	Set(addr uint16, v uint8)
	FetchOpcode(addr uint16) uint8
	GetU16(addr uint16) uint16
	SetU16(addr uint16, v uint16)
}

// Ports is the 8-bit I/O address space used by IN/OUT.
type Ports interface {
	In(port uint8) uint8
	Out(port uint8, v uint8)
}

// HaltFunc is invoked whenever the decoder hits HLT/HALT.
type HaltFunc func(c *CPU) error

// CPU couples a Registers bank to a Memory and Ports implementation and
// drives the fetch/decode/execute loop.
type CPU struct {
	Reg   Registers
	Mem   Memory
	IO    Ports
	Halt  HaltFunc

	// BreakPoints names the emulator's BDOS/BIOS trap addresses; Step
	// itself does not consult it.
	BreakPoints map[uint16]bool

	intPending  bool
	intVector   uint8
	nmiPending  bool
	eiJustRan   bool
	halted      bool
}

// New builds a CPU in the given mode.
func New(mode Mode, mem Memory, io Ports) *CPU {
	c := &CPU{Mem: mem, IO: io, BreakPoints: map[uint16]bool{}}
	c.Reg.Mode = mode
	c.Reg.SP.SetU16(0xFFFE)
	return c
}

// AtBreakpoint reports whether PC currently sits on a registered trap
// address. The cpm step loop does not call it: it compares PC against
// its trap addresses directly.
func (c *CPU) AtBreakpoint() bool {
	return c.BreakPoints[c.Reg.PC.U16()]
}

func (c *CPU) fetch8() uint8 {
	v := c.Mem.FetchOpcode(c.Reg.PC.U16())
	c.Reg.PC.SetU16(c.Reg.PC.U16() + 1)
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch8()
	hi := c.fetch8()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) push(v uint16) {
	sp := c.Reg.SP.U16() - 2
	c.Reg.SP.SetU16(sp)
	c.Mem.SetU16(sp, v)
}

func (c *CPU) pop() uint16 {
	sp := c.Reg.SP.U16()
	v := c.Mem.GetU16(sp)
	c.Reg.SP.SetU16(sp + 2)
	return v
}

// RequestInt arms a maskable interrupt with the given IM0 vector byte
// (typically a one-byte RST opcode); delivered at the next CheckInterrupts
// call if IFF1 is set.
func (c *CPU) RequestInt(vector uint8) {
	c.intPending = true
	c.intVector = vector
}

// RequestNMI arms a non-maskable interrupt, delivered regardless of IFF1.
func (c *CPU) RequestNMI() {
	c.nmiPending = true
}

// RequestRST is a convenience wrapper for periodic-tick schedulers: it
// arms an IM0-style interrupt whose vector byte is the one-byte RST n
// instruction (0xC7 | n<<3).
func (c *CPU) RequestRST(n uint8) {
	c.RequestInt(0xC7 | (n << 3 & 0x38))
}

// CheckInterrupts delivers any pending interrupt; must be called only
// between instructions, and is suppressed for one instruction after EI
// per the documented one-instruction delay.
func (c *CPU) CheckInterrupts() error {
	if c.eiJustRan {
		c.eiJustRan = false
		return nil
	}

	if c.nmiPending {
		c.nmiPending = false
		c.halted = false
		c.push(c.Reg.PC.U16())
		c.Reg.IFF1 = false
		c.Reg.PC.SetU16(0x0066)
		return nil
	}

	if c.intPending && c.Reg.IFF1 {
		c.intPending = false
		c.halted = false
		c.Reg.IFF1 = false
		c.Reg.IFF2 = false

		switch c.Reg.IM {
		case 0:
			return c.executeOpcode(c.intVector)
		case 1:
			c.push(c.Reg.PC.U16())
			c.Reg.PC.SetU16(0x0038)
		case 2:
			c.push(c.Reg.PC.U16())
			addr := uint16(c.Reg.I)<<8 | uint16(c.intVector&0xFE)
			c.Reg.PC.SetU16(c.Mem.GetU16(addr))
		}
	}
	return nil
}

// Step fetches and executes exactly one instruction (including any
// prefix bytes), then runs CheckInterrupts.
func (c *CPU) Step() error {
	if c.halted {
		c.Reg.Cycles += 4
		return c.CheckInterrupts()
	}

	op := c.fetch8()
	if err := c.executeOpcode(op); err != nil {
		return err
	}
	c.Reg.Cycles += 5
	return c.CheckInterrupts()
}

// ErrHalted flags that execution stopped at HLT without a Halt hook.
var (
	ErrHalted = fmt.Errorf("cpu: halted with no HLT handler installed")
)

func unknownOpcode(prefix string, op uint8, pc uint16) error {
	return fmt.Errorf("cpu: unknown opcode %s%02X at PC=%04X", prefix, op, pc)
}
