package cpu

// executeED implements the ED-prefixed family: 16-bit ADC/SBC, extended
// memory loads, NEG, interrupt-mode/vector setup, the R/I transfer
// instructions, RRD/RLD, and the block load/compare/IO groups.
func (c *CPU) executeED(op uint8) error {
	switch {
	case op&0xCF == 0x43: // LD (nn),ss
		c.Mem.SetU16(c.fetch16(), c.reg16(op>>4, idxNone).U16())
		return nil
	case op&0xCF == 0x4B: // LD ss,(nn)
		c.reg16(op>>4, idxNone).SetU16(c.Mem.GetU16(c.fetch16()))
		return nil
	case op&0xCF == 0x42: // SBC HL,ss
		hl := &c.Reg.HL
		hl.SetU16(c.Reg.SetFlagsFromSbc16(hl.U16(), c.reg16(op>>4, idxNone).U16(), c.Reg.F()&FlagC != 0))
		return nil
	case op&0xCF == 0x4A: // ADC HL,ss
		hl := &c.Reg.HL
		hl.SetU16(c.Reg.SetFlagsFromAdc16(hl.U16(), c.reg16(op>>4, idxNone).U16(), c.Reg.F()&FlagC != 0))
		return nil
	case op&0xC7 == 0x44: // NEG (and duplicate encodings)
		a := c.Reg.A()
		c.Reg.SetA(c.Reg.SetFlagsFromDiff8(0, a, false))
		return nil
	case op&0xC7 == 0x46: // IM 0/1/2 (and duplicate encodings)
		table := [4]uint8{0, 0, 1, 2}
		c.Reg.IM = table[(op>>3)&0x03]
		return nil
	case op&0xCF == 0x45: // RETN (and duplicates); 0x4D specifically is RETI
		c.Reg.PC.SetU16(c.pop())
		c.Reg.IFF1 = c.Reg.IFF2
		return nil
	}

	switch op {
	case 0x47: // LD I,A
		c.Reg.I = c.Reg.A()
	case 0x4F: // LD R,A
		c.Reg.R = c.Reg.A()
	case 0x57: // LD A,I
		c.Reg.SetA(c.Reg.I)
		c.Reg.SetFlagsFromLdAIR(c.Reg.I)
	case 0x5F: // LD A,R
		c.Reg.SetA(c.Reg.R)
		c.Reg.SetFlagsFromLdAIR(c.Reg.R)
	case 0x4D: // RETI
		c.Reg.PC.SetU16(c.pop())
		c.Reg.IFF1 = c.Reg.IFF2
	case 0x67: // RRD
		hl := c.Reg.HL.U16()
		mem := c.Mem.Get(hl)
		a := c.Reg.A()
		newMem := (a<<4)&0xF0 | (mem>>4)&0x0F
		newA := (a & 0xF0) | (mem & 0x0F)
		c.Mem.Set(hl, newMem)
		c.Reg.SetA(newA)
		c.Reg.SetFlagsFromLogic8(newA, false)
	case 0x6F: // RLD
		hl := c.Reg.HL.U16()
		mem := c.Mem.Get(hl)
		a := c.Reg.A()
		newMem := (mem<<4)&0xF0 | (a & 0x0F)
		newA := (a & 0xF0) | (mem>>4)&0x0F
		c.Mem.Set(hl, newMem)
		c.Reg.SetA(newA)
		c.Reg.SetFlagsFromLogic8(newA, false)
	case 0xA0, 0xB0: // LDI / LDIR
		c.blockLD(1, op == 0xB0)
	case 0xA8, 0xB8: // LDD / LDDR
		c.blockLD(-1, op == 0xB8)
	case 0xA1, 0xB1: // CPI / CPIR
		c.blockCP(1, op == 0xB1)
	case 0xA9, 0xB9: // CPD / CPDR
		c.blockCP(-1, op == 0xB9)
	case 0xA2, 0xA3, 0xAA, 0xAB, 0xB2, 0xB3, 0xBA, 0xBB:
		// INI/OUTI/IND/OUTD and their repeating forms: acknowledged no-ops.
	default:
		return unknownOpcode("ED", op, c.Reg.PC.U16())
	}
	return nil
}

func (c *CPU) blockLD(step int16, repeat bool) {
	hl := c.Reg.HL.U16()
	de := c.Reg.DE.U16()
	bc := c.Reg.BC.U16()

	v := c.Mem.Get(hl)
	c.Mem.Set(de, v)

	c.Reg.HL.SetU16(uint16(int32(hl) + int32(step)))
	c.Reg.DE.SetU16(uint16(int32(de) + int32(step)))
	bc--
	c.Reg.BC.SetU16(bc)

	c.Reg.SetFlagsFromBlockLD(c.Reg.A(), v, bc)

	if repeat && bc != 0 {
		c.Reg.PC.SetU16(c.Reg.PC.U16() - 2)
	}
}

func (c *CPU) blockCP(step int16, repeat bool) {
	hl := c.Reg.HL.U16()
	bc := c.Reg.BC.U16()

	v := c.Mem.Get(hl)
	a := c.Reg.A()

	c.Reg.HL.SetU16(uint16(int32(hl) + int32(step)))
	bc--
	c.Reg.BC.SetU16(bc)

	c.Reg.SetFlagsFromBlockCP(a, v, bc)

	if repeat && bc != 0 && a != v {
		c.Reg.PC.SetU16(c.Reg.PC.U16() - 2)
	}
}
