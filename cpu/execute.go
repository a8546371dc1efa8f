package cpu

// executeOpcode runs the instruction whose first opcode byte is op,
// consuming the DD/FD/CB/ED prefix chain per the grammar
// (DD|FD)* [ED | CB (disp CB)?] opcode.
func (c *CPU) executeOpcode(op uint8) error {
	idx := idxNone

	for i := 0; i < 8; i++ {
		switch op {
		case 0xDD:
			idx = idxIX
			op = c.fetch8()
			continue
		case 0xFD:
			idx = idxIY
			op = c.fetch8()
			continue
		}
		break
	}

	switch op {
	case 0xCB:
		if c.Reg.Mode == Mode8080 {
			c.fetch8()
			return nil
		}
		if idx != idxNone {
			disp := int8(c.fetch8())
			cbOp := c.fetch8()
			return c.executeCB(idx, disp, cbOp)
		}
		cbOp := c.fetch8()
		return c.executeCB(idxNone, 0, cbOp)
	case 0xED:
		edOp := c.fetch8()
		if c.Reg.Mode == Mode8080 {
			return nil
		}
		return c.executeED(edOp)
	}

	return c.executeMain(op, idx)
}

func (c *CPU) aluOp(sel uint8, val uint8) {
	a := c.Reg.A()
	switch sel {
	case 0: // ADD
		c.Reg.SetA(c.Reg.SetFlagsFromSum8(a, val, false))
	case 1: // ADC
		c.Reg.SetA(c.Reg.SetFlagsFromSum8(a, val, c.Reg.F()&FlagC != 0))
	case 2: // SUB
		c.Reg.SetA(c.Reg.SetFlagsFromDiff8(a, val, false))
	case 3: // SBC
		c.Reg.SetA(c.Reg.SetFlagsFromDiff8(a, val, c.Reg.F()&FlagC != 0))
	case 4: // AND
		r := a & val
		c.Reg.SetA(r)
		c.Reg.SetFlagsFromLogic8(r, true)
	case 5: // XOR
		r := a ^ val
		c.Reg.SetA(r)
		c.Reg.SetFlagsFromLogic8(r, false)
	case 6: // OR
		r := a | val
		c.Reg.SetA(r)
		c.Reg.SetFlagsFromLogic8(r, false)
	case 7: // CP
		result := c.Reg.SetFlagsFromDiff8(a, val, false)
		_ = result
		f := c.Reg.F()
		f = setBit(f, FlagX, val&FlagX != 0)
		f = setBit(f, FlagY, val&FlagY != 0)
		c.Reg.SetF(f)
	}
}

func (c *CPU) incDec8(v uint8, inc bool) uint8 {
	var result uint8
	var halfCarry bool
	if inc {
		result = v + 1
		halfCarry = (v & 0x0F) == 0x0F
	} else {
		result = v - 1
		halfCarry = (v & 0x0F) == 0x00
	}
	c.Reg.SetZSPFromIncDec(result, halfCarry, inc)
	return result
}

// executeMain handles every opcode outside the CB/ED-prefixed families.
func (c *CPU) executeMain(op uint8, idx idxMode) error {
	switch {
	case op == 0x00: // NOP
		return nil
	case op == 0x76: // HLT
		c.halted = true
		if c.Halt != nil {
			return c.Halt(c)
		}
		return ErrHalted
	case op&0xC0 == 0x40: // LD r,r'
		dst := (op >> 3) & 0x07
		src := op & 0x07
		disp := int8(0)
		if idx != idxNone && (dst == 6 || src == 6) {
			disp = int8(c.fetch8())
		}
		v := c.reg8(src, idx, disp)
		c.setReg8(dst, idx, disp, v)
		return nil
	case op&0xC0 == 0x80: // ALU A,r
		sel := op & 0x07
		disp := int8(0)
		if idx != idxNone && sel == 6 {
			disp = int8(c.fetch8())
		}
		c.aluOp((op>>3)&0x07, c.reg8(sel, idx, disp))
		return nil
	case op&0xC7 == 0x06: // LD r,n
		n := c.fetch8()
		if op&0x38 == 0x30 { // LD (HL),n / LD (IX+d),n
			disp := int8(0)
			if idx != idxNone {
				disp = int8(n)
				n = c.fetch8()
			}
			c.setReg8(op>>3, idx, disp, n)
			return nil
		}
		c.setReg8(op>>3, idx, 0, n)
		return nil
	case op&0xC7 == 0x04: // INC r
		sel := op >> 3
		disp := int8(0)
		if idx != idxNone && sel&0x07 == 6 {
			disp = int8(c.fetch8())
		}
		v := c.reg8(sel, idx, disp)
		c.setReg8(sel, idx, disp, c.incDec8(v, true))
		return nil
	case op&0xC7 == 0x05: // DEC r
		sel := op >> 3
		disp := int8(0)
		if idx != idxNone && sel&0x07 == 6 {
			disp = int8(c.fetch8())
		}
		v := c.reg8(sel, idx, disp)
		c.setReg8(sel, idx, disp, c.incDec8(v, false))
		return nil
	case op&0xCF == 0x01: // LD dd,nn
		c.reg16(op>>4, idx).SetU16(c.fetch16())
		return nil
	case op&0xCF == 0x03: // INC ss
		p := c.reg16(op>>4, idx)
		p.SetU16(p.U16() + 1)
		return nil
	case op&0xCF == 0x0B: // DEC ss
		p := c.reg16(op>>4, idx)
		p.SetU16(p.U16() - 1)
		return nil
	case op&0xCF == 0x09: // ADD HL,ss
		hl := c.pairHL(idx)
		hl.SetU16(c.Reg.SetFlagsFromAdd16(hl.U16(), c.reg16(op>>4, idx).U16()))
		return nil
	case op&0xCF == 0xC5: // PUSH qq
		c.push(c.reg16AF(op>>4, idx).U16())
		return nil
	case op&0xCF == 0xC1: // POP qq
		c.reg16AF(op>>4, idx).SetU16(c.pop())
		return nil
	case op&0xC7 == 0xC0: // RET cc
		if condTrue(c, op>>3) {
			c.Reg.PC.SetU16(c.pop())
		}
		return nil
	case op&0xC7 == 0xC2: // JP cc,nn
		nn := c.fetch16()
		if condTrue(c, op>>3) {
			c.Reg.PC.SetU16(nn)
		}
		return nil
	case op&0xC7 == 0xC4: // CALL cc,nn
		nn := c.fetch16()
		if condTrue(c, op>>3) {
			c.push(c.Reg.PC.U16())
			c.Reg.PC.SetU16(nn)
		}
		return nil
	case op&0xC7 == 0xC7: // RST n
		n := op & 0x38
		c.push(c.Reg.PC.U16())
		c.Reg.PC.SetU16(uint16(n))
		return nil
	}

	switch op {
	case 0x02: // LD (BC),A
		c.Mem.Set(c.Reg.BC.U16(), c.Reg.A())
	case 0x12: // LD (DE),A
		c.Mem.Set(c.Reg.DE.U16(), c.Reg.A())
	case 0x0A: // LD A,(BC)
		c.Reg.SetA(c.Mem.Get(c.Reg.BC.U16()))
	case 0x1A: // LD A,(DE)
		c.Reg.SetA(c.Mem.Get(c.Reg.DE.U16()))
	case 0x07: // RLCA
		a := c.Reg.A()
		carry := a&0x80 != 0
		r := a<<1 | boolBit(carry)
		c.Reg.SetA(r)
		c.Reg.SetFlagsFromRotateAcc(r, carry)
	case 0x0F: // RRCA
		a := c.Reg.A()
		carry := a&0x01 != 0
		r := a>>1 | (boolBit(carry) << 7)
		c.Reg.SetA(r)
		c.Reg.SetFlagsFromRotateAcc(r, carry)
	case 0x17: // RLA
		a := c.Reg.A()
		oldC := c.Reg.F()&FlagC != 0
		carry := a&0x80 != 0
		r := a<<1 | boolBit(oldC)
		c.Reg.SetA(r)
		c.Reg.SetFlagsFromRotateAcc(r, carry)
	case 0x1F: // RRA
		a := c.Reg.A()
		oldC := c.Reg.F()&FlagC != 0
		carry := a&0x01 != 0
		r := a>>1 | (boolBit(oldC) << 7)
		c.Reg.SetA(r)
		c.Reg.SetFlagsFromRotateAcc(r, carry)
	case 0x08: // EX AF,AF'
		c.Reg.ExAFAF()
	case 0x10: // DJNZ e
		e := int8(c.fetch8())
		c.Reg.BC.Hi--
		if c.Reg.BC.Hi != 0 {
			c.Reg.PC.SetU16(uint16(int32(c.Reg.PC.U16()) + int32(e)))
		}
	case 0x18: // JR e
		e := int8(c.fetch8())
		c.Reg.PC.SetU16(uint16(int32(c.Reg.PC.U16()) + int32(e)))
	case 0x20, 0x28, 0x30, 0x38: // JR cc,e
		e := int8(c.fetch8())
		if condTrue(c, (op>>3)&0x03) {
			c.Reg.PC.SetU16(uint16(int32(c.Reg.PC.U16()) + int32(e)))
		}
	case 0x22: // LD (nn),HL
		c.Mem.SetU16(c.fetch16(), c.pairHL(idx).U16())
	case 0x2A: // LD HL,(nn)
		c.pairHL(idx).SetU16(c.Mem.GetU16(c.fetch16()))
	case 0x32: // LD (nn),A
		c.Mem.Set(c.fetch16(), c.Reg.A())
	case 0x3A: // LD A,(nn)
		c.Reg.SetA(c.Mem.Get(c.fetch16()))
	case 0x27: // DAA
		c.daa()
	case 0x2F: // CPL
		r := c.Reg.A() ^ 0xFF
		c.Reg.SetA(r)
		c.Reg.SetFlagsFromCPL(r)
	case 0x37: // SCF
		c.Reg.SetFlagsFromSCF(c.Reg.A())
	case 0x3F: // CCF
		c.Reg.SetFlagsFromCCF(c.Reg.A())
	case 0xC3: // JP nn
		c.Reg.PC.SetU16(c.fetch16())
	case 0xC9: // RET
		c.Reg.PC.SetU16(c.pop())
	case 0xCD: // CALL nn
		nn := c.fetch16()
		c.push(c.Reg.PC.U16())
		c.Reg.PC.SetU16(nn)
	case 0xC6: // ADD A,n
		c.aluOp(0, c.fetch8())
	case 0xCE: // ADC A,n
		c.aluOp(1, c.fetch8())
	case 0xD6: // SUB n
		c.aluOp(2, c.fetch8())
	case 0xDE: // SBC A,n
		c.aluOp(3, c.fetch8())
	case 0xE6: // AND n
		c.aluOp(4, c.fetch8())
	case 0xEE: // XOR n
		c.aluOp(5, c.fetch8())
	case 0xF6: // OR n
		c.aluOp(6, c.fetch8())
	case 0xFE: // CP n
		c.aluOp(7, c.fetch8())
	case 0xE3: // EX (SP),HL/IX/IY
		hl := c.pairHL(idx)
		v := c.Mem.GetU16(c.Reg.SP.U16())
		c.Mem.SetU16(c.Reg.SP.U16(), hl.U16())
		hl.SetU16(v)
	case 0xE9: // JP (HL)/(IX)/(IY)
		c.Reg.PC.SetU16(c.pairHL(idx).U16())
	case 0xEB: // EX DE,HL
		c.Reg.DE, c.Reg.HL = c.Reg.HL, c.Reg.DE
	case 0xD9: // EXX
		c.Reg.Exx()
	case 0xF9: // LD SP,HL/IX/IY
		c.Reg.SP.SetU16(c.pairHL(idx).U16())
	case 0xF3: // DI
		c.Reg.IFF1, c.Reg.IFF2 = false, false
	case 0xFB: // EI
		c.Reg.IFF1, c.Reg.IFF2 = true, true
		c.eiJustRan = true
	case 0xD3: // OUT (n),A
		n := c.fetch8()
		if c.IO != nil {
			c.IO.Out(n, c.Reg.A())
		}
	case 0xDB: // IN A,(n)
		n := c.fetch8()
		if c.IO != nil {
			c.Reg.SetA(c.IO.In(n))
		}
	default:
		return unknownOpcode("", op, c.Reg.PC.U16())
	}
	return nil
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (c *CPU) daa() {
	a := c.Reg.A()
	f := c.Reg.F()
	nFlag := f&FlagN != 0
	hFlag := f&FlagH != 0
	cFlag := f&FlagC != 0

	var adjust uint8
	carry := cFlag
	if hFlag || (a&0x0F) > 9 {
		adjust |= 0x06
	}
	if cFlag || a > 0x99 {
		adjust |= 0x60
		carry = true
	}

	var halfCarry bool
	var result uint8
	if nFlag {
		halfCarry = hFlag && (a&0x0F) < 6
		result = a - adjust
	} else {
		halfCarry = (a & 0x0F) > 9
		result = a + adjust
	}

	c.Reg.SetA(result)
	c.Reg.SetFlagsFromDAA(result, nFlag, halfCarry, carry)
}
