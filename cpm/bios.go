package cpm

// dispatchBIOS runs the handler for the trap vector at the given jump-table
// offset. BOOT/WBOOT are entered via JP (no return address on the stack);
// everything else is entered via CALL and must simulate its RET.
func (c *CPM) dispatchBIOS(offset int) error {
	if c.debugBIOS[offset] {
		c.Logger.Debug("bios call", "offset", offset)
	}

	switch offset {
	case biosBOOT, biosWBOOT:
		return ErrBoot
	case biosCONST:
		return c.biosConsoleStatus()
	case biosCONIN:
		return c.biosConsoleInput()
	case biosCONOUT:
		return c.biosConsoleOutput()
	case biosLIST:
		return c.biosListOutput()
	case biosPUNCH:
		return c.biosAuxOutput()
	case biosREADER:
		return c.biosAuxInput()
	case biosHOME:
		return c.biosDiskNoop()
	case biosSELDSK:
		return c.biosSelectDisk()
	case biosSETTRK, biosSETSEC, biosSETDMA:
		return c.biosDiskNoop()
	case biosREAD, biosWRITE:
		return c.biosDiskIO()
	case biosLISTST:
		return c.biosListStatus()
	case biosSECTRAN:
		return c.biosSectorTranslate()
	default:
		return c.ret()
	}
}

func (c *CPM) biosConsoleStatus() error {
	if c.input.PendingInput() {
		c.CPU.Reg.SetA(0xFF)
	} else {
		c.CPU.Reg.SetA(0x00)
	}
	return c.ret()
}

func (c *CPM) biosConsoleInput() error {
	b, err := c.input.BlockForCharacterNoEcho()
	if err != nil {
		return err
	}
	c.CPU.Reg.SetA(b)
	return c.ret()
}

func (c *CPM) biosConsoleOutput() error {
	c.output.PutCharacter(c.CPU.Reg.BC.Lo)
	return c.ret()
}

func (c *CPM) biosListOutput() error {
	return c.bdosPrinterOutput(uint16(c.CPU.Reg.BC.Lo))
}

func (c *CPM) biosAuxOutput() error {
	return c.ret()
}

func (c *CPM) biosAuxInput() error {
	c.CPU.Reg.SetA(0x1A) // EOF marker: no aux reader wired
	return c.ret()
}

func (c *CPM) biosListStatus() error {
	c.CPU.Reg.SetA(0xFF) // always ready
	return c.ret()
}

// biosDiskNoop backs HOME/SETTRK/SETSEC/SETDMA: position-setting calls
// that have nothing to do against a single flat host directory.
func (c *CPM) biosDiskNoop() error {
	return c.ret()
}

// biosSelectDisk returns the DPH address for drive A and zero for every
// other drive, matching the single-current-directory model: there is
// only ever one visible drive.
func (c *CPM) biosSelectDisk() error {
	drive := c.CPU.Reg.BC.Lo
	if drive == 0 {
		c.CPU.Reg.HL.SetU16(dphAddress)
	} else {
		c.CPU.Reg.HL.SetU16(0x0000)
	}
	return c.ret()
}

// biosDiskIO backs READ/WRITE: real sector-addressed disk I/O is out of
// scope (the BDOS file functions handle all guest file access directly),
// so the result is governed entirely by the configured disk policy.
func (c *CPM) biosDiskIO() error {
	switch c.diskPolicy {
	case DiskOK:
		c.CPU.Reg.SetA(0x00)
	case DiskFail:
		c.CPU.Reg.SetA(0x01)
	case DiskError:
		return ErrDiskFatal
	}
	return c.ret()
}

func (c *CPM) biosSectorTranslate() error {
	c.CPU.Reg.HL.SetU16(c.CPU.Reg.BC.U16())
	return c.ret()
}

// dphAddress is a fixed, unpopulated Disk Parameter Header location
// reported for drive A by SELDSK; no guest code observed in practice
// reads through it, since file access never goes through the BIOS disk
// primitives in this emulator.
const dphAddress uint16 = 0xFE00
