package cpm

import (
	"errors"
	"io"
	"os"

	"github.com/qkcoder/cpmemu/consolein"
	"github.com/qkcoder/cpmemu/fcb"
	"github.com/qkcoder/cpmemu/filemap"
)

// recordSize is the CP/M logical record length used by sequential and
// random read/write.
const recordSize = 128

// CPM version reported by BDOS function 12: major 2, minor 2.
const cpmVersion = 0x0022

// dispatchBDOS reads the function number out of C, the parameter out of
// DE, runs the matching handler, and simulates the RET the guest's CALL
// 0x0005 is expecting by popping the return address off the stack.
func (c *CPM) dispatchBDOS() error {
	fn := int(c.CPU.Reg.BC.Lo)
	de := c.CPU.Reg.DE.U16()

	if c.debugBDOS[fn] {
		c.Logger.Debug("bdos call", "function", fn, "de", de)
	}

	switch fn {
	case 0:
		return ErrExit
	case 1:
		return c.bdosConsoleInput()
	case 2:
		return c.bdosConsoleOutput(de)
	case 5:
		return c.bdosPrinterOutput(de)
	case 6:
		return c.bdosDirectConsoleIO(de)
	case 9:
		return c.bdosPrintString(de)
	case 10:
		return c.bdosReadLine(de)
	case 11:
		return c.bdosConsoleStatus()
	case 12:
		return c.bdosVersion()
	case 13:
		return c.bdosResetDisk()
	case 14:
		return c.bdosSelectDrive(de)
	case 15:
		return c.bdosOpen(de)
	case 16:
		return c.bdosClose(de)
	case 17:
		return c.bdosSearchFirst(de)
	case 18:
		return c.bdosSearchNext(de)
	case 19:
		return c.bdosDelete(de)
	case 20:
		return c.bdosReadSequential(de)
	case 21:
		return c.bdosWriteSequential(de)
	case 22:
		return c.bdosMake(de)
	case 23:
		return c.bdosRename(de)
	case 25:
		return c.bdosCurrentDrive()
	case 26:
		return c.bdosSetDMA(de)
	case 32:
		return c.bdosGetSetUser(de)
	case 33:
		return c.bdosReadRandom(de)
	case 34:
		return c.bdosWriteRandom(de)
	case 35:
		return c.bdosComputeFileSize(de)
	case 36:
		return c.bdosSetRandomRecord(de)
	case 40:
		return c.bdosWriteRandomZeroFill(de)
	default:
		return c.bdosStub()
	}
}

// ret pops the return address pushed by the guest's CALL and resumes
// execution there, simulating the RET the trapped jump vector never
// actually executed.
func (c *CPM) ret() error {
	sp := c.CPU.Reg.SP.U16()
	addr := c.Memory.GetU16(sp)
	c.CPU.Reg.SP.SetU16(sp + 2)
	c.CPU.Reg.PC.SetU16(addr)
	return nil
}

func (c *CPM) bdosStub() error {
	c.CPU.Reg.SetA(0x00)
	return c.ret()
}

// --- console functions ---

func (c *CPM) bdosConsoleInput() error {
	b, err := c.input.BlockForCharacterWithEcho()
	if err != nil {
		return err
	}
	c.CPU.Reg.SetA(b)
	return c.ret()
}

func (c *CPM) bdosConsoleOutput(de uint16) error {
	c.output.PutCharacter(uint8(de & 0xFF))
	return c.ret()
}

func (c *CPM) bdosDirectConsoleIO(de uint16) error {
	e := uint8(de & 0xFF)
	switch e {
	case 0xFF:
		if c.input.PendingInput() {
			b, err := c.input.BlockForCharacterNoEcho()
			if err != nil {
				return err
			}
			c.CPU.Reg.SetA(b)
		} else {
			c.CPU.Reg.SetA(0x00)
		}
	default:
		c.output.PutCharacter(e)
	}
	return c.ret()
}

func (c *CPM) bdosConsoleStatus() error {
	if c.input.PendingInput() {
		c.CPU.Reg.SetA(0xFF)
	} else {
		c.CPU.Reg.SetA(0x00)
	}
	return c.ret()
}

func (c *CPM) bdosPrintString(de uint16) error {
	addr := de
	for {
		ch := c.Memory.Get(addr)
		if ch == '$' {
			break
		}
		c.output.PutCharacter(ch)
		addr++
	}
	return c.ret()
}

func (c *CPM) bdosReadLine(de uint16) error {
	max := c.Memory.Get(de)
	line, err := c.input.ReadLine(max)
	if err != nil {
		if errors.Is(err, consolein.ErrInterrupted) {
			return ErrExit
		}
		return err
	}
	c.Memory.Set(de+1, uint8(len(line)))
	for i := 0; i < len(line); i++ {
		c.Memory.Set(de+2+uint16(i), line[i])
	}
	return c.ret()
}

func (c *CPM) bdosVersion() error {
	c.CPU.Reg.HL.SetU16(cpmVersion)
	return c.ret()
}

func (c *CPM) bdosPrinterOutput(de uint16) error {
	if c.printerPath != "" {
		f, err := os.OpenFile(c.printerPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			_, _ = f.Write([]byte{uint8(de & 0xFF)})
			_ = f.Close()
		}
	}
	return c.ret()
}

// --- drive/user bookkeeping (single current directory: spec.md's
// multi-drive-filesystem Non-goal means these exist only for guest
// protocol compliance, not real routing) ---

func (c *CPM) bdosResetDisk() error {
	c.currentDrive = 0
	c.dma = DefaultDMAAddress
	return c.ret()
}

func (c *CPM) bdosSelectDrive(de uint16) error {
	c.currentDrive = uint8(de & 0xFF)
	c.CPU.Reg.SetA(0x00)
	return c.ret()
}

func (c *CPM) bdosCurrentDrive() error {
	c.CPU.Reg.SetA(c.currentDrive)
	return c.ret()
}

func (c *CPM) bdosSetDMA(de uint16) error {
	c.dma = de
	return c.ret()
}

func (c *CPM) bdosGetSetUser(de uint16) error {
	e := uint8(de & 0xFF)
	if e == 0xFF {
		c.CPU.Reg.SetA(c.userNumber)
	} else {
		c.userNumber = e & 0x1F
	}
	return c.ret()
}

// --- file operations ---

func (c *CPM) readFCB(addr uint16) fcb.FCB {
	return fcb.FromBytes(c.Memory.GetRange(addr, fcb.SIZE))
}

func (c *CPM) bdosOpen(de uint16) error {
	f := c.readFCB(de)
	host, mode, found := c.fileMap.Resolve(f.GetFileName())
	if !found {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	c.files[de] = &OpenFile{Host: host, Mode: mode, EOLConvert: mode == filemap.Text}
	c.Memory.Set(de+32, 0x00) // Cr
	c.CPU.Reg.SetA(0x00)
	return c.ret()
}

func (c *CPM) bdosClose(de uint16) error {
	delete(c.files, de)
	c.CPU.Reg.SetA(0x00)
	return c.ret()
}

func (c *CPM) bdosMake(de uint16) error {
	f := c.readFCB(de)
	name := f.GetFileName()
	host, mode, _ := c.fileMap.Resolve(name)

	file, err := os.OpenFile(host, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	_ = file.Close()

	c.files[de] = &OpenFile{Host: host, Mode: mode, EOLConvert: mode == filemap.Text}
	c.Memory.Set(de+32, 0x00)
	c.CPU.Reg.SetA(0x00)
	return c.ret()
}

func (c *CPM) bdosDelete(de uint16) error {
	f := c.readFCB(de)
	host, _, found := c.fileMap.Resolve(f.GetFileName())
	if !found {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	if err := os.Remove(host); err != nil {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	c.CPU.Reg.SetA(0x00)
	return c.ret()
}

func (c *CPM) bdosRename(de uint16) error {
	f := c.readFCB(de)
	newF := fcb.FromBytes(c.Memory.GetRange(de+16, fcb.SIZE))

	oldHost, _, found := c.fileMap.Resolve(f.GetFileName())
	if !found {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	newHost, _, _ := c.fileMap.Resolve(newF.GetFileName())

	if err := os.Rename(oldHost, newHost); err != nil {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	c.CPU.Reg.SetA(0x00)
	return c.ret()
}

func (c *CPM) bdosSearchFirst(de uint16) error {
	f := c.readFCB(de)
	matches, err := f.GetMatches(c.fileMap.Dir)
	if err != nil || len(matches) == 0 {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	c.search = &searchState{matches: matches}
	return c.returnSearchHit()
}

func (c *CPM) bdosSearchNext(de uint16) error {
	if c.search == nil {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	c.search.cursor++
	return c.returnSearchHit()
}

func (c *CPM) returnSearchHit() error {
	if c.search == nil || c.search.cursor >= len(c.search.matches) {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	hit := c.search.matches[c.search.cursor]
	result := fcb.FromString(hit.Name)
	c.Memory.SetRange(c.dma, result.AsBytes()...)
	c.CPU.Reg.SetA(uint8(c.search.cursor))
	return c.ret()
}

func (c *CPM) openHostFile(addr uint16) (*OpenFile, bool) {
	of, ok := c.files[addr]
	return of, ok
}

func (c *CPM) bdosReadSequential(de uint16) error {
	of, ok := c.openHostFile(de)
	if !ok {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	f := c.readFCB(de)
	offset := int64(f.GetSequentialOffset()) * recordSize

	data, status := c.readRecord(of, offset)
	c.Memory.SetRange(c.dma, data...)
	if status == 0 {
		f.IncreaseSequentialOffset()
		c.writeFCBBack(de, f)
	}
	c.CPU.Reg.SetA(status)
	return c.ret()
}

func (c *CPM) bdosWriteSequential(de uint16) error {
	of, ok := c.openHostFile(de)
	if !ok {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	f := c.readFCB(de)
	offset := int64(f.GetSequentialOffset()) * recordSize

	buf := c.Memory.GetRange(c.dma, recordSize)
	status := c.writeRecord(of, offset, buf)
	if status == 0 {
		f.IncreaseSequentialOffset()
		c.writeFCBBack(de, f)
	}
	c.CPU.Reg.SetA(status)
	return c.ret()
}

func (c *CPM) bdosReadRandom(de uint16) error {
	return c.randomIO(de, false, false)
}

func (c *CPM) bdosWriteRandom(de uint16) error {
	return c.randomIO(de, true, false)
}

func (c *CPM) bdosWriteRandomZeroFill(de uint16) error {
	return c.randomIO(de, true, true)
}

func (c *CPM) randomIO(de uint16, write, zeroFill bool) error {
	of, ok := c.openHostFile(de)
	if !ok {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}

	r0 := c.Memory.Get(de + 33)
	r1 := c.Memory.Get(de + 34)
	r2 := c.Memory.Get(de + 35)
	record := uint32(r0) | uint32(r1)<<8 | uint32(r2)<<16
	offset := int64(record) * recordSize

	if write {
		buf := c.Memory.GetRange(c.dma, recordSize)
		if zeroFill {
			if fi, err := os.Stat(of.Host); err == nil && fi.Size() < offset {
				if f, err := os.OpenFile(of.Host, os.O_WRONLY, 0644); err == nil {
					_ = f.Truncate(offset)
					_ = f.Close()
				}
			}
		}
		status := c.writeRecord(of, offset, buf)
		c.CPU.Reg.SetA(status)
		return c.ret()
	}

	data, status := c.readRecord(of, offset)
	c.Memory.SetRange(c.dma, data...)
	c.CPU.Reg.SetA(status)
	return c.ret()
}

func (c *CPM) bdosComputeFileSize(de uint16) error {
	f := c.readFCB(de)
	host, _, found := c.fileMap.Resolve(f.GetFileName())
	if !found {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	fi, err := os.Stat(host)
	if err != nil {
		c.CPU.Reg.SetA(0xFF)
		return c.ret()
	}
	records := uint32(fi.Size()+recordSize-1) / recordSize
	c.Memory.Set(de+33, uint8(records&0xFF))
	c.Memory.Set(de+34, uint8((records>>8)&0xFF))
	c.Memory.Set(de+35, uint8((records>>16)&0xFF))
	c.CPU.Reg.SetA(0x00)
	return c.ret()
}

func (c *CPM) bdosSetRandomRecord(de uint16) error {
	f := c.readFCB(de)
	offset := f.GetSequentialOffset()
	c.Memory.Set(de+33, uint8(offset&0xFF))
	c.Memory.Set(de+34, uint8((offset>>8)&0xFF))
	c.Memory.Set(de+35, uint8((offset>>16)&0xFF))
	return c.ret()
}

func (c *CPM) writeFCBBack(addr uint16, f fcb.FCB) {
	c.Memory.SetRange(addr, f.AsBytes()...)
}

// readRecord reads one 128-byte logical record at offset, applying TEXT
// EOL translation and ^Z padding; returns a BDOS status byte (0 ok, 1 EOF,
// 0xFF when the host file cannot be opened).
func (c *CPM) readRecord(of *OpenFile, offset int64) ([]uint8, uint8) {
	file, err := os.Open(of.Host)
	if err != nil {
		return make([]uint8, recordSize), 0xFF
	}
	defer file.Close()

	if of.EOFSeen {
		return paddedEOF(), 1
	}

	buf := make([]uint8, recordSize)
	n, err := file.ReadAt(buf, offset)
	if n == 0 && err != nil && err != io.EOF {
		return paddedEOF(), 1
	}
	if n == 0 {
		return paddedEOF(), 1
	}
	buf = buf[:n]

	if of.EOLConvert {
		buf = filemap.TranslateRead(buf)
	}
	if idx := indexOf(buf, filemap.EOFMarker); idx >= 0 {
		buf = buf[:idx]
		of.EOFSeen = true
	}
	buf = filemap.PadRecord(buf, recordSize)
	return buf, 0
}

func paddedEOF() []uint8 {
	return filemap.PadRecord(nil, recordSize)
}

func indexOf(buf []uint8, b uint8) int {
	for i, v := range buf {
		if v == b {
			return i
		}
	}
	return -1
}

// writeRecord writes one 128-byte logical record at offset, reversing
// TEXT EOL translation first; returns a BDOS status byte.
func (c *CPM) writeRecord(of *OpenFile, offset int64, buf []uint8) uint8 {
	if of.EOLConvert {
		buf = filemap.TranslateWrite(buf)
	}

	file, err := os.OpenFile(of.Host, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0xFF
	}
	defer file.Close()

	if _, err := file.WriteAt(buf, offset); err != nil {
		return 0xFF
	}
	return 0x00
}
