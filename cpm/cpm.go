// Package cpm implements the CP/M 2.2 BDOS/BIOS system-call bridge: guest
// low-memory fixup, trap-address interception, and the instruction step
// loop that drives the CPU core between traps.
package cpm

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/qkcoder/cpmemu/consolein"
	"github.com/qkcoder/cpmemu/consoleout"
	"github.com/qkcoder/cpmemu/cpu"
	"github.com/qkcoder/cpmemu/fcb"
	"github.com/qkcoder/cpmemu/filemap"
	"github.com/qkcoder/cpmemu/memory"
)

// Guest low-memory layout constants, per the reserved table in this
// project's design notes.
const (
	// DefaultDMAAddress is the DMA buffer base set at startup, shared
	// with the command-tail region.
	DefaultDMAAddress uint16 = 0x0080

	// TPABase is where a loaded .COM image starts executing.
	TPABase uint16 = 0x0100

	// bdosEntry is the fixed BDOS jump vector guests CALL into.
	bdosEntry uint16 = 0x0005

	// biosBase is the base of the 17-entry, 3-byte-per-entry BIOS jump
	// table guests CALL/JP into.
	biosBase uint16 = 0xFF00

	// biosVectorCount is the number of BIOS trap vectors installed.
	biosVectorCount = 17
)

// BIOS vector offsets, in the classic CP/M jump-table order.
const (
	biosBOOT = iota
	biosWBOOT
	biosCONST
	biosCONIN
	biosCONOUT
	biosLIST
	biosPUNCH
	biosREADER
	biosHOME
	biosSELDSK
	biosSETTRK
	biosSETSEC
	biosSETDMA
	biosREAD
	biosWRITE
	biosLISTST
	biosSECTRAN
)

// Sentinel errors surfaced by the BDOS/BIOS bridge and the step loop.
var (
	// ErrBoot signals a cold/warm boot request: the process should
	// terminate as if CP/M itself had rebooted.
	ErrBoot = errors.New("boot requested")

	// ErrExit signals an orderly exit: BDOS function 0, the ^C-threshold
	// cancellation path, or a ^C typed during BDOS function 10 line input
	// (that ^C ends the run and is not returned to the guest).
	ErrExit = errors.New("guest exit")

	// ErrDiskFatal signals a BIOS disk primitive invoked under the
	// "error" policy.
	ErrDiskFatal = errors.New("fatal disk error")

	// ErrInstructionLimit signals the safety instruction-count ceiling
	// was reached.
	ErrInstructionLimit = errors.New("instruction count limit reached")
)

// DiskPolicy selects how the BIOS disk primitive stubs behave.
type DiskPolicy int

const (
	DiskOK DiskPolicy = iota
	DiskFail
	DiskError
)

// OpenFile is a single entry in the open-file table, keyed by guest FCB
// address.
type OpenFile struct {
	Host       string
	Mode       filemap.Mode
	EOLConvert bool
	EOFSeen    bool
}

// searchState is the directory-search cursor used by BDOS functions 17/18.
type searchState struct {
	matches []fcb.Match
	cursor  int
}

// CPM holds every piece of state the BDOS/BIOS bridge and step loop need:
// the CPU core, guest memory, console drivers, the open-file table, and
// the configuration knobs read from the CLI/env/config file.
type CPM struct {
	Memory *memory.Memory
	CPU    *cpu.CPU

	input  *consolein.ConsoleIn
	output *consoleout.ConsoleOut

	fileMap *filemap.FileMap
	files   map[uint16]*OpenFile
	search  *searchState

	dma          uint16
	currentDrive uint8
	userNumber   uint8

	printerPath string
	auxInPath   string
	auxOutPath  string
	diskPolicy  DiskPolicy

	Logger     *slog.Logger
	debugBDOS  map[int]bool
	debugBIOS  map[int]bool
	ctrlCCount int

	launchTime time.Time

	progressEvery  uint64
	instrCount     uint64
	instrLimit     uint64
	saveMemoryPath string
	saveRangeStart uint32
	saveRangeEnd   uint32

	intCycles uint64
	intRST    uint8
	nextIntAt uint64
	intArmed  bool
}

// Option configures a CPM instance at construction time.
type Option func(*CPM)

// WithMode selects the 8080 or Z80 instruction set.
func WithMode(mode cpu.Mode) Option {
	return func(c *CPM) { c.CPU.Reg.Mode = mode }
}

// WithInputDriver selects the named console input driver.
func WithInputDriver(name string) Option {
	return func(c *CPM) {
		drv, err := consolein.New(name)
		if err != nil {
			c.Logger.Warn("failed to create input driver", "name", name, "error", err)
			return
		}
		c.input = drv
	}
}

// WithOutputDriver selects the named console output driver.
func WithOutputDriver(name string) Option {
	return func(c *CPM) {
		drv, err := consoleout.New(name)
		if err != nil {
			c.Logger.Warn("failed to create output driver", "name", name, "error", err)
			return
		}
		c.output = drv
	}
}

// WithFileMap installs a pre-built file map (pattern rules read from a
// `.cfg` file, typically).
func WithFileMap(fm *filemap.FileMap) Option {
	return func(c *CPM) { c.fileMap = fm }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *CPM) { c.Logger = l }
}

// WithPrinterPath sets the host path printer output is appended to.
func WithPrinterPath(path string) Option {
	return func(c *CPM) { c.printerPath = path }
}

// WithDiskPolicy sets the BIOS disk-primitive stub policy.
func WithDiskPolicy(p DiskPolicy) Option {
	return func(c *CPM) { c.diskPolicy = p }
}

// WithDebugBDOS enables per-function-number BDOS trace logging.
func WithDebugBDOS(fns map[int]bool) Option {
	return func(c *CPM) { c.debugBDOS = fns }
}

// WithDebugBIOS enables per-offset BIOS trace logging.
func WithDebugBIOS(offsets map[int]bool) Option {
	return func(c *CPM) { c.debugBIOS = offsets }
}

// WithProgress arms a periodic progress report every n million executed
// instructions; n==0 disables it.
func WithProgress(n uint64) Option {
	return func(c *CPM) { c.progressEvery = n }
}

// WithInstructionLimit arms the safety instruction-count ceiling.
func WithInstructionLimit(n uint64) Option {
	return func(c *CPM) { c.instrLimit = n }
}

// WithSaveMemory arms a memory dump to path over [start,end) on exit.
func WithSaveMemory(path string, start, end uint32) Option {
	return func(c *CPM) {
		c.saveMemoryPath = path
		c.saveRangeStart = start
		c.saveRangeEnd = end
	}
}

// WithInterruptTick arms a periodic maskable interrupt every n cycles,
// using rst as the RST vector number.
func WithInterruptTick(n uint64, rst uint8) Option {
	return func(c *CPM) {
		c.intCycles = n
		c.intRST = rst
		c.intArmed = n > 0
	}
}

// nullPorts is the IN/OUT backend: CP/M has no hardware ports to speak of,
// so every access is a no-op.
type nullPorts struct{}

func (nullPorts) In(port uint8) uint8     { return 0xFF }
func (nullPorts) Out(port uint8, v uint8) {}

// New builds a CPM instance with sensible defaults (Z80 mode, "stty"
// console input, "ansi" console output, file map rooted at ".") and
// applies every Option in order.
func New(opts ...Option) (*CPM, error) {
	mem := &memory.Memory{}

	c := &CPM{
		Memory:     mem,
		CPU:        cpu.New(cpu.ModeZ80, mem, nullPorts{}),
		fileMap:    filemap.New("."),
		files:      make(map[uint16]*OpenFile),
		dma:        DefaultDMAAddress,
		Logger:     slog.Default(),
		launchTime: time.Now(),
		diskPolicy: DiskOK,
	}

	in, err := consolein.New("stty")
	if err != nil {
		return nil, fmt.Errorf("failed to create default input driver: %w", err)
	}
	c.input = in

	out, err := consoleout.New("ansi")
	if err != nil {
		return nil, fmt.Errorf("failed to create default output driver: %w", err)
	}
	c.output = out

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// LoadBinary installs the low-memory fixup table and loads a .COM image at
// the TPA base.
func (c *CPM) LoadBinary(path string) error {
	if err := c.Memory.LoadFile(TPABase, path); err != nil {
		return err
	}
	c.fixupRAM()

	c.CPU.Reg.PC.SetU16(TPABase)
	c.CPU.Reg.SP.SetU16(0xFFFE)
	return nil
}

// LoadBytes installs the low-memory fixup table and loads a raw program
// image at the TPA base, for callers that already hold the bytes in
// memory rather than on disk.
func (c *CPM) LoadBytes(data []uint8) {
	c.Memory.FillRange(0, 0x10000, 0x00)
	c.Memory.SetRange(TPABase, data...)
	c.fixupRAM()

	c.CPU.Reg.PC.SetU16(TPABase)
	c.CPU.Reg.SP.SetU16(0xFFFE)
}

// fixupRAM (re)installs the reserved low-memory jump stubs. LoadFile zeroes
// the whole address space first, so this must run after any image load.
func (c *CPM) fixupRAM() {
	c.Memory.Set(0x0000, 0xC3) // JP
	c.Memory.SetU16(0x0001, biosBase+3*biosWBOOT)

	c.Memory.Set(0x0003, 0x00) // IOBYTE
	c.Memory.Set(0x0004, 0x00) // current drive/user

	c.Memory.Set(bdosEntry, 0xC9) // RET; safety net, Execute() traps before this runs

	for i := 0; i < biosVectorCount; i++ {
		addr := biosBase + uint16(i*3)
		c.Memory.Set(addr, 0xC9) // RET; safety net, Execute() traps before this runs
	}

	c.CPU.BreakPoints[bdosEntry] = true
	for i := 0; i < biosVectorCount; i++ {
		c.CPU.BreakPoints[biosBase+uint16(i*3)] = true
	}
}

// SetCommandTail writes a CP/M-style command tail (length-prefixed,
// space-separated argument string) into the default DMA area at 0x0080,
// and seeds the two default FCBs at 0x005C/0x006C from the first two
// whitespace-separated arguments.
func (c *CPM) SetCommandTail(args string) {
	tail := args
	if len(tail) > 127 {
		tail = tail[:127]
	}
	c.Memory.Set(0x0080, uint8(len(tail)))
	c.Memory.SetRange(0x0081, []uint8(tail)...)

	fields := splitFields(tail)
	c.Memory.FillRange(0x005C, 36, 0x00)
	c.Memory.FillRange(0x006C, 36, 0x00)
	if len(fields) > 0 {
		writeFCBName(c.Memory, 0x005C, fields[0])
	}
	if len(fields) > 1 {
		writeFCBName(c.Memory, 0x006C, fields[1])
	}
}

func splitFields(s string) []string {
	var fields []string
	cur := ""
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if cur != "" {
				fields = append(fields, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		fields = append(fields, cur)
	}
	return fields
}

// writeFCBName packs a "NAME.EXT" host-style string into an unopened FCB's
// name/type fields, space-padded to 8.3, at the given guest address.
func writeFCBName(mem *memory.Memory, addr uint16, name string) {
	base, ext := name, ""
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			base, ext = name[:i], name[i+1:]
			break
		}
	}
	for i := 0; i < 8; i++ {
		c := uint8(' ')
		if i < len(base) {
			c = upper(base[i])
		}
		mem.Set(addr+1+uint16(i), c)
	}
	for i := 0; i < 3; i++ {
		c := uint8(' ')
		if i < len(ext) {
			c = upper(ext[i])
		}
		mem.Set(addr+9+uint16(i), c)
	}
}

func upper(b byte) uint8 {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// Execute runs the instruction step loop until a fatal error, a guest exit,
// or a boot request terminates it.
func (c *CPM) Execute() error {
	for {
		pc := c.CPU.Reg.PC.U16()

		if pc == bdosEntry {
			if err := c.dispatchBDOS(); err != nil {
				return c.finish(err)
			}
			continue
		}

		if pc >= biosBase && pc < biosBase+uint16(biosVectorCount*3) && (pc-biosBase)%3 == 0 {
			offset := int((pc - biosBase) / 3)
			if err := c.dispatchBIOS(offset); err != nil {
				return c.finish(err)
			}
			continue
		}

		if c.checkCtrlC() {
			return c.finish(ErrExit)
		}

		if err := c.CPU.Step(); err != nil {
			return c.finish(err)
		}

		c.instrCount++
		if c.instrLimit > 0 && c.instrCount >= c.instrLimit {
			fmt.Printf("instruction limit reached at PC=%04X\n", c.CPU.Reg.PC.U16())
			return c.finish(ErrInstructionLimit)
		}
		if c.progressEvery > 0 && c.instrCount%(c.progressEvery*1_000_000) == 0 {
			fmt.Fprintf(os.Stderr, "progress: %d million instructions executed\n", c.instrCount/1_000_000)
		}

		if c.intArmed && c.CPU.Reg.Cycles >= c.nextIntAt {
			c.CPU.RequestRST(c.intRST)
			c.nextIntAt = c.CPU.Reg.Cycles + c.intCycles
		}
	}
}

// checkCtrlC drains any pending input on a non-blocking check, counting
// consecutive ^C bytes; five in a row triggers cancellation. Any other
// byte, or a ^C not part of a run of five, is stuffed back for the guest
// to consume normally through the console-input BDOS/BIOS calls.
func (c *CPM) checkCtrlC() bool {
	if !c.input.PendingInput() {
		return false
	}
	b, err := c.input.BlockForCharacterNoEcho()
	if err != nil {
		return false
	}
	if b != 0x03 {
		c.ctrlCCount = 0
		c.input.StuffInput(string(rune(b)))
		return false
	}
	c.ctrlCCount++
	if c.ctrlCCount >= 5 {
		return true
	}
	c.input.StuffInput(string(rune(b)))
	return false
}

// finish runs exit-time housekeeping (memory dump, terminal restore)
// common to every termination path, then returns the original error
// unless it is a clean one.
func (c *CPM) finish(err error) error {
	if c.saveMemoryPath != "" {
		if dumpErr := c.Memory.Save(c.saveMemoryPath, c.saveRangeStart, c.saveRangeEnd); dumpErr != nil {
			c.Logger.Error("failed to save memory", "error", dumpErr)
		}
	}
	_ = c.input.TearDown()

	if errors.Is(err, ErrBoot) || errors.Is(err, ErrExit) {
		return nil
	}
	return err
}

// Uptime returns the elapsed wall-clock time since the emulator started
// running the current guest program.
func (c *CPM) Uptime() time.Duration {
	return time.Since(c.launchTime)
}

// GetOutputDriver exposes the active console output driver, for tests and
// callers that need to inspect recorded output.
func (c *CPM) GetOutputDriver() *consoleout.ConsoleOut {
	return c.output
}

// SetWorkingDir points the file map at a new current directory.
func (c *CPM) SetWorkingDir(dir string) {
	c.fileMap = filemap.New(dir)
}

// StuffText injects text into the console input driver's read buffer, for
// scripted testing.
func (c *CPM) StuffText(s string) {
	c.input.StuffInput(s)
}
