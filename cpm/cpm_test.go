package cpm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qkcoder/cpmemu/consolein"
	"github.com/qkcoder/cpmemu/consoleout"
)

// scriptedInput is a consolein.ConsoleInput used only by these tests: it
// serves bytes from an in-memory queue, growable via StuffInput, and never
// reports pending input once the queue is empty.
type scriptedInput struct {
	queue []byte
}

func (s *scriptedInput) Setup() error    { return nil }
func (s *scriptedInput) TearDown() error { return nil }
func (s *scriptedInput) PendingInput() bool {
	return len(s.queue) > 0
}
func (s *scriptedInput) BlockForCharacterNoEcho() (byte, error) {
	if len(s.queue) == 0 {
		return 0x00, nil
	}
	b := s.queue[0]
	s.queue = s.queue[1:]
	return b, nil
}
func (s *scriptedInput) StuffInput(in string) {
	s.queue = append(s.queue, []byte(in)...)
}
func (s *scriptedInput) GetName() string { return "scripted" }

func init() {
	consolein.Register("scripted", func() consolein.ConsoleInput {
		return &scriptedInput{}
	})
}

func newTestMachine(t *testing.T, dir string) *CPM {
	t.Helper()

	machine, err := New(
		WithInputDriver("scripted"),
		WithOutputDriver("logger"),
	)
	if err != nil {
		t.Fatalf("failed to construct machine: %s", err)
	}
	if dir != "" {
		machine.SetWorkingDir(dir)
	}
	return machine
}

func recordedOutput(t *testing.T, m *CPM) string {
	t.Helper()
	rec, ok := m.GetOutputDriver().GetDriver().(consoleout.ConsoleRecorder)
	if !ok {
		t.Fatalf("output driver does not implement ConsoleRecorder")
	}
	return rec.GetOutput()
}

// assembleHelloWorld builds a tiny program that prints "HELLO$" via BDOS
// function 9, then exits via function 0.
func assembleHelloWorld() []uint8 {
	return []uint8{
		0x11, 0x0D, 0x01, // LXI D, 0x010D
		0x0E, 0x09, // MVI C,9
		0xCD, 0x05, 0x00, // CALL 0x0005
		0x0E, 0x00, // MVI C,0
		0xCD, 0x05, 0x00, // CALL 0x0005
		'H', 'E', 'L', 'L', 'O', '$',
	}
}

func TestHelloWorld(t *testing.T) {
	m := newTestMachine(t, t.TempDir())
	m.LoadBytes(assembleHelloWorld())

	if err := m.Execute(); err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}

	if got := recordedOutput(t, m); got != "HELLO" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestFileMakeClose(t *testing.T) {
	dir := t.TempDir()
	m := newTestMachine(t, dir)

	prog := []uint8{
		0x11, 0x30, 0x01, // LXI D, 0x0130 (fcb)
		0x0E, 22, // MVI C,22 (make)
		0xCD, 0x05, 0x00, // CALL 0x0005

		0x11, 0x30, 0x01, // LXI D, 0x0130
		0x0E, 16, // MVI C,16 (close)
		0xCD, 0x05, 0x00, // CALL 0x0005

		0x0E, 0x00, // MVI C,0 (exit)
		0xCD, 0x05, 0x00,
	}
	m.LoadBytes(prog)
	writeFCBName(m.Memory, 0x0130, "FOO.TXT")

	if err := m.Execute(); err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "FOO.TXT")); err != nil {
		t.Fatalf("expected FOO.TXT to have been created: %s", err)
	}
}

func TestFileWriteThenReadPreservesText(t *testing.T) {
	dir := t.TempDir()
	m := newTestMachine(t, dir)

	prog := []uint8{
		0x11, 0x30, 0x01, // LXI D, fcb
		0x0E, 22, // make
		0xCD, 0x05, 0x00,

		0x0E, 21, // write sequential
		0xCD, 0x05, 0x00,

		0x0E, 16, // close
		0xCD, 0x05, 0x00,

		0x0E, 15, // open
		0xCD, 0x05, 0x00,

		0x0E, 20, // read sequential
		0xCD, 0x05, 0x00,

		0x0E, 0x00, // exit
		0xCD, 0x05, 0x00,
	}
	m.LoadBytes(prog)
	writeFCBName(m.Memory, 0x0130, "NOTE.TXT")

	payload := make([]uint8, recordSize)
	copy(payload, []byte("hi\n"))
	m.Memory.SetRange(DefaultDMAAddress, payload...)

	if err := m.Execute(); err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}

	got := m.Memory.GetRange(DefaultDMAAddress, 4)
	if string(got) != "hi\r\n" {
		t.Fatalf("expected TEXT-mode EOL translation on readback, got %q", got)
	}
}

func TestDirectorySearch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "A.COM"), []byte("x"), 0644); err != nil {
		t.Fatalf("setup: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "B.COM"), []byte("x"), 0644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	m := newTestMachine(t, dir)
	m.LoadBytes([]uint8{0x00})
	writeFCBName(m.Memory, 0x0200, "????????.COM")

	f := m.readFCB(0x0200)
	matches, err := f.GetMatches(dir)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestCtrlCThresholdExits(t *testing.T) {
	m := newTestMachine(t, t.TempDir())
	m.LoadBytes([]uint8{0x00, 0x00, 0x00, 0xC3, 0x00, 0x01}) // NOP NOP NOP JP 0x0100 (spin)
	m.StuffText("\x03\x03\x03\x03\x03")

	if err := m.Execute(); err != nil {
		t.Fatalf("expected a clean exit after five ctrl-C bytes, got %s", err)
	}
}

func TestCtrlCBelowThresholdDoesNotExit(t *testing.T) {
	m := newTestMachine(t, t.TempDir())
	m.LoadBytes([]uint8{
		0x0E, 0x00, // MVI C,0
		0xCD, 0x05, 0x00, // CALL 0x0005 (exit)
	})
	m.StuffText("\x03\x03\x03\x03")

	if err := m.Execute(); err != nil {
		t.Fatalf("unexpected execution error: %s", err)
	}
	if m.ctrlCCount >= 5 {
		t.Fatalf("ctrl-C counter should not have reached the cancellation threshold")
	}
}

func TestInterruptTick(t *testing.T) {
	m, err := New(WithInputDriver("scripted"), WithOutputDriver("logger"), WithInterruptTick(100, 7))
	if err != nil {
		t.Fatalf("failed to construct machine: %s", err)
	}
	m.SetWorkingDir(t.TempDir())
	m.CPU.Reg.IM = 1
	m.CPU.Reg.IFF1 = true

	prog := []uint8{0xFB, 0x00, 0x18, 0xFC} // EI NOP JR -4 (spin at 0x0100, re-enabling interrupts)
	m.LoadBytes(prog)

	hits := 0
	for i := 0; i < 5000 && hits < 4; i++ {
		if m.CPU.Reg.PC.U16() == 0x0038 {
			hits++
		}
		if err := m.CPU.Step(); err != nil {
			t.Fatalf("unexpected step error: %s", err)
		}
		if m.CPU.Reg.Cycles >= m.nextIntAt {
			m.CPU.RequestRST(7)
			m.nextIntAt = m.CPU.Reg.Cycles + 100
		}
	}
	if hits < 4 {
		t.Fatalf("expected the interrupt vector to be visited at least 4 times, saw %d", hits)
	}
}
