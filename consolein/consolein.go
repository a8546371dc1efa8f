// Package consolein handles the reading of console input for our emulator.
//
// The package supports the minimum required functionality we need: reading
// a single character of input, with and without echo, reading a line of
// text with basic editing, and polling for pending input.  A driver need
// only implement ConsoleInput; everything else (line-editing, the ctrl-C
// interrupt counter, the optional system-command prefix) is built once on
// top of that primitive, here in the wrapper.
package consolein

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInterrupted is returned by ReadLine when the user pressed ctrl-C
// while entering a line.
var ErrInterrupted = errors.New("input interrupted")

// ConsoleInput is the interface that must be implemented by anything that
// wishes to be used as a console input driver.
//
// An implementation registers itself, by name, via Register.
type ConsoleInput interface {
	// Setup performs any driver-specific initialization.
	Setup() error

	// TearDown restores any state Setup changed.
	TearDown() error

	// PendingInput reports whether a character is available to read
	// without blocking.
	PendingInput() bool

	// BlockForCharacterNoEcho blocks until a single character is
	// available, returning it without echoing it to the console.
	BlockForCharacterNoEcho() (byte, error)

	// GetName returns the name of the driver.
	GetName() string
}

// stuffer is implemented by drivers that allow fake input to be injected;
// used by the "stty" and "term" drivers for scripted testing.
type stuffer interface {
	StuffInput(string)
}

// Constructor is the signature of a constructor function used to
// instantiate an instance of a driver.
type Constructor func() ConsoleInput

var handlers = struct {
	m map[string]Constructor
}{m: make(map[string]Constructor)}

// Register makes a console input driver available, by name.
func Register(name string, obj Constructor) {
	name = strings.ToLower(name)
	handlers.m[name] = obj
}

// ConsoleIn holds our state: the selected driver, the ctrl-C interrupt
// counter, and a stored system-command prefix string.
type ConsoleIn struct {
	driver ConsoleInput

	// interrupts counts the number of ctrl-C characters seen since the
	// last reset.
	interrupts int

	// prefix is a host-command prefix string. It is only stored and
	// returned by its getter; no input is examined for it.
	prefix string
}

// New creates an input device which uses the specified driver.
func New(name string) (*ConsoleIn, error) {
	name = strings.ToLower(name)

	ctor, ok := handlers.m[name]
	if !ok {
		return nil, fmt.Errorf("failed to lookup input driver by name '%s'", name)
	}

	return &ConsoleIn{driver: ctor()}, nil
}

// Setup prepares the underlying driver.
func (ci *ConsoleIn) Setup() error {
	return ci.driver.Setup()
}

// TearDown restores the underlying driver's state.
func (ci *ConsoleIn) TearDown() error {
	return ci.driver.TearDown()
}

// GetName returns the name of the selected driver.
func (ci *ConsoleIn) GetName() string {
	return ci.driver.GetName()
}

// PendingInput reports whether a character is ready to be read.
func (ci *ConsoleIn) PendingInput() bool {
	return ci.driver.PendingInput()
}

// StuffInput injects fake input into the driver, if it supports it; a NOP
// otherwise.
func (ci *ConsoleIn) StuffInput(input string) {
	if s, ok := ci.driver.(stuffer); ok {
		s.StuffInput(input)
	}
}

// BlockForCharacterNoEcho reads a single character without echoing it,
// tracking ctrl-C for the interrupt counter.
func (ci *ConsoleIn) BlockForCharacterNoEcho() (byte, error) {
	c, err := ci.driver.BlockForCharacterNoEcho()
	if err == nil && c == 0x03 {
		ci.interrupts++
	}
	return c, err
}

// BlockForCharacterWithEcho reads a single character, echoing it to
// standard output.
func (ci *ConsoleIn) BlockForCharacterWithEcho() (byte, error) {
	c, err := ci.BlockForCharacterNoEcho()
	if err == nil {
		fmt.Printf("%c", c)
	}
	return c, err
}

// ReadLine reads a line of input, truncating to the length specified, with
// backspace/delete deleting the previous character and ctrl-U killing the
// whole line. Returns ErrInterrupted if ctrl-C is pressed.
func (ci *ConsoleIn) ReadLine(max uint8) (string, error) {
	line := ""

	for {
		c, err := ci.driver.BlockForCharacterNoEcho()
		if err != nil {
			return line, err
		}

		switch c {
		case 0x03: // ctrl-C
			ci.interrupts++
			return line, ErrInterrupted
		case 0x0d, 0x0a: // CR / LF
			fmt.Printf("\n")
			return line, nil
		case 0x08, 0x7f: // backspace / delete
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Printf("\b \b")
			}
		case 0x15: // ctrl-U: kill line
			for len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Printf("\b \b")
			}
		default:
			if len(line) < int(max) {
				line += string(rune(c))
				fmt.Printf("%c", c)
			}
		}
	}
}

// GetInterruptCount returns the number of ctrl-C characters seen so far.
func (ci *ConsoleIn) GetInterruptCount() int {
	return ci.interrupts
}

// SetInterruptCount overrides the ctrl-C counter.
func (ci *ConsoleIn) SetInterruptCount(n int) {
	ci.interrupts = n
}

// GetSystemCommandPrefix returns the configured host-command prefix.
func (ci *ConsoleIn) GetSystemCommandPrefix() string {
	return ci.prefix
}

// SetSystemCommandPrefix updates the host-command prefix.
func (ci *ConsoleIn) SetSystemCommandPrefix(prefix string) {
	ci.prefix = prefix
}
