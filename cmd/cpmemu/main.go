// Command cpmemu runs a CP/M 2.2 .COM binary under the emulator in this
// module, translating its BDOS/BIOS calls onto the host filesystem and
// console.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/qkcoder/cpmemu/cpm"
	"github.com/qkcoder/cpmemu/cpu"
	"github.com/qkcoder/cpmemu/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("cpmemu", flag.ContinueOnError)

	mode8080 := fs.Bool("8080", false, "run in strict Intel 8080 mode")
	modeZ80 := fs.Bool("z80", true, "run in Zilog Z80 mode (default)")
	progress := fs.String("progress", "", "report progress every N million instructions")
	saveMemory := fs.String("save-memory", "", "dump memory to PATH on exit")
	saveRange := fs.String("save-range", "0000-FFFF", "HEX-HEX range saved by --save-memory")
	intCycles := fs.Uint64("int-cycles", 0, "fire a timer interrupt every N cycles (0 disables)")
	intRST := fs.Uint("int-rst", 7, "RST vector number used by --int-cycles")
	instrLimit := fs.Uint64("instruction-limit", 0, "abort after N instructions (0 disables)")
	showVersion := fs.Bool("version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *showVersion {
		fmt.Print(version.GetVersionBanner())
		return 0
	}

	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "usage: cpmemu [flags] program.com [args...]")
		return 1
	}

	cfg := cpm.DefaultConfig()

	programPath := rest[0]
	tail := strings.Join(rest[1:], " ")

	if strings.HasSuffix(strings.ToLower(programPath), ".cfg") {
		if err := cfg.LoadCfgFile(programPath); err != nil {
			logger.Error("failed to load config file", "path", programPath, "error", err)
			return 1
		}
		if cfg.Program == "" {
			fmt.Fprintln(os.Stderr, "config file does not set a \"program\" key")
			return 1
		}
		programPath = cfg.Program
	}

	if len(cfg.DebugBDOS) > 0 || len(cfg.DebugBIOS) > 0 {
		logLevel.Set(slog.LevelDebug)
	}

	opts := []cpm.Option{
		cpm.WithFileMap(cfg.BuildFileMap()),
		cpm.WithLogger(logger),
		cpm.WithDebugBDOS(cfg.DebugBDOS),
		cpm.WithDebugBIOS(cfg.DebugBIOS),
	}

	if *mode8080 {
		opts = append(opts, cpm.WithMode(cpu.Mode8080))
	} else if *modeZ80 {
		opts = append(opts, cpm.WithMode(cpu.ModeZ80))
	}

	if cfg.Printer != "" {
		opts = append(opts, cpm.WithPrinterPath(cfg.Printer))
	}

	if *progress != "" {
		n, err := parseProgress(*progress)
		if err != nil {
			logger.Error("invalid --progress value", "value", *progress, "error", err)
			return 1
		}
		opts = append(opts, cpm.WithProgress(n))
	}

	if *saveMemory != "" {
		start, end, err := cpm.ParseHexRange(*saveRange)
		if err != nil {
			logger.Error("invalid --save-range value", "error", err)
			return 1
		}
		opts = append(opts, cpm.WithSaveMemory(*saveMemory, start, end))
	}

	if *intCycles > 0 {
		if *intRST > 7 {
			fmt.Fprintln(os.Stderr, "--int-rst must be in 0..7")
			return 1
		}
		opts = append(opts, cpm.WithInterruptTick(*intCycles, uint8(*intRST)))
	}

	if *instrLimit > 0 {
		opts = append(opts, cpm.WithInstructionLimit(*instrLimit))
	}

	switch cfg.BIOSDiskPolicy {
	case "fail":
		opts = append(opts, cpm.WithDiskPolicy(cpm.DiskFail))
	case "error":
		opts = append(opts, cpm.WithDiskPolicy(cpm.DiskError))
	}

	machine, err := cpm.New(opts...)
	if err != nil {
		logger.Error("failed to initialize emulator", "error", err)
		return 1
	}

	if err := machine.LoadBinary(programPath); err != nil {
		logger.Error("failed to load program", "path", programPath, "error", err)
		return 1
	}
	machine.SetCommandTail(tail)

	if err := machine.Execute(); err != nil {
		logger.Error("program terminated abnormally", "error", err)
		return 1
	}

	return 0
}

// parseProgress parses the value of "--progress=N". The flag takes a
// value: a bare "--progress" is rejected by the flag package, and an
// empty value ("--progress=") yields 1.
func parseProgress(v string) (uint64, error) {
	if v == "" {
		return 1, nil
	}
	return strconv.ParseUint(v, 10, 64)
}
