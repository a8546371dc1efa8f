package cpm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/qkcoder/cpmemu/filemap"
)

// Config holds everything read from the CLI flags, environment, and an
// optional `.cfg` file, before a CPM instance is constructed from it.
type Config struct {
	Mode8080 bool

	Progress         uint64
	SaveMemoryPath   string
	SaveRangeStart   uint32
	SaveRangeEnd     uint32
	InstructionLimit uint64
	IntCycles        uint64
	IntRST           uint8

	Program string
	Dir     string

	DefaultMode string
	Debug       bool
	EOLConvert  bool

	Printer string
	AuxIn   string
	AuxOut  string

	BIOSDiskPolicy string

	DebugBDOS map[int]bool
	DebugBIOS map[int]bool

	Rules []filemap.Rule
}

// DefaultConfig returns a Config seeded from CPM_* environment variables,
// before any `.cfg` file or CLI flags are applied.
func DefaultConfig() Config {
	cfg := Config{
		DefaultMode: "binary",
		BIOSDiskPolicy: "ok",
		DebugBDOS:      map[int]bool{},
		DebugBIOS:      map[int]bool{},
	}

	if v := os.Getenv("CPM_PROGRESS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Progress = n
		}
	}
	cfg.Printer = os.Getenv("CPM_PRINTER")
	cfg.AuxIn = os.Getenv("CPM_AUX_IN")
	cfg.AuxOut = os.Getenv("CPM_AUX_OUT")
	if v := os.Getenv("CPM_BIOS_DISK"); v != "" {
		switch v {
		case "ok", "fail", "error":
			cfg.BIOSDiskPolicy = v
		default:
			fmt.Fprintf(os.Stderr, "warning: invalid CPM_BIOS_DISK %q, using \"ok\"\n", v)
		}
	}
	if v := os.Getenv("CPM_DEBUG_BDOS"); v != "" {
		cfg.DebugBDOS = parseFunctionList(v)
	}
	if v := os.Getenv("CPM_DEBUG_BIOS"); v != "" {
		cfg.DebugBIOS = parseFunctionList(v)
	}

	return cfg
}

func parseFunctionList(v string) map[int]bool {
	out := map[int]bool{}
	if v == "*" || strings.EqualFold(v, "all") {
		for i := 0; i < 64; i++ {
			out[i] = true
		}
		return out
	}
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if n, err := strconv.Atoi(part); err == nil {
			out[n] = true
		}
	}
	return out
}

// LoadCfgFile merges the contents of a `.cfg` file into cfg: `key = value`
// lines, `#` comments, `$VAR`/`${VAR}` environment expansion. Invalid
// lines are warned about and skipped rather than treated as fatal.
func (cfg *Config) LoadCfgFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.Index(line, "=")
		if idx < 0 {
			fmt.Fprintf(os.Stderr, "warning: %s:%d: invalid config line %q, skipping\n", path, lineNo, line)
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := os.Expand(strings.TrimSpace(line[idx+1:]), os.Getenv)

		switch strings.ToLower(key) {
		case "program":
			cfg.Program = value
		case "cd", "chdir":
			cfg.Dir = value
		case "default_mode":
			cfg.DefaultMode = value
		case "debug":
			cfg.Debug = value == "1" || strings.EqualFold(value, "true")
		case "eol_convert":
			cfg.EOLConvert = value == "1" || strings.EqualFold(value, "true")
		case "printer":
			cfg.Printer = value
		case "aux_input":
			cfg.AuxIn = value
		case "aux_output":
			cfg.AuxOut = value
		default:
			mode := filemap.Auto
			if strings.EqualFold(cfg.DefaultMode, "text") {
				mode = filemap.Text
			}
			cfg.Rules = append(cfg.Rules, filemap.Rule{
				Pattern: filemap.Normalize(key),
				Host:    value,
				Mode:    mode,
			})
		}
	}
	return scanner.Err()
}

// BuildFileMap constructs a FileMap from the current directory plus any
// pattern rules accumulated from a `.cfg` file.
func (cfg *Config) BuildFileMap() *filemap.FileMap {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	fm := filemap.New(dir)
	for _, r := range cfg.Rules {
		fm.AddRule(r.Pattern, r.Host, r.Mode)
	}
	return fm
}

// ParseHexRange parses a "HEX-HEX" string such as "0100-3FFF" into a
// start/end pair, used for --save-range.
func ParseHexRange(s string) (uint32, uint32, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid range %q, expected HEX-HEX", s)
	}
	start, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start %q: %w", parts[0], err)
	}
	end, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end %q: %w", parts[1], err)
	}
	return uint32(start), uint32(end), nil
}
