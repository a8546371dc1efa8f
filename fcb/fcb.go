// Package fcb implements the CP/M File Control Block: the 36-byte
// guest-resident record describing an open, or to-be-opened, file.
package fcb

import (
	"os"
	"path/filepath"
	"strings"
)

// SIZE is the length, in bytes, of an on-disk/in-memory FCB record.
const SIZE = 36

// FCB mirrors the 36-byte CP/M 2.2 File Control Block layout.
type FCB struct {
	Drive uint8
	Name  [8]uint8
	Type  [3]uint8
	Ex    uint8
	S1    uint8
	S2    uint8
	RC    uint8
	Al    [16]uint8
	Cr    uint8
	R0    uint8
	R1    uint8
	R2    uint8
}

// Match describes a single directory-search hit: the host path on disk
// and the CP/M-normalized 8.3 name synthesized for the guest.
type Match struct {
	Host string
	Name string
}

// GetName returns the trimmed name component.
func (f *FCB) GetName() string {
	return strings.TrimRight(string(f.Name[:]), " \x00")
}

// GetType returns the trimmed extension component.
func (f *FCB) GetType() string {
	return strings.TrimRight(string(f.Type[:]), " \x00")
}

// GetFileName returns "NAME.EXT" (no extension dot when Type is empty).
func (f *FCB) GetFileName() string {
	n := f.GetName()
	t := f.GetType()
	if t == "" {
		return n
	}
	return n + "." + t
}

// AsBytes serializes the FCB to its 36-byte wire form.
func (f *FCB) AsBytes() []uint8 {
	r := make([]uint8, 0, SIZE)
	r = append(r, f.Drive)
	r = append(r, f.Name[:]...)
	r = append(r, f.Type[:]...)
	r = append(r, f.Ex, f.S1, f.S2, f.RC)
	r = append(r, f.Al[:]...)
	r = append(r, f.Cr, f.R0, f.R1, f.R2)
	return r
}

// GetSequentialOffset returns the absolute 128-byte record offset implied
// by the extent/S2/Cr fields, for sequential read/write.
func (f *FCB) GetSequentialOffset() uint32 {
	ext := uint32(f.Ex) + uint32(f.S2&0x3F)*32
	return ext*128 + uint32(f.Cr)
}

// IncreaseSequentialOffset advances Cr/Ex/S2 by one 128-byte record,
// rolling Cr into Ex every 128 records and Ex into S2 every 32 extents.
func (f *FCB) IncreaseSequentialOffset() {
	f.Cr++
	if f.Cr >= 128 {
		f.Cr = 0
		f.Ex++
		if f.Ex >= 32 {
			f.Ex = 0
			f.S2++
		}
	}
}

// DoesMatch reports whether the host filename (base name only) matches
// this FCB's name/type pattern, where '?' in the pattern matches any
// single character in the corresponding position.
func (f *FCB) DoesMatch(name string) bool {
	base := filepath.Base(name)
	parts := strings.SplitN(strings.ToUpper(base), ".", 2)
	n := parts[0]
	t := ""
	if len(parts) == 2 {
		t = parts[1]
	}

	for len(n) < 8 {
		n += " "
	}
	for len(t) < 3 {
		t += " "
	}
	if len(n) > 8 || len(t) > 3 {
		return false
	}

	for i := 0; i < 8; i++ {
		want := f.Name[i]
		if want == '?' {
			continue
		}
		if want != n[i] {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		want := f.Type[i]
		if want == '?' {
			continue
		}
		if want != t[i] {
			return false
		}
	}
	return true
}

// GetMatches walks dir and returns every entry that satisfies DoesMatch,
// together with its synthesized CP/M-normalized name.
func (f *FCB) GetMatches(dir string) ([]Match, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isLegalHostName(name) {
			continue
		}
		if f.DoesMatch(name) {
			out = append(out, Match{
				Host: filepath.Join(dir, name),
				Name: strings.ToUpper(name),
			})
		}
	}
	return out, nil
}

// isLegalHostName reports whether name projects cleanly onto an 8.3
// CP/M name: at most one dot, at most 8 characters before it and 3 after.
func isLegalHostName(name string) bool {
	if strings.Count(name, ".") > 1 {
		return false
	}
	parts := strings.SplitN(name, ".", 2)
	if len(parts[0]) == 0 || len(parts[0]) > 8 {
		return false
	}
	if len(parts) == 2 && len(parts[1]) > 3 {
		return false
	}
	return true
}

// FromString builds an FCB from a CLI-style argument such as "A:FOO.TXT",
// expanding a bare "*" name or extension into the all-wildcard form.
func FromString(str string) FCB {
	tmp := FCB{}
	str = strings.ToUpper(str)

	if len(str) > 2 && str[1] == ':' {
		tmp.Drive = str[0] - 'A' + 1
		str = str[2:]
	}

	copy(tmp.Name[:], "        ")
	copy(tmp.Type[:], "   ")

	parts := strings.SplitN(str, ".", 2)

	name := expandWildcard(parts[0], 8)
	copy(tmp.Name[:], padTo(name, 8))

	if len(parts) == 2 {
		ext := expandWildcard(parts[1], 3)
		copy(tmp.Type[:], padTo(ext, 3))
	}

	return tmp
}

func expandWildcard(s string, width int) string {
	if strings.Contains(s, "*") {
		out := ""
		for _, c := range s {
			if c == '*' {
				for len(out) < width {
					out += "?"
				}
				break
			}
			out += string(c)
		}
		return out
	}
	return s
}

func padTo(s string, width int) string {
	for len(s) < width {
		s += " "
	}
	if len(s) > width {
		s = s[:width]
	}
	return s
}

// FromBytes parses a 36-byte wire-form FCB.
func FromBytes(b []uint8) FCB {
	tmp := FCB{}
	tmp.Drive = b[0]
	copy(tmp.Name[:], b[1:9])
	copy(tmp.Type[:], b[9:12])
	tmp.Ex = b[12]
	tmp.S1 = b[13]
	tmp.S2 = b[14]
	tmp.RC = b[15]
	copy(tmp.Al[:], b[16:32])
	tmp.Cr = b[32]
	tmp.R0 = b[33]
	tmp.R1 = b[34]
	tmp.R2 = b[35]
	return tmp
}
