package fcb

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestFCBSize(t *testing.T) {
	x := FromString("blah")
	b := x.AsBytes()

	if len(b) != SIZE {
		t.Fatalf("FCB struct is %d bytes, want %d", len(b), SIZE)
	}
}

func TestRoundTrip(t *testing.T) {
	f1 := FromString("blah")
	copy(f1.Al[:], "0123456789abcdef")
	f1.Ex = 'X'
	f1.S1 = 'S'
	f1.S2 = '?'
	f1.RC = 'f'
	f1.R0 = 'R'
	f1.R1 = '0'
	f1.R2 = '1'
	f1.Cr = '*'
	b := f1.AsBytes()

	f2 := FromBytes(b)
	if fmt.Sprintf("%s", f2.Al) != "0123456789abcdef" {
		t.Fatalf("round trip lost Al")
	}
	if f2.Ex != 'X' || f2.S1 != 'S' || f2.S2 != '?' || f2.RC != 'f' {
		t.Fatalf("round trip lost Ex/S1/S2/RC")
	}
	if f2.R0 != 'R' || f2.R1 != '0' || f2.R2 != '1' || f2.Cr != '*' {
		t.Fatalf("round trip lost R0/R1/R2/Cr")
	}
}

func TestFromString(t *testing.T) {
	f := FromString("b:foo")
	if f.Drive != 2 {
		t.Fatalf("drive wrong, got %d", f.Drive)
	}
	if f.GetName() != "FOO" {
		t.Fatalf("name wrong, got %q", f.GetName())
	}
	if f.GetType() != "" {
		t.Fatalf("unexpected suffix %q", f.GetType())
	}

	f = FromString("c:this-is-a-long-name")
	if f.GetName() != "THIS-IS-" {
		t.Fatalf("truncation wrong, got %q", f.GetName())
	}

	f = FromString("c:this-is-a.long-name")
	if f.GetType() != "LON" {
		t.Fatalf("extension truncation wrong, got %q", f.GetType())
	}

	f = FromString("steve*.*")
	if f.GetName() != "STEVE???" {
		t.Fatalf("wildcard name wrong, got %q", f.GetName())
	}
	if f.GetType() != "???" {
		t.Fatalf("wildcard type wrong, got %q", f.GetType())
	}

	f = FromString("test.C*")
	if f.GetType() != "C??" {
		t.Fatalf("partial wildcard type wrong, got %q", f.GetType())
	}
}

func TestDoesMatch(t *testing.T) {
	type testcase struct {
		pattern string
		yes     []string
		no      []string
	}

	tests := []testcase{
		{
			pattern: "*.com",
			yes:     []string{"A.COM", "FOO.COM"},
			no:      []string{"A", "BOB", "C.GO"},
		},
		{
			pattern: "A*.*",
			yes:     []string{"ANIMAL.COM", "AURORA"},
			no:      []string{"TEST.COM", "BOB"},
		},
	}

	for _, test := range tests {
		f := FromString(test.pattern)

		for _, no := range test.no {
			if f.DoesMatch(no) {
				t.Fatalf("%q matched pattern %q, should not have", no, test.pattern)
			}
		}
		for _, yes := range test.yes {
			if !f.DoesMatch(yes) {
				t.Fatalf("%q did not match pattern %q, should have", yes, test.pattern)
			}
		}
	}
}

func TestGetMatches(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"A.COM", "B.TXT", "verylongname.dat"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("setup: %s", err)
		}
	}

	f := FromString("*.COM")
	matches, err := f.GetMatches(dir)
	if err != nil {
		t.Fatalf("GetMatches: %s", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Name != "A.COM" {
		t.Fatalf("unexpected match name %q", matches[0].Name)
	}

	// verylongname.dat does not project onto 8.3 and must be skipped.
	f = FromString("*.DAT")
	matches, err = f.GetMatches(dir)
	if err != nil {
		t.Fatalf("GetMatches: %s", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected verylongname.dat to be excluded, got %d matches", len(matches))
	}
}

func TestSequentialOffset(t *testing.T) {
	f := FCB{}
	if f.GetSequentialOffset() != 0 {
		t.Fatalf("expected 0 offset initially")
	}

	for i := 0; i < 130; i++ {
		f.IncreaseSequentialOffset()
	}
	if f.Cr != 2 || f.Ex != 1 {
		t.Fatalf("unexpected rollover state Cr=%d Ex=%d", f.Cr, f.Ex)
	}
	if f.GetSequentialOffset() != 130 {
		t.Fatalf("expected offset 130, got %d", f.GetSequentialOffset())
	}
}
