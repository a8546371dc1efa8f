package consolein

import "testing"

func TestReadLine(t *testing.T) {
	x := &STTYInput{}
	ch := ConsoleIn{driver: x}

	x.StuffInput("steve\n")
	out, err := ch.ReadLine(20)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out != "steve" {
		t.Fatalf("unexpected output %q", out)
	}

	x.StuffInput("\x03\x03steve")
	_, err = ch.ReadLine(20)
	if err != ErrInterrupted {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}

	x.StuffInput("steve\b\b\b\b\bHello\n")
	out, err = ch.ReadLine(20)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out != "Hello" {
		t.Fatalf("unexpected output %q", out)
	}

	x.StuffInput("I like to move it, move it\n")
	out, err = ch.ReadLine(5)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out != "I lik" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestOverview(t *testing.T) {
	x := &STTYInput{}
	ch := ConsoleIn{driver: x}

	if err := ch.Setup(); err != nil {
		t.Fatalf("failed to setup driver %s", err)
	}
	defer func() {
		if err := ch.TearDown(); err != nil {
			t.Fatalf("teardown failed %s", err)
		}
	}()

	x.StuffInput("1.2\n")

	if !ch.PendingInput() {
		t.Fatalf("should have pending input")
	}

	c, err := ch.BlockForCharacterNoEcho()
	if err != nil {
		t.Fatalf("unexpected error")
	}
	if c != '1' {
		t.Fatalf("wrong character")
	}

	cur := ch.GetSystemCommandPrefix()
	ch.SetSystemCommandPrefix("foo")
	if ch.GetSystemCommandPrefix() != "foo" {
		t.Fatalf("failed to change command prefix")
	}
	if ch.GetSystemCommandPrefix() == cur {
		t.Fatalf("failed to change command prefix")
	}
}

func TestCtrlC(t *testing.T) {
	x := &STTYInput{}
	ch := ConsoleIn{driver: x}

	ch.SetInterruptCount(3)
	if ch.GetInterruptCount() != 3 {
		t.Fatalf("unexpected interrupt count")
	}

	x.StuffInput("\x03")
	_, _ = ch.BlockForCharacterNoEcho()
	if ch.GetInterruptCount() != 4 {
		t.Fatalf("ctrl-C was not counted")
	}
}

func TestDriverRegistration(t *testing.T) {
	expectedCount := 4
	found := len(handlers.m)
	if found != expectedCount {
		t.Fatalf("wrong number of handlers, found %d wanted %d", found, expectedCount)
	}

	for _, name := range []string{"term", "file", "stty", "error"} {
		if _, ok := handlers.m[name]; !ok {
			t.Fatalf("missing expected handler %s", name)
		}
		if _, err := New(name); err != nil {
			t.Fatalf("failed to create %s driver: %s", name, err)
		}
	}

	if _, ok := handlers.m["bogus"]; ok {
		t.Fatalf("found unexpected handler")
	}
	if _, err := New("bogus"); err == nil {
		t.Fatalf("expected an error looking up an unknown driver")
	}
}
