package poller

import (
	"os"
	"testing"
)

func TestSet_ReadReadiness(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	rfd := int(r.Fd())
	if _, err := w.Write([]byte{'x'}); err != nil {
		t.Fatal(err)
	}

	var set Set
	set.Reset()
	set.Read(rfd)
	set.Error(rfd)

	n, err := set.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if n < 1 {
		t.Fatalf("Expected at least one ready descriptor, got %d", n)
	}
	if !set.ReadReady(rfd) {
		t.Error("Expected the pipe read end to be readable")
	}
	if set.WriteReady(rfd) {
		t.Error("Did not register write interest, but got write readiness")
	}
}

func TestSet_WriteReadiness(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	wfd := int(w.Fd())
	var set Set
	set.Reset()
	set.Write(wfd)

	if _, err := set.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !set.WriteReady(wfd) {
		t.Error("Expected an empty pipe write end to be writable")
	}
}

func TestSet_Max(t *testing.T) {
	var set Set
	set.Reset()
	if set.Max() != -1 {
		t.Errorf("Expected empty set max -1, got %d", set.Max())
	}
	set.Read(5)
	set.Write(9)
	set.Error(3)
	if set.Max() != 9 {
		t.Errorf("Expected max 9, got %d", set.Max())
	}
	set.Reset()
	if set.Max() != -1 {
		t.Errorf("Expected max -1 after Reset, got %d", set.Max())
	}
}

func TestPollable(t *testing.T) {
	if !Pollable(0) || !Pollable(MaxFd) {
		t.Error("Expected descriptors inside FD_SETSIZE to be pollable")
	}
	if Pollable(-1) || Pollable(MaxFd+1) {
		t.Error("Expected out-of-range descriptors to be rejected")
	}
}
