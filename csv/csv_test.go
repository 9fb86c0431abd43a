package csv

import (
	"bytes"
	"runtime"
	"testing"

	"golang.org/x/xerrors"
)

func TestRecorderNil(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)

	if err := enc.Encode(nil); err == nil {
		t.Fatalf("%+v\n", err)
	}
}

type Msg struct{}

func (m Msg) Record() []string {
	return []string{"0s", "0x1a", "battery", "100", "%"}
}

func TestRecorder(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)

	if err := enc.Encode(Msg{}); err != nil {
		t.Fatalf("%+v\n", err)
	}

	if got, want := buf.String(), "0s,0x1a,battery,100,%\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

type NonRecorder struct{}

func TestNonRecorder(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)

	err := enc.Encode(NonRecorder{})

	var runtimeErr runtime.Error
	if !xerrors.As(err, &runtimeErr) {
		t.Fatalf("%+v\n", runtimeErr)
	}
}

func TestHeader(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)

	if err := enc.Header("time", "id", "field", "value", "unit"); err != nil {
		t.Fatalf("%+v\n", err)
	}
	if err := enc.Encode(Msg{}); err != nil {
		t.Fatalf("%+v\n", err)
	}

	if got, want := buf.String(), "time,id,field,value,unit\n0s,0x1a,battery,100,%\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
