package epbus

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/bikebus/epbus/gen"
	"github.com/bikebus/epbus/protocol"
)

const testAmp = 100.0

// burst modulates one frame at the bus line rate.
func burst(frame []byte) []byte {
	return gen.Burst(frame, protocol.SampleRate, protocol.CarrierFreq, protocol.BitRate, testAmp)
}

func capture(parts ...[]byte) io.Reader {
	var buf bytes.Buffer
	for _, part := range parts {
		buf.Write(part)
	}
	return &buf
}

func results(t *testing.T, p *Pipeline) (out []Result) {
	t.Helper()
	for {
		res, err := p.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("%+v\n", err)
		}
		out = append(out, res)
	}
}

func TestPipelineSingleFrame(t *testing.T) {
	// A battery reply from unit 0x1A, single-frame transport.
	frame := []byte{0xCE, 0x1A, 0x00, 0xC5, 0x26, 0x42, 0x64, 0xE7}

	p := New(capture(gen.Silence(1000), burst(frame), gen.Silence(1000)))
	out := results(t, p)

	if len(out) != 1 {
		t.Fatalf("got %d results, want 1", len(out))
	}

	res := out[0]
	if res.Frame.Kind != protocol.KindReply {
		t.Fatalf("kind: got %s", res.Frame.Kind)
	}
	if !res.Frame.HasID || res.Frame.ID != 0x1A {
		t.Fatalf("id: got %02X (has=%v)", res.Frame.ID, res.Frame.HasID)
	}
	if !bytes.Equal(res.Frame.Bytes, frame) {
		t.Fatalf("bytes: got % 02X, want % 02X", res.Frame.Bytes, frame)
	}
	if !res.Frame.ChecksumOK {
		t.Fatal("checksum did not validate")
	}

	// The leading silence is 1000 samples, 200us at the bus sample rate.
	want := 200 * time.Microsecond
	if d := res.Frame.Time - want; d < -5*time.Microsecond || d > 5*time.Microsecond {
		t.Fatalf("frame time: got %s, want about %s", res.Frame.Time, want)
	}

	if res.Packet == nil {
		t.Fatal("no packet")
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}
	ev := res.Events[0]
	if ev.Field != "battery" || ev.Value != uint64(100) || ev.Unit != "%" {
		t.Fatalf("event: %+v", ev)
	}

	// Decoding the same bytes directly must agree with the demodulated
	// path on everything but the timestamp.
	direct, errs := protocol.NewDecoder().Decode(protocol.Packet{ID: 0x1A, Data: []byte{0x26, 0x42, 0x64}})
	if len(errs) != 0 || len(direct) != 1 {
		t.Fatalf("direct decode: %v %v", direct, errs)
	}
	if direct[0].Field != ev.Field || direct[0].Value != ev.Value || direct[0].Unit != ev.Unit {
		t.Fatalf("direct decode disagrees: %+v vs %+v", direct[0], ev)
	}
}

func TestPipelineMultiFrame(t *testing.T) {
	// A clock record from unit 0x3F spanning first, consecutive and last
	// frames, bursts separated by line silence.
	ff := []byte{0xCE, 0x3F, 0x00, 0x8A, 0x4A, 0x00, 0x18, 0x25}
	cf := []byte{0xCE, 0x3F, 0x00, 0x0B, 0x0C, 0x14, 0x05, 0xA9}
	lf := []byte{0xCE, 0x3F, 0x00, 0x4C, 0x22, 0x06, 0x00, 0x59}

	p := New(capture(
		gen.Silence(1000), burst(ff),
		gen.Silence(600), burst(cf),
		gen.Silence(600), burst(lf),
		gen.Silence(1000),
	))
	out := results(t, p)

	if len(out) != 3 {
		t.Fatalf("got %d results, want 3", len(out))
	}
	for idx, res := range out {
		if !res.Frame.ChecksumOK {
			t.Fatalf("frame %d: checksum did not validate: %s", idx, res.Frame)
		}
	}
	if out[0].Packet != nil || out[1].Packet != nil {
		t.Fatal("packet completed early")
	}

	res := out[2]
	if res.Packet == nil {
		t.Fatal("no packet")
	}
	if res.Packet.Time != out[0].Frame.Time {
		t.Fatalf("packet time: got %s, want %s", res.Packet.Time, out[0].Frame.Time)
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}

	want := time.Date(2024, time.December, 20, 5, 34, 6, 0, time.UTC)
	if res.Events[0].Field != "clock" || res.Events[0].Value != want {
		t.Fatalf("event: %+v", res.Events[0])
	}
}

func TestPipelineCorruptFrame(t *testing.T) {
	// Battery frame with a flipped payload bit: the stale checksum fails,
	// but the frame and its decoded (suspect) event stay visible.
	frame := []byte{0xCE, 0x1A, 0x00, 0xC5, 0x26, 0x42, 0x65, 0xE7}

	p := New(capture(gen.Silence(1000), burst(frame), gen.Silence(1000)))
	out := results(t, p)

	if len(out) != 1 {
		t.Fatalf("got %d results, want 1", len(out))
	}

	res := out[0]
	if !res.Frame.HasChecksum || res.Frame.ChecksumOK {
		t.Fatalf("checksum: has=%v ok=%v", res.Frame.HasChecksum, res.Frame.ChecksumOK)
	}
	if len(res.Events) != 1 || res.Events[0].Value != uint64(101) {
		t.Fatalf("events: %v", res.Events)
	}
}

func TestPipelineNoSignal(t *testing.T) {
	p := New(capture(gen.Silence(20000)))

	if out := results(t, p); len(out) != 0 {
		t.Fatalf("got %d results from a dead line", len(out))
	}
}

func TestPipelineRandomReplies(t *testing.T) {
	var parts [][]byte
	var want [][]byte

	for idx := 0; idx < 5; idx++ {
		frame, err := gen.NewRandReply(0x1A)
		if err != nil {
			t.Fatalf("%+v\n", err)
		}
		want = append(want, frame)
		parts = append(parts, gen.Silence(800), burst(frame))
	}
	parts = append(parts, gen.Silence(1000))

	p := New(capture(parts...))
	out := results(t, p)

	if len(out) != len(want) {
		t.Fatalf("got %d results, want %d", len(out), len(want))
	}
	for idx, res := range out {
		if !bytes.Equal(res.Frame.Bytes, want[idx]) {
			t.Fatalf("frame %d: got % 02X, want % 02X", idx, res.Frame.Bytes, want[idx])
		}
		if !res.Frame.ChecksumOK {
			t.Fatalf("frame %d: checksum did not validate", idx)
		}
	}
}
