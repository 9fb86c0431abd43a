package protocol

import "time"

// Data frames carry at most three payload bytes, so longer messages span
// several frames. Byte 3 of every data frame is the transport byte: the
// frame type in bits [7:6] and a rolling counter in bits [4:0].
type FrameType byte

const (
	Consecutive FrameType = iota
	Last
	First
	Single
)

func (t FrameType) String() string {
	switch t {
	case Consecutive:
		return "CF"
	case Last:
		return "LF"
	case First:
		return "FF"
	case Single:
		return "SF"
	}
	return "??"
}

// Transport splits a data frame's transport byte.
func (f Frame) Transport() (typ FrameType, counter byte, ok bool) {
	if len(f.Bytes) != DataFrameLen {
		return 0, 0, false
	}
	b := f.Bytes[3]
	return FrameType(b >> 6 & 0x03), b & 0x1F, true
}

// Packet is a fully reassembled message from one unit. Its time is that of
// the first frame that contributed to it.
type Packet struct {
	ID   byte
	Data []byte
	Time time.Duration
}

type partial struct {
	data    []byte
	counter byte
	time    time.Duration
}

// Assembler reassembles multi-frame messages per unit id. A consecutive or
// last chunk whose counter does not follow the previous chunk discards the
// partial message rather than splicing unrelated frames together.
type Assembler struct {
	open map[byte]*partial
}

func NewAssembler() *Assembler {
	return &Assembler{open: make(map[byte]*partial)}
}

// Feed offers one frame to the assembler and reports a completed packet
// when the frame closes one. Frames without a unit id or transport byte
// contribute nothing.
func (a *Assembler) Feed(f Frame) (Packet, bool) {
	typ, counter, ok := f.Transport()
	if !ok || !f.HasID {
		return Packet{}, false
	}

	chunk := f.Chunk()

	switch typ {
	case Single:
		data := make([]byte, len(chunk))
		copy(data, chunk)
		delete(a.open, f.ID)
		return Packet{ID: f.ID, Data: data, Time: f.Time}, true

	case First:
		p := &partial{
			data:    append(make([]byte, 0, 3*len(chunk)), chunk...),
			counter: counter,
			time:    f.Time,
		}
		a.open[f.ID] = p

	case Consecutive, Last:
		p, exists := a.open[f.ID]
		if !exists {
			return Packet{}, false
		}
		if counter != (p.counter+1)&0x1F {
			delete(a.open, f.ID)
			return Packet{}, false
		}
		p.data = append(p.data, chunk...)
		p.counter = counter

		if typ == Last {
			delete(a.open, f.ID)
			return Packet{ID: f.ID, Data: p.data, Time: p.time}, true
		}
	}

	return Packet{}, false
}
