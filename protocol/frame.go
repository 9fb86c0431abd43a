// Package protocol interprets frames recovered from the e-bike bus:
// header classification, checksum validation, multi-frame transport
// reassembly, and the table-driven decoding of packet payloads into typed
// events. The field semantics are reverse-engineered from captured traffic
// and are best-effort rather than a complete contract.
package protocol

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bikebus/epbus/crc"
	"github.com/bikebus/epbus/decode"
)

// Bus line constants.
const (
	SampleRate  = 5000000
	CarrierFreq = 1000000
	BitRate     = 500000

	// Frame start bytes.
	StartBroadcast = 0xCC
	StartReply     = 0xCE
	StartWatchdog  = 0xCF

	// Second byte of a broadcast data frame.
	BroadcastMarker = 0x40

	ShortFrameLen = 3
	DataFrameLen  = 8

	// Anything longer is a demodulation error.
	MaxFrameLen = 20

	unitIDMask = 0x3F
)

var busCRC = crc.NewBusCRC()

// NewPacketConfig returns the demodulator configuration for the bus.
func NewPacketConfig() decode.Config {
	cfg := decode.Config{
		SampleRate:  SampleRate,
		CarrierFreq: CarrierFreq,
		BitRate:     BitRate,

		Preambles:     []byte{StartBroadcast, StartReply, StartWatchdog},
		FrameLength:   FrameLength,
		MinFrameBytes: ShortFrameLen,
		MaxFrameBytes: MaxFrameLen,
	}
	return cfg.Defaults()
}

// FrameLength reports the total frame length implied by the first two frame
// bytes, or 0 when the header does not pin the length down.
func FrameLength(b0, b1 byte) int {
	switch b0 {
	case StartReply:
		return DataFrameLen
	case StartWatchdog:
		return ShortFrameLen
	case StartBroadcast:
		switch {
		case b1 == BroadcastMarker:
			return DataFrameLen
		case b1&0x80 != 0:
			return ShortFrameLen
		}
	}
	return 0
}

// FrameKind classifies a frame by its header bytes.
type FrameKind byte

const (
	KindUnknown FrameKind = iota
	KindWatchdog
	KindBroadcast
	KindRequest
	KindReply
)

func (k FrameKind) String() string {
	switch k {
	case KindWatchdog:
		return "watchdog"
	case KindBroadcast:
		return "broadcast"
	case KindRequest:
		return "request"
	case KindReply:
		return "reply"
	}
	return "unknown"
}

// Frame is one bus frame with its header interpretation and integrity
// annotation. Validity is advisory: corrupt frames still flow downstream
// for diagnostic visibility.
type Frame struct {
	Bytes []byte
	Time  time.Duration

	Kind  FrameKind
	ID    byte
	HasID bool

	HasChecksum bool
	ChecksumOK  bool
}

// ParseFrame classifies a recovered frame's header and extracts the unit
// id where the header carries one.
func ParseFrame(raw decode.Frame) (f Frame) {
	f.Bytes = raw.Bytes
	f.Time = raw.Time

	if len(f.Bytes) < 2 {
		return f
	}

	b0, b1 := f.Bytes[0], f.Bytes[1]
	switch b0 {
	case StartWatchdog:
		f.Kind = KindWatchdog
	case StartReply:
		f.Kind = KindReply
		f.ID = b1 & unitIDMask
		f.HasID = true
	case StartBroadcast:
		switch {
		case b1 == BroadcastMarker:
			if len(f.Bytes) > 2 {
				f.Kind = KindBroadcast
				f.ID = f.Bytes[2] & unitIDMask
				f.HasID = true
			}
		case b1&0x80 != 0:
			f.Kind = KindRequest
			f.ID = b1 & unitIDMask
			f.HasID = true
		}
	}

	return f
}

// Validate annotates the frame with the result of recomputing its trailing
// checksum. Short frames carry no checksum on this bus.
func Validate(f Frame) Frame {
	f.HasChecksum = len(f.Bytes) > ShortFrameLen
	if f.HasChecksum {
		f.ChecksumOK = busCRC.Verify(f.Bytes)
	}
	return f
}

// Chunk returns the transport payload bytes of a data frame.
func (f Frame) Chunk() []byte {
	if len(f.Bytes) != DataFrameLen {
		return nil
	}
	return f.Bytes[4:7]
}

// Bits renders the frame as a binary string, one group per byte.
func (f Frame) Bits() string {
	var bits string
	for idx, b := range f.Bytes {
		if idx > 0 {
			bits += " "
		}
		bits += fmt.Sprintf("%08b", b)
	}
	return bits
}

func (f Frame) String() string {
	crcStr := "N/A"
	if f.HasChecksum {
		if f.ChecksumOK {
			crcStr = "OK"
		} else {
			crcStr = "ERR"
		}
	}
	return fmt.Sprintf("{Time:%s Kind:%s ID:%02X CRC:%s Bytes:% 02X}",
		f.Time, f.Kind, f.ID, crcStr, f.Bytes,
	)
}

// Record implements csv.Recorder.
func (f Frame) Record() (r []string) {
	r = append(r, f.Time.String())
	r = append(r, f.Kind.String())
	r = append(r, "0x"+strconv.FormatUint(uint64(f.ID), 16))
	r = append(r, strconv.FormatBool(f.HasChecksum && f.ChecksumOK))
	r = append(r, fmt.Sprintf("%02x", f.Bytes))
	return r
}
