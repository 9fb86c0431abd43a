// EPBUS - a receiver for the amplitude-modulated serial bus of EP-series
// e-bike drive units.
// Copyright (C) 2026 the epbus authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package epbus assembles the full receive pipeline: raw amplitude samples
// in, classified frames and decoded telemetry events out. Samples flow one
// way through pull-based stages; nothing is buffered beyond one frame and
// the demodulator windows.
package epbus

import (
	"io"

	"github.com/bikebus/epbus/decode"
	"github.com/bikebus/epbus/protocol"
)

// Result is emitted once per recovered frame: the annotated frame itself,
// the packet it completed if any, and the events decoded from that packet.
// FieldErrs carries per-field decode failures; they never abort the frame.
type Result struct {
	Frame     protocol.Frame
	Packet    *protocol.Packet
	Events    []protocol.Event
	FieldErrs []error
}

// Pipeline is a single-threaded streaming receiver over one sample source.
// It is not restartable; construct a new one for a new source.
type Pipeline struct {
	framer *decode.Framer
	asm    *protocol.Assembler
	dec    *protocol.Decoder
}

// New returns a pipeline over r with the default bus configuration and
// rule table. r must produce unsigned 8-bit samples at the bus sample rate.
func New(r io.Reader) *Pipeline {
	return NewWithConfig(r, protocol.NewPacketConfig(), protocol.NewDecoder())
}

// NewWithConfig returns a pipeline with caller-supplied demodulator
// configuration and decoder context.
func NewWithConfig(r io.Reader, cfg decode.Config, dec *protocol.Decoder) *Pipeline {
	env := decode.NewEnvelope(r, cfg)
	bits := decode.NewSlicer(env, cfg)

	return &Pipeline{
		framer: decode.NewFramer(bits, cfg),
		asm:    protocol.NewAssembler(),
		dec:    dec,
	}
}

// Next returns the result for the next recovered frame. It returns io.EOF
// when the sample source is exhausted; any completable frame is flushed
// first. Checksum failures do not suppress decoding, consumers are
// expected to treat events from invalid frames as suspect.
func (p *Pipeline) Next() (Result, error) {
	raw, err := p.framer.Next()
	if err != nil {
		return Result{}, err
	}

	res := Result{Frame: protocol.Validate(protocol.ParseFrame(raw))}

	if pkt, done := p.asm.Feed(res.Frame); done {
		res.Packet = &pkt
		res.Events, res.FieldErrs = p.dec.Decode(pkt)
	}

	return res, nil
}
