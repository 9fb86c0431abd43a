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

package decode

import (
	"io"
	"time"
)

type histBit struct {
	bit byte
	t   time.Duration
}

// Framer assembles recovered bits into candidate frames. A sliding shift
// register hunts for a preamble byte; once found, subsequent bits are
// byte-aligned and collected up to the length implied by the first two
// bytes. Frames without a known length are bounded by carrier gaps and
// MaxFrameBytes. On overflow the framer restarts from the most recent
// preamble candidate observed inside the abandoned frame, so a corrupted
// start does not swallow the frame that follows it.
type Framer struct {
	src BitSource
	cfg Config

	isPreamble [256]bool

	// Hunt shift register and per-bit times of its current contents.
	reg    byte
	regN   uint64
	htimes [8]time.Duration

	collecting bool
	frame      Frame
	curByte    byte
	curBits    int
	expected   int

	// Bits consumed since the current frame started, for candidate
	// restarts. cand indexes one past the last bit of the most recent
	// in-frame preamble match.
	hist   []histBit
	cand   int
	replay []histBit

	eof bool
}

// NewFramer returns a frame synchronizer reading bits from src.
func NewFramer(src BitSource, cfg Config) *Framer {
	f := &Framer{
		src:  src,
		cfg:  cfg,
		hist: make([]histBit, 0, cfg.MaxFrameBytes*8),
	}
	for _, p := range cfg.Preambles {
		f.isPreamble[p] = true
	}
	return f
}

// Next returns the next candidate frame. It returns io.EOF once the bit
// source is exhausted; a frame still completable at end-of-stream is
// flushed before the EOF is surfaced.
func (f *Framer) Next() (Frame, error) {
	for {
		if f.eof && len(f.replay) == 0 {
			return Frame{}, io.EOF
		}

		var sym Symbol
		if len(f.replay) > 0 {
			hb := f.replay[0]
			f.replay = f.replay[1:]
			sym = Symbol{Kind: SymbolBit, Bit: hb.bit, Time: hb.t}
		} else {
			var err error
			sym, err = f.src.Next()
			if err == io.EOF {
				f.eof = true
				if fr, ok := f.finishOpen(); ok {
					return fr, nil
				}
				continue
			}
			if err != nil {
				return Frame{}, err
			}
		}

		switch sym.Kind {
		case SymbolGap:
			fr, ok := f.finishOpen()
			f.resetHunt()
			if ok {
				return fr, nil
			}

		case SymbolResync:
			f.collecting = false
			f.resetHunt()

		case SymbolBit:
			if fr, ok := f.consume(sym.Bit, sym.Time); ok {
				return fr, nil
			}
		}
	}
}

// consume feeds one bit through the hunt or collection state, reporting a
// completed frame when one closes.
func (f *Framer) consume(bit byte, t time.Duration) (Frame, bool) {
	f.reg = f.reg<<1 | bit
	f.htimes[f.regN&7] = t
	f.regN++

	if !f.collecting {
		if f.regN >= 8 && f.isPreamble[f.reg] {
			f.begin(f.reg, f.htimes[f.regN&7])
		}
		return Frame{}, false
	}

	f.hist = append(f.hist, histBit{bit, t})
	if f.regN >= 8 && f.isPreamble[f.reg] {
		f.cand = len(f.hist)
	}

	f.curByte = f.curByte<<1 | bit
	f.curBits++
	if f.curBits < 8 {
		return Frame{}, false
	}

	f.frame.Bytes = append(f.frame.Bytes, f.curByte)
	f.curByte = 0
	f.curBits = 0

	n := len(f.frame.Bytes)
	if n == 2 {
		f.expected = f.cfg.FrameLength(f.frame.Bytes[0], f.frame.Bytes[1])
		if f.expected > f.cfg.MaxFrameBytes {
			f.expected = 0
		}
	}

	if f.expected > 0 && n == f.expected {
		fr := f.frame
		f.collecting = false
		f.resetHunt()
		return fr, true
	}

	if f.expected == 0 && n == f.cfg.MaxFrameBytes {
		f.restart()
	}

	return Frame{}, false
}

// begin opens a new frame whose preamble byte has just left the hunt
// register. start is the time of that byte's first bit.
func (f *Framer) begin(preamble byte, start time.Duration) {
	f.collecting = true
	// Emitted frames keep their byte slices, so each frame gets a fresh one.
	bytes := make([]byte, 1, f.cfg.MaxFrameBytes)
	bytes[0] = preamble
	f.frame = Frame{Bytes: bytes, Time: start}
	f.curByte = 0
	f.curBits = 0
	f.expected = 0
	f.hist = f.hist[:0]
	f.cand = 0
	f.reg = 0
	f.regN = 0
}

// restart abandons an overgrown frame. If a preamble candidate was seen
// inside it, collection resumes there and the bits that followed are
// replayed; otherwise the hunt register has already scanned every offset
// and the bits are discarded.
func (f *Framer) restart() {
	if f.cand < 8 {
		f.collecting = false
		f.resetHunt()
		return
	}

	pre := f.hist[f.cand-8 : f.cand]
	var b byte
	for _, hb := range pre {
		b = b<<1 | hb.bit
	}

	rest := make([]histBit, len(f.hist[f.cand:]))
	copy(rest, f.hist[f.cand:])

	f.begin(b, pre[0].t)
	f.replay = append(rest, f.replay...)
}

// finishOpen closes out an in-progress frame at a gap or end-of-stream.
// Only frames without a declared length and meeting the minimum size are
// emitted; a known-length frame cut short is a framing failure.
func (f *Framer) finishOpen() (Frame, bool) {
	if !f.collecting {
		return Frame{}, false
	}
	f.collecting = false

	if f.expected == 0 && len(f.frame.Bytes) >= f.cfg.MinFrameBytes {
		return f.frame, true
	}
	return Frame{}, false
}

func (f *Framer) resetHunt() {
	f.reg = 0
	f.regN = 0
}
