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

import "io"

// Slicer recovers bits from the magnitude signal. The decision threshold is
// the midpoint between tracked local extrema, and symbol timing is taken
// from edge transitions: each inter-edge interval is classified by
// nearest-neighbor rounding against the nominal bit period. Intervals
// outside tolerance yield a resync symbol rather than unreliable bits.
type Slicer struct {
	src MagSource
	cfg Config

	spb    int
	jitter float64
	maxRun uint64 // longest same-level interval in samples

	idx      uint64
	started  bool
	min, max float64

	level     byte
	runStart  uint64
	swallowed bool

	// Pending emission. A single edge may resolve several bits; markers
	// follow any data bits from the same interval.
	pendBit byte
	pendN   int
	pendIdx uint64
	mark    SymbolKind
	markSet bool
	markIdx uint64
	eof     bool
}

// NewSlicer returns a bit recoverer reading magnitudes from src.
func NewSlicer(src MagSource, cfg Config) *Slicer {
	spb := cfg.SamplesPerBit()
	return &Slicer{
		src:    src,
		cfg:    cfg,
		spb:    spb,
		jitter: cfg.JitterFrac * float64(spb),
		maxRun: uint64(cfg.MaxRunBits * spb),
	}
}

// Next returns the next recovered symbol, or io.EOF once the magnitude
// source is exhausted and all pending symbols have drained.
func (s *Slicer) Next() (Symbol, error) {
	for {
		if s.pendN > 0 {
			sym := Symbol{Kind: SymbolBit, Bit: s.pendBit, Time: s.cfg.SampleTime(s.pendIdx)}
			s.pendIdx += uint64(s.spb)
			s.pendN--
			return sym, nil
		}
		if s.markSet {
			s.markSet = false
			return Symbol{Kind: s.mark, Time: s.cfg.SampleTime(s.markIdx)}, nil
		}
		if s.eof {
			return Symbol{}, io.EOF
		}

		m, err := s.src.Next()
		if err == io.EOF {
			s.eof = true
			if s.started && !s.swallowed {
				s.classify(s.idx)
			}
			continue
		}
		if err != nil {
			return Symbol{}, err
		}

		i := s.idx
		s.idx++

		if !s.started {
			s.started = true
			s.min, s.max = m, m
			s.runStart = i
			continue
		}

		if m > s.max {
			s.max = m
		} else {
			s.max += (m - s.max) * s.cfg.TrackAlpha
		}
		if m < s.min {
			s.min = m
		} else {
			s.min += (m - s.min) * s.cfg.TrackAlpha
		}

		level := s.threshold(m)
		if level != s.level {
			if s.swallowed {
				s.swallowed = false
			} else {
				s.classify(i)
			}
			s.level = level
			s.runStart = i
			continue
		}

		// A level held longer than any legal bit run resolves without
		// waiting for the closing edge: silence becomes a gap, a stuck
		// carrier forces a resync.
		if !s.swallowed && s.idx-s.runStart > s.maxRun {
			if s.level == 0 {
				s.pendBit = 0
				s.pendN = s.cfg.MaxRunBits
				s.pendIdx = s.runStart
				s.mark = SymbolGap
			} else {
				s.mark = SymbolResync
			}
			s.markSet = true
			s.markIdx = s.runStart + s.maxRun
			s.swallowed = true
		}
	}
}

// threshold classifies one magnitude against the adaptive midpoint with
// hysteresis. A degenerate spread reads as no carrier.
func (s *Slicer) threshold(m float64) byte {
	swing := s.max - s.min
	if swing < s.cfg.MinSwing {
		return 0
	}

	mid := s.min + swing/2
	h := swing * s.cfg.Hysteresis
	switch {
	case m > mid+h:
		return 1
	case m < mid-h:
		return 0
	}
	return s.level
}

// classify converts the interval [runStart, end) into pending bits, or a
// resync marker when the interval does not round cleanly to a whole number
// of bit periods.
func (s *Slicer) classify(end uint64) {
	run := float64(end - s.runStart)
	n := int(run/float64(s.spb) + 0.5)

	dev := run - float64(n*s.spb)
	if dev < 0 {
		dev = -dev
	}

	if n == 0 || n > s.cfg.MaxRunBits || dev > s.jitter {
		s.mark = SymbolResync
		s.markSet = true
		s.markIdx = s.runStart
		return
	}

	s.pendBit = s.level
	s.pendN = n
	s.pendIdx = s.runStart
}
