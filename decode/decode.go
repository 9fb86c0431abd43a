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

// Package decode recovers a byte-aligned frame stream from raw amplitude
// samples. The pipeline is strictly pull-based: an Envelope demodulates the
// carrier amplitude, a Slicer recovers timestamped bits from it, and a
// Framer assembles the bits into candidate frames.
package decode

import "time"

// Config specifies line-specific demodulator configuration. Values of zero
// take the defaults applied by Defaults.
type Config struct {
	SampleRate  int // samples per second
	CarrierFreq int // Hz
	BitRate     int // bits per second

	// Framing. Preambles lists the byte values that may start a frame.
	// FrameLength reports the total frame length implied by the first two
	// frame bytes, or 0 when the length is not known up front.
	Preambles     []byte
	FrameLength   func(b0, b1 byte) int
	MinFrameBytes int
	MaxFrameBytes int

	// Slicer tuning.
	MaxRunBits int     // longest run of identical bits accepted as data
	JitterFrac float64 // edge timing tolerance as a fraction of a bit period
	MinSwing   float64 // smallest min/max spread treated as signal
	Hysteresis float64 // threshold hysteresis as a fraction of the spread

	// Envelope tuning.
	BaselineAlpha float64 // DC baseline tracking rate
	TrackAlpha    float64 // slicer min/max tracking rate
}

// Defaults fills any unset tuning fields in place and returns the config.
func (cfg Config) Defaults() Config {
	if cfg.MinFrameBytes == 0 {
		cfg.MinFrameBytes = 3
	}
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = 20
	}
	if cfg.MaxRunBits == 0 {
		cfg.MaxRunBits = 32
	}
	if cfg.JitterFrac == 0 {
		cfg.JitterFrac = 0.35
	}
	if cfg.MinSwing == 0 {
		cfg.MinSwing = 4.0
	}
	if cfg.Hysteresis == 0 {
		cfg.Hysteresis = 0.1
	}
	if cfg.BaselineAlpha == 0 {
		cfg.BaselineAlpha = 1.0 / 4096
	}
	if cfg.TrackAlpha == 0 {
		cfg.TrackAlpha = 1.0 / 256
	}
	return cfg
}

// SamplesPerBit reports the nominal bit period in samples.
func (cfg Config) SamplesPerBit() int {
	return cfg.SampleRate / cfg.BitRate
}

// SampleTime converts a sample index to elapsed time since the start of the
// run. Split division avoids overflowing at long capture durations.
func (cfg Config) SampleTime(idx uint64) time.Duration {
	rate := uint64(cfg.SampleRate)
	return time.Duration(idx/rate)*time.Second +
		time.Duration((idx%rate)*uint64(time.Second)/rate)
}

// A MagSource produces successive envelope magnitude values, one per raw
// sample. It returns io.EOF when the underlying source is exhausted.
type MagSource interface {
	Next() (float64, error)
}

// A BitSource produces successive line symbols.
type BitSource interface {
	Next() (Symbol, error)
}

// SymbolKind distinguishes recovered data bits from line conditions the
// framer must react to.
type SymbolKind byte

const (
	// SymbolBit is a recovered data bit.
	SymbolBit SymbolKind = iota
	// SymbolGap marks carrier silence longer than any legal bit run.
	SymbolGap
	// SymbolResync marks an interval that could not be classified. Any
	// frame in progress is unreliable past this point.
	SymbolResync
)

// Symbol is one recovered line symbol with the time its first sample was
// observed.
type Symbol struct {
	Kind SymbolKind
	Bit  byte
	Time time.Duration
}

// Frame is a candidate frame as recovered from the line: raw bytes starting
// with the preamble byte, and the time of the first preamble bit.
type Frame struct {
	Bytes []byte
	Time  time.Duration
}
