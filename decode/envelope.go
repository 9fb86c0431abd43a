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
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Envelope demodulates the carrier amplitude from a stream of unsigned
// 8-bit samples. Each sample is rectified around a slowly tracked DC
// baseline and averaged over one carrier period, which suppresses the
// carrier ripple while preserving the modulation envelope.
type Envelope struct {
	r   *bufio.Reader
	cfg Config

	baseline float64

	// Moving-average ring sized to one carrier period.
	window []float64
	wIdx   int
	sum    float64
	inv    float64
}

// NewEnvelope returns an envelope extractor reading raw samples from r.
func NewEnvelope(r io.Reader, cfg Config) *Envelope {
	n := cfg.SampleRate / cfg.CarrierFreq

	return &Envelope{
		r:        bufio.NewReaderSize(r, 1<<16),
		cfg:      cfg,
		baseline: 127.5,
		window:   make([]float64, n),
		inv:      1 / float64(n),
	}
}

// Next returns the next magnitude value. It returns io.EOF once the sample
// source is exhausted and a wrapped error for any other read failure.
func (e *Envelope) Next() (float64, error) {
	b, err := e.r.ReadByte()
	if err == io.EOF {
		return 0, io.EOF
	}
	if err != nil {
		return 0, errors.Wrap(err, "read sample")
	}

	s := float64(b)
	e.baseline += (s - e.baseline) * e.cfg.BaselineAlpha

	mag := s - e.baseline
	if mag < 0 {
		mag = -mag
	}

	e.sum += mag - e.window[e.wIdx]
	e.window[e.wIdx] = mag
	e.wIdx++
	if e.wIdx == len(e.window) {
		e.wIdx = 0
	}

	return e.sum * e.inv, nil
}
