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

// epbusdump reads raw bus samples from a file or a live pipe and prints
// demodulated frames and decoded telemetry. Sample acquisition lives
// outside this program: anything that delivers unsigned 8-bit samples at
// 5 MSps on stdin will do, an oscilloscope streaming script included.
package main

import (
	"flag"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bikebus/epbus"
	"github.com/bikebus/epbus/csv"
)

var (
	sampleFile = flag.String("samplefile", "-", "raw sample file, - for stdin")
	format     = flag.String("format", "plain", "output format: plain, csv or json")
	timeLimit  = flag.Duration("duration", 0, "amount of bus time to process, 0 for all")

	frames  = flag.Bool("frames", false, "log every demodulated frame, not just decoded events")
	invalid = flag.Bool("invalid", false, "keep events decoded from frames failing their checksum")
	verbose = flag.Bool("v", false, "enable debug logging")

	unitID = UnitIDFilter{make(UintMap)}
)

func init() {
	flag.Var(unitID, "filterid", "process only the given comma-separated unit ids")
}

func main() {
	flag.Parse()

	log.SetOutput(os.Stderr)
	switch strings.ToLower(*format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	input := os.Stdin
	if *sampleFile != "-" {
		var err error
		input, err = os.Open(*sampleFile)
		if err != nil {
			log.WithError(err).Fatal("open sample file")
		}
		defer input.Close()
	}

	var enc *csv.Encoder
	if strings.ToLower(*format) == "csv" {
		enc = csv.NewEncoder(os.Stdout)
		if err := enc.Header("time", "id", "field", "value", "unit"); err != nil {
			log.WithError(err).Fatal("write csv header")
		}
	}

	start := time.Now()
	p := epbus.New(input)

	var frameCount, crcErrCount uint64

	for {
		res, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithError(err).Fatal("pipeline")
		}

		frame := res.Frame
		if *timeLimit != 0 && frame.Time > *timeLimit {
			break
		}
		if !unitID.Match(frame) {
			continue
		}

		frameCount++
		if frame.HasChecksum && !frame.ChecksumOK {
			crcErrCount++
		}

		if *frames {
			log.WithFields(log.Fields{
				"time":  frame.Time,
				"kind":  frame.Kind,
				"id":    frame.ID,
				"crc":   frame.HasChecksum && frame.ChecksumOK,
				"bytes": frame.Bytes,
				"bits":  frame.Bits(),
			}).Info("demod")
		}

		for _, ferr := range res.FieldErrs {
			log.WithError(ferr).WithField("id", frame.ID).Warn("decod")
		}

		if !*invalid && frame.HasChecksum && !frame.ChecksumOK {
			continue
		}

		for _, ev := range res.Events {
			if enc != nil {
				if err := enc.Encode(ev); err != nil {
					log.WithError(err).Fatal("write csv record")
				}
				continue
			}

			log.WithFields(log.Fields{
				"time":  start.Add(ev.Time).Format("2006-01-02T15:04:05.000"),
				"id":    ev.ID,
				"field": ev.Field,
				"value": ev.Value,
				"unit":  ev.Unit,
			}).Info("decod")
		}
	}

	log.WithFields(log.Fields{
		"frames":  frameCount,
		"crcerrs": crcErrCount,
	}).Info("run complete")
}
