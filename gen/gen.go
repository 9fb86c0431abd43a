// Package gen synthesizes amplitude-modulated bus traffic for testing the
// demodulator without captured samples.
package gen

import (
	"crypto/rand"
	"math"

	"github.com/bikebus/epbus/crc"
)

// Mid is the DC level of an idle line as seen by the 8-bit sampler.
const Mid = 127.5

// UnpackBits expands packed bytes to one bit per byte, MSB first.
func UnpackBits(data []byte) []byte {
	bits := make([]byte, len(data)<<3)

	for idx, b := range data {
		offset := idx << 3
		for bit := 7; bit >= 0; bit-- {
			bits[offset+(7-bit)] = (b >> uint8(bit)) & 0x01
		}
	}

	return bits
}

// OOK keys the carrier on and off per bit, returning raw unsigned samples.
// The carrier phase is continuous across the whole burst.
func OOK(bits []byte, sampleRate, carrierFreq, bitRate int, amp float64) []byte {
	spb := sampleRate / bitRate
	signal := make([]byte, len(bits)*spb)

	w := 2 * math.Pi * float64(carrierFreq) / float64(sampleRate)
	for idx, b := range bits {
		offset := idx * spb
		for i := 0; i < spb; i++ {
			s := Mid
			if b == 1 {
				s += amp * math.Sin(w*float64(offset+i))
			}
			signal[offset+i] = uint8(s + 0.5)
		}
	}

	return signal
}

// Silence returns n samples of idle line.
func Silence(n int) []byte {
	signal := make([]byte, n)
	for idx := range signal {
		signal[idx] = uint8(Mid + 0.5)
	}
	return signal
}

// Burst modulates one frame's bytes onto the carrier.
func Burst(frame []byte, sampleRate, carrierFreq, bitRate int, amp float64) []byte {
	return OOK(UnpackBits(frame), sampleRate, carrierFreq, bitRate, amp)
}

// NewRandReply builds a random reply frame from the given unit id with a
// valid trailing checksum.
func NewRandReply(id byte) (pkt []byte, err error) {
	sum := crc.NewBusCRC()

	pkt = make([]byte, 8)
	_, err = rand.Read(pkt)
	if err != nil {
		return nil, err
	}

	pkt[0] = 0xCE
	pkt[1] = id & 0x3F
	pkt[3] = 0xC0 | pkt[3]&0x1F // single-frame transport byte

	pkt[7] = sum.Checksum(pkt[:7])

	return
}
