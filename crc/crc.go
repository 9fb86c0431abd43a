package crc

import "fmt"

// The bus terminates every data frame with a single CRC-8 byte computed
// MSB-first with no final xor. The polynomial and initial value below were
// recovered from captured traffic.
const (
	BusPoly = 0x07
	BusInit = 0x6F
)

type CRC struct {
	Name string
	Init uint8
	Poly uint8

	tbl Table
}

func NewCRC(name string, init, poly uint8) (crc CRC) {
	crc.Name = name
	crc.Init = init
	crc.Poly = poly
	crc.tbl = NewTable(crc.Poly)

	return
}

// NewBusCRC returns the checksum used by the e-bike bus.
func NewBusCRC() CRC {
	return NewCRC("BUS", BusInit, BusPoly)
}

func (crc CRC) String() string {
	return fmt.Sprintf("{Name:%s Init:0x%02X Poly:0x%02X}", crc.Name, crc.Init, crc.Poly)
}

func (crc CRC) Checksum(data []byte) uint8 {
	return Checksum(crc.Init, data, crc.tbl)
}

// Verify recomputes the checksum over all but the last byte of data and
// compares it against the last byte.
func (crc CRC) Verify(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return crc.Checksum(data[:len(data)-1]) == data[len(data)-1]
}

type Table [256]uint8

func NewTable(poly uint8) (table Table) {
	for tIdx := range table {
		crc := uint8(tIdx)
		for bIdx := 0; bIdx < 8; bIdx++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc = crc << 1
			}
		}
		table[tIdx] = crc
	}
	return table
}

func Checksum(init uint8, data []byte, table Table) (crc uint8) {
	crc = init
	for _, v := range data {
		crc = table[crc^v]
	}
	return
}
