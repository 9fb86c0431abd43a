package main

import (
	"strconv"
	"strings"

	"github.com/bikebus/epbus/protocol"
)

type UintMap map[uint]bool

func (m UintMap) String() (s string) {
	var values []string
	for k := range m {
		values = append(values, strconv.FormatUint(uint64(k), 10))
	}
	return strings.Join(values, ",")
}

func (m UintMap) Set(value string) error {
	values := strings.Split(value, ",")

	for _, v := range values {
		n, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return err
		}

		m[uint(n)] = true
	}

	return nil
}

type UnitIDFilter struct {
	UintMap
}

// Match reports whether the frame passes the filter. An empty filter
// passes everything; frames without a unit id always pass since dropping
// them would hide demodulation problems.
func (m UnitIDFilter) Match(f protocol.Frame) bool {
	if len(m.UintMap) == 0 || !f.HasID {
		return true
	}
	return m.UintMap[uint(f.ID)]
}
