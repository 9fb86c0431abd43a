package protocol

import "fmt"

// Command forms the rule-table key for a packet: the unit id in the high
// byte and the packet's first two bytes below it.
func Command(id byte, data []byte) uint32 {
	return uint32(id)<<16 | uint32(data[0])<<8 | uint32(data[1])
}

// Kind selects the decoding transform a field applies to its byte range.
type Kind int

const (
	// Uint is a little-endian unsigned integer.
	Uint Kind = iota
	// Scaled is a little-endian unsigned integer times Scale.
	Scaled
	// Enum maps a little-endian unsigned integer onto Values.
	Enum
	// Clock is a six byte yy mm dd hh mm ss timestamp, year offset 2000.
	Clock
	// Minutes is a little-endian unsigned minute count.
	Minutes
	// Switch is a press/hold/release code fed through the per-button
	// state machine.
	Switch
)

// Field extracts one named, typed value from a byte range of a packet.
type Field struct {
	Name string
	Unit string

	Off, Len int

	Kind   Kind
	Scale  float64
	Values []string
}

// Rule is the ordered list of field extractors registered for one command.
type Rule struct {
	Name   string
	Fields []Field
}

// RuleTable maps commands to rules. The table is append-only: it is
// populated before decoding starts and never mutated afterwards.
type RuleTable map[uint32]Rule

// Register adds a rule for one or more commands carrying the same payload
// semantics. Duplicate registration is a programming error.
func (t RuleTable) Register(rule Rule, commands ...uint32) {
	for _, cmd := range commands {
		if _, dup := t[cmd]; dup {
			panic(fmt.Sprintf("protocol: rule already registered (0x%06x)", cmd))
		}
		t[cmd] = rule
	}
}

var (
	assistModes = []string{"off", "eco", "trail", "boost"}
	walkModes   = []string{"off", "on", "active"}
)

// DefaultRules returns the known command table for the bus. Most commands
// occur under two ids because the display and the drive unit exchange the
// same record in both directions.
func DefaultRules() RuleTable {
	t := make(RuleTable)

	t.Register(Rule{
		Name:   "speed",
		Fields: []Field{{Name: "speed", Unit: "km/h", Off: 2, Len: 2, Kind: Scaled, Scale: 0.1}},
	}, 0x0D3C08, 0x1A3C0A)

	t.Register(Rule{
		Name:   "max speed",
		Fields: []Field{{Name: "max_speed", Unit: "km/h", Off: 2, Len: 2, Kind: Scaled, Scale: 0.1}},
	}, 0x0D1638, 0x1A163A)

	t.Register(Rule{
		Name:   "avg speed",
		Fields: []Field{{Name: "avg_speed", Unit: "km/h", Off: 2, Len: 2, Kind: Scaled, Scale: 0.1}},
	}, 0x0D1630, 0x1A1632)

	t.Register(Rule{
		Name:   "trip distance",
		Fields: []Field{{Name: "trip_distance", Unit: "m", Off: 2, Len: 4, Kind: Uint}},
	}, 0x0D4808, 0x1A480A)

	t.Register(Rule{
		Name:   "odometer",
		Fields: []Field{{Name: "odometer", Unit: "m", Off: 2, Len: 4, Kind: Uint}},
	}, 0x0D4828, 0x1A482A)

	t.Register(Rule{
		Name:   "cadence",
		Fields: []Field{{Name: "cadence", Unit: "rpm", Off: 4, Len: 1, Kind: Uint}},
	}, 0x0D3848, 0x1A384A)

	t.Register(Rule{
		Name:   "trip time",
		Fields: []Field{{Name: "trip_time", Off: 2, Len: 4, Kind: Minutes}},
	}, 0x0D1628, 0x1A162A)

	t.Register(Rule{
		Name: "range",
		Fields: []Field{
			{Name: "range_boost", Unit: "km", Off: 2, Len: 2, Kind: Uint},
			{Name: "range_trail", Unit: "km", Off: 4, Len: 2, Kind: Uint},
			{Name: "range_eco", Unit: "km", Off: 6, Len: 2, Kind: Uint},
		},
	}, 0x0D1620, 0x1A1622)

	t.Register(Rule{
		Name:   "assist mode",
		Fields: []Field{{Name: "assist_mode", Off: 2, Len: 2, Kind: Enum, Values: assistModes}},
	}, 0x0D1600, 0x1A1602)

	t.Register(Rule{
		Name:   "walk mode",
		Fields: []Field{{Name: "walk_mode", Off: 2, Len: 1, Kind: Enum, Values: walkModes}},
	}, 0x0D1660, 0x1A1662, 0x131660, 0x261662)

	t.Register(Rule{
		Name:   "battery",
		Fields: []Field{{Name: "battery", Unit: "%", Off: 2, Len: 1, Kind: Uint}},
	}, 0x0D2640, 0x1A2642)

	t.Register(Rule{
		Name:   "clock",
		Fields: []Field{{Name: "clock", Off: 2, Len: 6, Kind: Clock}},
	}, 0x3F4A00, 0x1A4A0E)

	t.Register(Rule{
		Name:   "switch",
		Fields: []Field{{Name: "switch", Off: 2, Len: 1, Kind: Switch}},
	}, 0x0D0400, 0x260400)

	// Static records with no known variable content.
	t.Register(Rule{Name: "static"},
		0x0D4A0C, 0x1A0102, 0x260102, 0x3F0200, 0x3F0208)

	return t
}
