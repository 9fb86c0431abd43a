package protocol

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Event is one decoded field value. Its time is inherited from the frame
// that completed the owning packet.
type Event struct {
	ID    byte
	Field string
	Value any
	Unit  string
	Time  time.Duration
}

func (e Event) String() string {
	return fmt.Sprintf("{Time:%s ID:%02X %s:%s%s}", e.Time, e.ID, e.Field, e.format(), e.unitSuffix())
}

func (e Event) format() string {
	switch v := e.Value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(v)
	}
}

func (e Event) unitSuffix() string {
	if e.Unit == "" {
		return ""
	}
	return " " + e.Unit
}

// Record implements csv.Recorder.
func (e Event) Record() (r []string) {
	r = append(r, e.Time.String())
	r = append(r, "0x"+strconv.FormatUint(uint64(e.ID), 16))
	r = append(r, e.Field)
	r = append(r, e.format())
	r = append(r, e.Unit)
	return r
}

// Decoder holds everything that outlives a single packet: the rule table,
// fixed after construction, and the per-button switch state. Construct one
// per run and pass it every packet in order.
type Decoder struct {
	rules   RuleTable
	buttons map[Button]*buttonFSM
}

// NewDecoder returns a decoder over the default rule table.
func NewDecoder() *Decoder {
	return NewDecoderWithRules(DefaultRules())
}

// NewDecoderWithRules returns a decoder over a caller-built rule table.
func NewDecoderWithRules(rules RuleTable) *Decoder {
	return &Decoder{
		rules: rules,
		buttons: map[Button]*buttonFSM{
			ButtonUpper: {},
			ButtonLower: {},
		},
	}
}

// Decode applies the registered rule for the packet's command. An
// unregistered command yields no events and no error; the raw packet stays
// visible to the caller. A field whose byte range exceeds the payload is an
// error for that field only, the remaining extractors still run.
func (d *Decoder) Decode(pkt Packet) (events []Event, errs []error) {
	if len(pkt.Data) < 2 {
		return nil, nil
	}

	rule, registered := d.rules[Command(pkt.ID, pkt.Data)]
	if !registered {
		return nil, nil
	}

	for _, field := range rule.Fields {
		if field.Off+field.Len > len(pkt.Data) {
			errs = append(errs, errors.Errorf(
				"field %s: payload is %d bytes, need %d",
				field.Name, len(pkt.Data), field.Off+field.Len,
			))
			continue
		}

		ev, emit, err := d.extract(field, pkt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if emit {
			events = append(events, ev)
		}
	}

	return events, errs
}

func (d *Decoder) extract(field Field, pkt Packet) (ev Event, emit bool, err error) {
	ev = Event{ID: pkt.ID, Field: field.Name, Unit: field.Unit, Time: pkt.Time}
	raw := uintLE(pkt.Data[field.Off : field.Off+field.Len])

	switch field.Kind {
	case Uint:
		ev.Value = raw

	case Scaled:
		ev.Value = float64(raw) * field.Scale

	case Minutes:
		ev.Value = time.Duration(raw) * time.Minute

	case Enum:
		if raw >= uint64(len(field.Values)) {
			return ev, false, errors.Errorf("field %s: value %d out of range", field.Name, raw)
		}
		ev.Value = field.Values[raw]

	case Clock:
		b := pkt.Data[field.Off:]
		ev.Value = time.Date(
			2000+int(b[0]), time.Month(b[1]), int(b[2]),
			int(b[3]), int(b[4]), int(b[5]), 0, time.UTC,
		)

	case Switch:
		b := pkt.Data[field.Off]
		button := ButtonUpper
		if b&0x01 != 0 {
			button = ButtonLower
		}

		code := b >> 4 & 0x03
		name, transition := d.buttons[button].apply(code)
		if !transition {
			return ev, false, nil
		}
		ev.Field = field.Name + "_" + button.String()
		ev.Value = name
	}

	return ev, true, nil
}

func uintLE(b []byte) (v uint64) {
	for idx := len(b) - 1; idx >= 0; idx-- {
		v = v<<8 | uint64(b[idx])
	}
	return
}
