package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// switchPacket wraps one switch payload byte in a packet for unit 0x0D.
func switchPacket(b byte) Packet {
	return Packet{ID: 0x0D, Data: []byte{0x04, 0x00, b}}
}

func switchEvents(t *testing.T, d *Decoder, bytes ...byte) (names []string, fields []string) {
	t.Helper()
	for _, b := range bytes {
		events, errs := d.Decode(switchPacket(b))
		require.Empty(t, errs)
		for _, ev := range events {
			names = append(names, ev.Value.(string))
			fields = append(fields, ev.Field)
		}
	}
	return names, fields
}

func TestSwitchPressRelease(t *testing.T) {
	d := NewDecoder()

	names, fields := switchEvents(t, d, 0x00, 0x10)
	assert.Equal(t, []string{"pressed", "released"}, names)
	assert.Equal(t, []string{"switch_upper", "switch_upper"}, fields)
}

func TestSwitchHold(t *testing.T) {
	d := NewDecoder()

	// The hold code repeats for as long as the button stays down; only
	// the first repeat is a transition.
	names, _ := switchEvents(t, d, 0x00, 0x20, 0x20, 0x20, 0x10)
	assert.Equal(t, []string{"pressed", "held", "released from hold"}, names)
}

func TestSwitchButtons(t *testing.T) {
	d := NewDecoder()

	// Bit 0 selects the paddle; the two track state independently.
	names, fields := switchEvents(t, d, 0x00, 0x01, 0x10, 0x11)
	assert.Equal(t, []string{"pressed", "pressed", "released", "released"}, names)
	assert.Equal(t, []string{"switch_upper", "switch_lower", "switch_upper", "switch_lower"}, fields)
}

func TestSwitchSpuriousCodes(t *testing.T) {
	d := NewDecoder()

	// Release without a press, hold without a press: no transitions.
	names, _ := switchEvents(t, d, 0x10, 0x20)
	assert.Empty(t, names)

	// Repeated press while already down is not a second press.
	names, _ = switchEvents(t, d, 0x00, 0x00, 0x10)
	assert.Equal(t, []string{"pressed", "released"}, names)
}
