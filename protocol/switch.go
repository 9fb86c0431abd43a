package protocol

// Switch payload byte: bit 0 selects the button, bits [5:4] carry the
// transition code.
const (
	codePressed  = 0
	codeReleased = 1
	codeHold     = 2
)

// Button identifies one of the two physical switch paddles.
type Button byte

const (
	ButtonUpper Button = iota
	ButtonLower
)

func (b Button) String() string {
	if b == ButtonLower {
		return "lower"
	}
	return "upper"
}

// SwitchState is the tracked state of one button.
type SwitchState byte

const (
	Released SwitchState = iota
	Pressed
	Held
)

// buttonFSM tracks one button across packets. The bus repeats the hold
// code for as long as the button stays down; only the first repeat is a
// transition.
type buttonFSM struct {
	state SwitchState
}

// apply advances the state machine by one code, returning the event name
// for a transition and false when the code repeats the current state.
func (m *buttonFSM) apply(code byte) (string, bool) {
	switch code {
	case codePressed:
		if m.state == Released {
			m.state = Pressed
			return "pressed", true
		}

	case codeHold:
		if m.state == Pressed {
			m.state = Held
			return "held", true
		}

	case codeReleased:
		switch m.state {
		case Held:
			m.state = Released
			return "released from hold", true
		case Pressed:
			m.state = Released
			return "released", true
		}
	}

	return "", false
}
