package eventloop

// State is a phase of a capture run.
type State int

const (
	Idle State = iota
	Running
	Stopping
	ConfirmDedup
	Finalized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case ConfirmDedup:
		return "confirm-dedup"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Capabilities describes what the host can do, probed once at startup.
type Capabilities struct {
	Display    bool
	Windows    bool
	Keystrokes bool
	Hotkey     bool
	Preview    bool
	Clipboard  bool
	Reformat   bool
	LocalOCR   bool
}
