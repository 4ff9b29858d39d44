package answer

// State identifies a stage of the answer pipeline. Every query moves
// strictly forward through the states; Rejected and Failed are terminal.
type State int

const (
	StateReceived State = iota
	StateInputChecked
	StateRouted
	StateRetrieved
	StateSynthesized
	StateOutputChecked
	StateReturned
	StateRejected
	StateFailed
)

var stateNames = map[State]string{
	StateReceived:      "received",
	StateInputChecked:  "input_checked",
	StateRouted:        "routed",
	StateRetrieved:     "retrieved",
	StateSynthesized:   "synthesized",
	StateOutputChecked: "output_checked",
	StateReturned:      "returned",
	StateRejected:      "rejected",
	StateFailed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
