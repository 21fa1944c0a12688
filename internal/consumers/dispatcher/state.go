package dispatcher

// State is the phase a Dispatcher is in. The cycle is Idle → Claiming → Processing →
// Acking → Idle; Stopped is terminal.
type State int32

const (
	Idle State = iota
	Claiming
	Processing
	Acking
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Claiming:
		return "claiming"
	case Processing:
		return "processing"
	case Acking:
		return "acking"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats are cumulative counters of one dispatcher.
type Stats struct {
	Consumer     string `json:"consumer"`
	State        string `json:"state"`
	Claimed      uint64 `json:"claimed"`
	Processed    uint64 `json:"processed"`
	Acked        uint64 `json:"acked"`
	DeadLettered uint64 `json:"dead_lettered"`
	Failed       uint64 `json:"failed"`
	Panics       uint64 `json:"panics"`
	ClaimErrors  uint64 `json:"claim_errors"`
	AckErrors    uint64 `json:"ack_errors"`
}
