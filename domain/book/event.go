package book

type EventKind uint8

const (
	// EventCreated inserts a resting order. Order carries the full record.
	EventCreated EventKind = iota
	// EventUpdated reduces a resting order to Remaining.
	EventUpdated
	// EventDeleted removes a resting order (filled or cancelled).
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one durable book mutation. Seq is assigned by the durability
// layer when the event is logged; events apply literally, so replaying a
// log rebuilds the exact resting state without re-running the matcher.
type Event struct {
	Kind      EventKind
	Seq       uint64
	Order     Order
	ID        uint64
	Remaining int64
}
