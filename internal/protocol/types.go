package protocol

// Kind names one message variant.
type Kind string

const (
	KindTelemetry   Kind = "telemetry"
	KindStateReport Kind = "state"
	KindPoll        Kind = "poll"
	KindCommand     Kind = "command"
	KindJoin        Kind = "join"
	KindLeave       Kind = "leave"
	KindInvalid     Kind = "invalid"
)

// Message is the closed set of inbound variants produced by Classify.
type Message interface {
	Kind() Kind
}

// Telemetry is an RSSI observation for a tag seen from a room.
type Telemetry struct {
	Room   string
	Tag    string
	RSSI   float64
	DataOn string
}

// StateReport is a tag announcing its lifecycle state and, optionally, its room.
type StateReport struct {
	Tag    string
	Room   string
	State  string
	DataOn string
}

// CommandPoll is a tag asking for its pending command.
type CommandPoll struct {
	Tag string
}

// CommandSubmit queues an action for a tag. DataOn is empty when the sender
// did not stamp it.
type CommandSubmit struct {
	Tag    string
	Action string
	DataOn string
}

// Join associates a tag with a room.
type Join struct {
	Room   string
	Tag    string
	DataOn string
}

// Leave dissociates a tag from whichever room holds it.
type Leave struct {
	Room   string
	Tag    string
	DataOn string
}

// Invalid is any frame that matched no variant.
type Invalid struct {
	Reason string
}

func (Telemetry) Kind() Kind     { return KindTelemetry }
func (StateReport) Kind() Kind   { return KindStateReport }
func (CommandPoll) Kind() Kind   { return KindPoll }
func (CommandSubmit) Kind() Kind { return KindCommand }
func (Join) Kind() Kind          { return KindJoin }
func (Leave) Kind() Kind         { return KindLeave }
func (Invalid) Kind() Kind       { return KindInvalid }
