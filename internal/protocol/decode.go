package protocol

import "github.com/danmuck/bedctl/internal/protocol/frame"

// Classify maps one decoded frame onto exactly one message variant. Rules are
// evaluated in priority order and the first match wins.
func Classify(obj frame.Object) Message {
	status, hasStatus := obj.String(FieldStatus)
	room, hasRoom := roomOf(obj)
	tag, hasTag := tagOf(obj)
	dataOn, _ := obj.String(FieldDataOn)

	// rssi readings
	if rssi, ok := obj.Number(FieldRSSI); ok && status == TokenRSSI && hasRoom && hasTag {
		return Telemetry{Room: room, Tag: tag, RSSI: rssi, DataOn: dataOn}
	}

	// state reports
	if obj.Has(FieldState) {
		state, ok := obj.String(FieldState)
		if !ok || state == "" || !hasTag {
			return Invalid{Reason: ReasonIncompletePayload}
		}
		if dataOn != "" && !validTimestamp(dataOn) {
			return Invalid{Reason: ReasonInvalidTimestamp}
		}
		return StateReport{Tag: tag, Room: room, State: state, DataOn: dataOn}
	}

	// command polls carry the tag id and nothing else
	if len(obj) == 1 && hasTag {
		return CommandPoll{Tag: tag}
	}

	// command submissions
	if obj.Has(FieldAction) {
		action, ok := obj.String(FieldAction)
		if !ok || action == "" || !hasTag {
			return Invalid{Reason: ReasonIncompletePayload}
		}
		if dataOn != "" && !validTimestamp(dataOn) {
			return Invalid{Reason: ReasonInvalidTimestamp}
		}
		return CommandSubmit{Tag: tag, Action: action, DataOn: dataOn}
	}

	if !hasAny(obj, FieldRoom, FieldRoomAlt, FieldTag, FieldTagAlt, FieldStatus) {
		return Invalid{Reason: ReasonInvalidPayload}
	}
	if !hasRoom || !hasTag || !hasStatus || status == "" {
		return Invalid{Reason: ReasonIncompletePayload}
	}

	switch status {
	case TokenGet:
		if dataOn == "" {
			return Invalid{Reason: ReasonIncompletePayload}
		}
		if !validTimestamp(dataOn) {
			return Invalid{Reason: ReasonInvalidTimestamp}
		}
		return Join{Room: room, Tag: tag, DataOn: dataOn}
	case TokenOut:
		return Leave{Room: room, Tag: tag, DataOn: dataOn}
	default:
		return Invalid{Reason: ReasonInvalidStatus}
	}
}
