package protocol

import "errors"

var (
	ErrInvalidTimestamp = errors.New("protocol: invalid timestamp")
	ErrUnknownMessage   = errors.New("protocol: unknown message kind")
)

// Rejection reasons carried in the "erro" field of 400 responses.
const (
	ReasonInvalidPayload    = "invalid payload"
	ReasonIncompletePayload = "incomplete payload"
	ReasonInvalidStatus     = "invalid status"
	ReasonInvalidTimestamp  = "invalid dataOn"
	ReasonAlreadyAssociated = "tag already associated with another room"
	ReasonTagNotFound       = "tag not found"
	ReasonRoomFull          = "room is full"
	ReasonUnknownRoom       = "unknown room"
	ReasonRecordFailed      = "failed to record rssi"
)
