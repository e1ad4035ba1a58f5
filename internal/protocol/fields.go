package protocol

import "github.com/danmuck/bedctl/internal/protocol/frame"

// Wire field names. Each concept has a Portuguese spelling (GET/OUT/RSSI
// reports) and an English spelling (state reports, polls, commands).
const (
	FieldRoom    = "quarto"
	FieldRoomAlt = "room"
	FieldTag     = "ativo"
	FieldTagAlt  = "bed"
	FieldStatus  = "status"
	FieldState   = "state"
	FieldAction  = "action"
	FieldDataOn  = "dataOn"
	FieldRSSI    = "rssi"
	FieldError   = "erro"
)

// Inbound status tokens.
const (
	TokenGet  = "GET"
	TokenOut  = "OUT"
	TokenRSSI = "RSSI"
)

// Outbound status tokens.
const (
	StatusOK         = "300"
	StatusNoContent  = "204"
	StatusBadRequest = "400"
	StatusUpstream   = "500"
	StatusReset      = "RESET"
	StatusQueued     = "queued"
)

// tagOf returns the tag id under either spelling, preferring "ativo".
func tagOf(obj frame.Object) (string, bool) {
	return firstString(obj, FieldTag, FieldTagAlt)
}

// roomOf returns the room id under either spelling, preferring "quarto".
func roomOf(obj frame.Object) (string, bool) {
	return firstString(obj, FieldRoom, FieldRoomAlt)
}

func hasAny(obj frame.Object, keys ...string) bool {
	for _, key := range keys {
		if obj.Has(key) {
			return true
		}
	}
	return false
}

func firstString(obj frame.Object, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := obj.String(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
