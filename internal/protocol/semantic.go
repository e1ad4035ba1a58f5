package protocol

import (
	"fmt"
	"time"
)

// TimestampLayout is the dataOn wire format: UTC, millisecond precision, Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in the dataOn wire format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts only the exact wire format, so stored dataOn values
// are always millisecond UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	return t, nil
}

func validTimestamp(raw string) bool {
	_, err := ParseTimestamp(raw)
	return err == nil
}
