package frame

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Delimiter terminates every frame on the wire.
const Delimiter byte = '\n'

var (
	ErrIncompleteFrame = errors.New("frame: stream closed before any bytes")
	ErrTruncatedFrame  = errors.New("frame: stream closed before delimiter")
	ErrDecode          = errors.New("frame: malformed json object")
	ErrFrameTooLarge   = errors.New("frame: frame too large")
)

// Object is one decoded frame. Values stay raw so callers can tell a missing
// field from an explicit null.
type Object map[string]json.RawMessage

// Limits constrains frame decode memory use.
type Limits struct {
	MaxFrameBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 64 * 1024,
	}
}

// Reader decodes successive newline-delimited JSON objects from one stream.
type Reader struct {
	r      *bufio.Reader
	limits Limits
}

func NewReader(r io.Reader, limits Limits) *Reader {
	if limits.MaxFrameBytes <= 0 {
		limits = DefaultLimits()
	}
	return &Reader{r: bufio.NewReader(r), limits: limits}
}

// ReadFrame returns the next frame. Stream end with nothing buffered is
// ErrIncompleteFrame; stream end mid-frame is ErrTruncatedFrame.
func (r *Reader) ReadFrame() (Object, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	return Decode(line)
}

func (r *Reader) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := r.r.ReadSlice(Delimiter)
		if len(buf)+len(chunk) > r.limits.MaxFrameBytes+1 {
			return nil, ErrFrameTooLarge
		}
		buf = append(buf, chunk...)
		switch {
		case err == nil:
			return buf[:len(buf)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(buf) == 0 {
				return nil, ErrIncompleteFrame
			}
			return nil, fmt.Errorf("%w: %d bytes buffered", ErrTruncatedFrame, len(buf))
		default:
			return nil, err
		}
	}
}

// Decode parses one frame body (delimiter already stripped).
func Decode(line []byte) (Object, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrDecode)
	}
	if !utf8.Valid(line) {
		return nil, fmt.Errorf("%w: invalid utf-8", ErrDecode)
	}
	if line[0] != '{' {
		return nil, fmt.Errorf("%w: not an object", ErrDecode)
	}
	var obj Object
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if obj == nil {
		obj = Object{}
	}
	return obj, nil
}

// Encode marshals v and appends exactly one delimiter.
func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(payload, Delimiter), nil
}

// WriteFrame writes v as one frame in a single Write call.
func WriteFrame(w io.Writer, v any) error {
	payload, err := Encode(v)
	if err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// String returns the field as a string. Missing, null, and non-string values
// report false.
func (o Object) String(key string) (string, bool) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Number returns the field as a float64.
func (o Object) Number(key string) (float64, bool) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// Has reports whether key is present, even with a null value.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Present reports whether key is present with a non-null value.
func (o Object) Present(key string) bool {
	raw, ok := o[key]
	return ok && !isNull(raw)
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
