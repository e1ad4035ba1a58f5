package frame

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadFrameSplitsBackToBackObjects(t *testing.T) {
	r := NewReader(strings.NewReader("{\"bed\":\"X\"}\n{\"bed\":\"Y\"}\n"), DefaultLimits())

	first, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if bed, _ := first.String("bed"); bed != "X" {
		t.Fatalf("unexpected first bed: %q", bed)
	}
	second, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("read second frame: %v", err)
	}
	if bed, _ := second.String("bed"); bed != "Y" {
		t.Fatalf("unexpected second bed: %q", bed)
	}
	if _, err := r.ReadFrame(); !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("expected ErrIncompleteFrame after last frame, got %v", err)
	}
}

func TestReadFrameEmptyStreamIsIncomplete(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil), DefaultLimits()).ReadFrame()
	if !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("expected ErrIncompleteFrame, got %v", err)
	}
}

func TestReadFramePartialBytesAreTruncated(t *testing.T) {
	_, err := NewReader(strings.NewReader(`{"bed":"X"}`), DefaultLimits()).ReadFrame()
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("expected ErrTruncatedFrame, got %v", err)
	}
}

func TestReadFrameMalformedJSON(t *testing.T) {
	cases := []string{
		"{\"bed\":\n",
		"[1,2,3]\n",
		"\"bed\"\n",
		"\n",
		"{\"bed\":\"X\"} trailing\n",
		"\xff\xfe\n",
	}
	for _, in := range cases {
		_, err := NewReader(strings.NewReader(in), DefaultLimits()).ReadFrame()
		if !errors.Is(err, ErrDecode) {
			t.Fatalf("input %q: expected ErrDecode, got %v", in, err)
		}
	}
}

func TestReadFrameTrimsCarriageReturn(t *testing.T) {
	obj, err := NewReader(strings.NewReader("{\"quarto\":\"402\"}\r\n"), DefaultLimits()).ReadFrame()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if room, _ := obj.String("quarto"); room != "402" {
		t.Fatalf("unexpected room: %q", room)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	big := "{\"bed\":\"" + strings.Repeat("x", 10_000) + "\"}\n"
	_, err := NewReader(strings.NewReader(big), Limits{MaxFrameBytes: 1024}).ReadFrame()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameLargerThanBufferWithinLimit(t *testing.T) {
	value := strings.Repeat("y", 9000)
	obj, err := NewReader(strings.NewReader("{\"bed\":\""+value+"\"}\n"), DefaultLimits()).ReadFrame()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if bed, _ := obj.String("bed"); bed != value {
		t.Fatalf("unexpected bed length: %d", len(bed))
	}
}

func TestObjectAccessorsDistinguishNull(t *testing.T) {
	obj, err := Decode([]byte(`{"rssi":null,"quarto":"1","n":-71.5,"s":3}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !obj.Has("rssi") || obj.Present("rssi") {
		t.Fatalf("expected rssi present but null")
	}
	if _, ok := obj.Number("rssi"); ok {
		t.Fatalf("null rssi must not read as a number")
	}
	if n, ok := obj.Number("n"); !ok || n != -71.5 {
		t.Fatalf("unexpected number: %v %v", n, ok)
	}
	if _, ok := obj.String("s"); ok {
		t.Fatalf("numeric field must not read as a string")
	}
	if _, ok := obj.String("missing"); ok {
		t.Fatalf("missing field must not read as a string")
	}
}

func TestWriteFrameAppendsSingleDelimiter(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, map[string]string{"status": "300"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if got := buf.String(); got != "{\"status\":\"300\"}\n" {
		t.Fatalf("unexpected frame: %q", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestReadFramePropagatesTransportErrors(t *testing.T) {
	_, err := NewReader(failingReader{}, DefaultLimits()).ReadFrame()
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
