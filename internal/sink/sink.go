// Package sink delivers append-only audit documents to an external store.
//
// The protocol core only needs "submit document, told success or failure";
// paging, export and retention belong to the store.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/bedctl/internal/observability"
)

var (
	ErrUpstream  = errors.New("sink: upstream rejected document")
	ErrNoBackend = errors.New("sink: unknown backend kind")
)

// Document types.
const (
	TypeRSSI = "rssi"
	TypeConn = "conn"
)

// Document is one audit record.
type Document struct {
	Type     string   `json:"tipo"`
	ServerTS string   `json:"server_ts"`
	Room     string   `json:"quarto"`
	Tag      string   `json:"ativo"`
	Status   string   `json:"status,omitempty"`
	RSSI     *float64 `json:"rssi,omitempty"`
	DataOn   string   `json:"dataOn,omitempty"`
}

// Sink accepts documents.
type Sink interface {
	Submit(ctx context.Context, doc Document) error
}

// Discard accepts and drops every document.
type Discard struct{}

func (Discard) Submit(context.Context, Document) error { return nil }

// Instrumented records latency and outcome of every submission.
type Instrumented struct {
	Name string
	Next Sink
}

func Instrument(name string, next Sink) *Instrumented {
	return &Instrumented{Name: name, Next: next}
}

func (s *Instrumented) Submit(ctx context.Context, doc Document) error {
	start := time.Now()
	err := s.Next.Submit(ctx, doc)
	observability.RecordSinkSubmission(s.Name, doc.Type, time.Since(start), err == nil)
	return err
}
