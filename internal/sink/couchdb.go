package sink

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// CouchDBConfig addresses one CouchDB database.
type CouchDBConfig struct {
	URL      string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

// CouchDB posts documents to a CouchDB database. 201 and 202 are success.
type CouchDB struct {
	client *resty.Client
	db     string
}

func NewCouchDB(cfg CouchDBConfig) (*CouchDB, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	db := strings.Trim(strings.TrimSpace(cfg.Database), "/")
	if base == "" || db == "" {
		return nil, fmt.Errorf("sink: couchdb url and database are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Username != "" {
		client.SetBasicAuth(cfg.Username, cfg.Password)
	}
	return &CouchDB{client: client, db: db}, nil
}

func (c *CouchDB) Submit(ctx context.Context, doc Document) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(doc).
		Post("/" + c.db)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	switch resp.StatusCode() {
	case http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("%w: couchdb status %d: %s", ErrUpstream, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
}
