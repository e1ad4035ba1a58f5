package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/bedctl/internal/sink"
	"github.com/danmuck/bedctl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bedctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	testlog.Start(t)

	cfg, err := Load(writeConfig(t, "id = \"ward-4\"\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := Default()
	if cfg.ID != "ward-4" {
		t.Fatalf("unexpected id: %q", cfg.ID)
	}
	if cfg.ListenAddr != def.ListenAddr || cfg.HTTPAddr != def.HTTPAddr {
		t.Fatalf("unexpected addrs: %q %q", cfg.ListenAddr, cfg.HTTPAddr)
	}
	if cfg.Server.ReadTimeout != 30*time.Second || cfg.Server.WriteTimeout != 10*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Sink.Kind != sink.KindNone {
		t.Fatalf("unexpected sink kind: %q", cfg.Sink.Kind)
	}
	if len(cfg.Registry.JoinStates) != 2 {
		t.Fatalf("unexpected join states: %v", cfg.Registry.JoinStates)
	}
}

func TestLoadOverrides(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `
id = "ward-4"
listen_addr = "0.0.0.0:5050"
http_addr = "127.0.0.1:8088"
read_timeout = "5s"
write_timeout = "2s"
max_frame_bytes = 4096
rooms = ["401", " 402 ", ""]
room_capacity = 2
join_states = ["IN"]
tags = ["HRP004201693"]
cors_origins = ["http://dashboard.local"]

[sink]
kind = "couchdb"
url = "http://couch:5984"
database = "ward_logs"
username = "admin"
password = "secret"
timeout = "1500ms"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:5050" || cfg.HTTPAddr != "127.0.0.1:8088" {
		t.Fatalf("unexpected addrs: %q %q", cfg.ListenAddr, cfg.HTTPAddr)
	}
	if cfg.Server.ReadTimeout != 5*time.Second || cfg.Server.WriteTimeout != 2*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Server.Limits.MaxFrameBytes != 4096 {
		t.Fatalf("unexpected frame limit: %d", cfg.Server.Limits.MaxFrameBytes)
	}
	if len(cfg.Registry.Rooms) != 2 || cfg.Registry.Rooms[1] != "402" {
		t.Fatalf("unexpected rooms: %q", cfg.Registry.Rooms)
	}
	if cfg.Registry.Capacity != 2 {
		t.Fatalf("unexpected capacity: %d", cfg.Registry.Capacity)
	}
	if len(cfg.Registry.JoinStates) != 1 || cfg.Registry.JoinStates[0] != "IN" {
		t.Fatalf("unexpected join states: %v", cfg.Registry.JoinStates)
	}
	if cfg.Sink.Kind != sink.KindCouchDB || cfg.Sink.Database != "ward_logs" {
		t.Fatalf("unexpected sink: %+v", cfg.Sink)
	}
	if cfg.Sink.Timeout != 1500*time.Millisecond {
		t.Fatalf("unexpected sink timeout: %v", cfg.Sink.Timeout)
	}
	if cfg.Sink.RedisStream != "bedctl:logs" {
		t.Fatalf("unset sink keys must keep defaults: %q", cfg.Sink.RedisStream)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"bad duration":    "read_timeout = \"soon\"\n",
		"bad addr":        "listen_addr = \"nowhere\"\n",
		"zero frame":      "max_frame_bytes = 0\n",
		"unknown sink":    "[sink]\nkind = \"kafka\"\n",
		"redis sans addr": "[sink]\nkind = \"redis\"\n",
		"negative cap":    "room_capacity = -1\n",
		"bad toml":        "id = \n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected load failure", name)
		}
	}

	_, err := Load(writeConfig(t, "[sink]\nkind = \"couchdb\"\n"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestTemplateLoadsBackToDefaults(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "bedctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	def := Default()
	if cfg.ID != def.ID || cfg.ListenAddr != def.ListenAddr {
		t.Fatalf("unexpected identity: %q %q", cfg.ID, cfg.ListenAddr)
	}
	if cfg.Server != def.Server {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Sink != def.Sink {
		t.Fatalf("unexpected sink config: %+v", cfg.Sink)
	}
	if len(cfg.Registry.Rooms) != 0 || len(cfg.Registry.JoinStates) != 2 {
		t.Fatalf("unexpected registry config: %+v", cfg.Registry)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	testlog.Start(t)

	cfg, err := Load(filepath.Join("..", "..", "cmd", "bedctl", "ex.config.toml"))
	if err != nil {
		t.Fatalf("load example config: %v", err)
	}
	if cfg.ID != "ward-4" {
		t.Fatalf("unexpected id: %q", cfg.ID)
	}
	if cfg.Sink.Kind != sink.KindCouchDB || cfg.Sink.RedisMaxLen != 100000 {
		t.Fatalf("unexpected sink: %+v", cfg.Sink)
	}
	if len(cfg.Registry.Rooms) != 0 {
		t.Fatalf("expected lazy rooms: %v", cfg.Registry.Rooms)
	}
}
