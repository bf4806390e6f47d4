package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// mockBackend is an in-memory ConfigBackend.
type mockBackend struct {
	strings map[string]string
	ints    map[string]int
	lists   map[string][]string
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		strings: map[string]string{},
		ints:    map[string]int{},
		lists:   map[string][]string{},
	}
}

func (m *mockBackend) GetString(key string) (string, bool, error) {
	v, ok := m.strings[key]
	return v, ok, nil
}

func (m *mockBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m *mockBackend) GetList(key string) ([]string, bool, error) {
	v, ok := m.lists[key]
	return v, ok, nil
}

func (m *mockBackend) SetString(key, val string) error { m.strings[key] = val; return nil }
func (m *mockBackend) SetInt(key string, val int) error { m.ints[key] = val; return nil }
func (m *mockBackend) SetList(key string, val []string) error {
	m.lists[key] = val
	return nil
}

func (m *mockBackend) Delete(key string) error {
	delete(m.strings, key)
	delete(m.ints, key)
	delete(m.lists, key)
	return nil
}

// clearEnv blanks every THOUGHTS_* override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	cfg, err := loadWith(newMockBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"*"}) {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.DataDir != filepath.Join("/xdg/data", "thoughts") {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.BaseURL() != "http://127.0.0.1:3000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL())
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)
	b := newMockBackend()
	b.strings["server.host"] = "0.0.0.0"
	b.ints["server.port"] = 5000
	b.lists["server.cors_origins"] = []string{"http://localhost:1420", "tauri://localhost"}
	b.strings["storage.data_dir"] = "/tmp/thoughts-test"
	b.strings["log.level"] = "debug"
	b.strings["api.openapi_path"] = "/tmp/openapi.yaml"
	b.strings["api.public_url"] = "https://thoughts.example.com/"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 5000 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "tauri://localhost" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.DataDir != "/tmp/thoughts-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.API.OpenAPIPath != "/tmp/openapi.yaml" {
		t.Errorf("API.OpenAPIPath = %q", cfg.API.OpenAPIPath)
	}
	if cfg.BaseURL() != "https://thoughts.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL())
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := newMockBackend()
	b.ints["server.port"] = 5000

	t.Setenv("THOUGHTS_SERVER_PORT", "6000")
	t.Setenv("THOUGHTS_SERVER_CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("THOUGHTS_LOG_LEVEL", "warn")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestInvalidEnvIntKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("THOUGHTS_SERVER_PORT", "not-a-port")

	cfg, err := loadWith(newMockBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want default 3000", cfg.Server.Port)
	}
}

func TestTokenFromEnvOnly(t *testing.T) {
	clearEnv(t)
	b := newMockBackend()
	b.strings["server.token"] = "from-file"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Token != "" {
		t.Errorf("token read from backend: %q", cfg.Server.Token)
	}

	t.Setenv("THOUGHTS_SERVER_TOKEN", "from-env")
	cfg, err = loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Token != "from-env" {
		t.Errorf("Server.Token = %q, want from-env", cfg.Server.Token)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		set  func(b *mockBackend)
		want string
	}{
		{"port too high", func(b *mockBackend) { b.ints["server.port"] = 70000 }, "server.port"},
		{"port zero", func(b *mockBackend) { b.ints["server.port"] = 0 }, "server.port"},
		{"bad log level", func(b *mockBackend) { b.strings["log.level"] = "verbose" }, "log.level"},
		{"empty host", func(b *mockBackend) { b.strings["server.host"] = "" }, "server.host is required"},
		{"bad public url", func(b *mockBackend) { b.strings["api.public_url"] = "not a url" }, "api.public_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			b := newMockBackend()
			tt.set(b)

			_, err := loadWith(b)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "thoughts", "config.json")

	b := newFileBackend(path)
	if err := setKeyWith(b, "server.port", "4100"); err != nil {
		t.Fatalf("set port: %v", err)
	}
	if err := setKeyWith(b, "server.cors_origins", "http://x.test,http://y.test"); err != nil {
		t.Fatalf("set origins: %v", err)
	}
	if err := setKeyWith(b, "log.level", "error"); err != nil {
		t.Fatalf("set level: %v", err)
	}

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"http://x.test", "http://y.test"}) {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestFileBackendCommaSeparatedList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.cors_origins": "http://a.test, http://b.test"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, ok, err := newFileBackend(path).GetList("server.cors_origins")
	if err != nil || !ok {
		t.Fatalf("GetList: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, []string{"http://a.test", "http://b.test"}) {
		t.Errorf("GetList = %v", got)
	}
}

func TestFileBackendRejectsFractionalPort(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.port": 3000.5}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadWith(newFileBackend(path)); err == nil {
		t.Fatal("expected error for fractional port")
	}
}

func TestSetKeyErrors(t *testing.T) {
	b := newMockBackend()

	if err := setKeyWith(b, "server.token", "x"); err == nil || !strings.Contains(err.Error(), "THOUGHTS_SERVER_TOKEN") {
		t.Errorf("setting secret: err = %v", err)
	}
	if err := setKeyWith(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Server.Token = "hunter2"
	cfg.Server.CORSOrigins = []string{"http://a.test", "http://b.test"}

	for _, info := range ShowAll(cfg) {
		if info.Key == "server.token" || info.Value == "hunter2" {
			t.Fatalf("secret exposed: %+v", info)
		}
		if info.Key == "server.cors_origins" && info.Value != "http://a.test,http://b.test" {
			t.Errorf("cors_origins displayed as %q", info.Value)
		}
	}
	if len(ShowAll(cfg)) != len(ValidKeys()) {
		t.Errorf("ShowAll and ValidKeys disagree")
	}
}
