package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if len(cfg.HID.Keyboards) != 2 {
		t.Errorf("HID.Keyboards = %v, want both built-in boards", cfg.HID.Keyboards)
	}
	if cfg.HID.PollInterval != "500ms" {
		t.Errorf("HID.PollInterval = %q, want 500ms", cfg.HID.PollInterval)
	}
	if cfg.Front.RetryBackoff != "5s" {
		t.Errorf("Front.RetryBackoff = %q, want 5s", cfg.Front.RetryBackoff)
	}
	if cfg.PatternsDir != "patterns" {
		t.Errorf("PatternsDir = %q, want patterns", cfg.PatternsDir)
	}
}

func TestLoadOverridesAndSanitize(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": " 9090 "},
		"hid": {"keyboards": [" Lily58 "], "poll_interval": "250ms"},
		"front": {"system_id": " abcde ", "gateway_url": "http://gw.local"},
		"system_members": [
			{"name": " Lena ", "front_id": " aaaaa ", "device_id": 1}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.HID.Keyboards[0] != "lily58" {
		t.Errorf("keyboard name = %q, want lily58", cfg.HID.Keyboards[0])
	}
	if cfg.HID.PollInterval != "250ms" {
		t.Errorf("HID.PollInterval = %q, want 250ms", cfg.HID.PollInterval)
	}
	if cfg.Front.SystemID != "abcde" {
		t.Errorf("Front.SystemID = %q, want abcde", cfg.Front.SystemID)
	}
	if m := cfg.Members[0]; m.Name != "Lena" || m.FrontID != "aaaaa" || m.DeviceID != 1 {
		t.Errorf("member = %+v, want trimmed Lena/aaaaa/1", m)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `{"hid": {"poll_interval": "fast"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted a malformed duration")
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := writeConfig(t, `{"server":`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted truncated json")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("500ms"); got.Milliseconds() != 500 {
		t.Errorf("Duration(500ms) = %v", got)
	}
}
