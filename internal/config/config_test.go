package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"fedirelay/internal/model"
)

const sampleConfig = `
main:
  instance: fedi.example.org
  token: secret-token
  user: "64271"
  list: "2"
  auto_reconnect: true
  reconnect_delay: 3s
  loglevel: debug
filters:
  no_boosts:
    type: boost
  only_public:
    type: visibility
    options: [public, unlisted]
sinks:
  - name: main_channel
    type: telegram
    token: 12345:AAAA
    chat: -1001234567890
    filters: ["~no_boosts", only_public]
  - name: archive_hook
    type: discord
    webhook: https://discord.example.com/api/webhooks/1/abc
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantMain := Main{
		Instance:          "fedi.example.org",
		Token:             "secret-token",
		User:              "64271",
		List:              "2",
		AutoReconnect:     true,
		ReconnectDelay:    Duration(3 * time.Second),
		ExcludeVisibility: []string{"direct"},
		LogLevel:          "debug",
	}
	if diff := cmp.Diff(wantMain, cfg.Main); diff != "" {
		t.Errorf("main mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff("visibility", cfg.Filters["only_public"].Type); diff != "" {
		t.Errorf("filter type mismatch (-want +got):\n%s", diff)
	}

	if len(cfg.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(cfg.Sinks))
	}
	if diff := cmp.Diff([]string{"~no_boosts", "only_public"}, cfg.Sinks[0].Filters); diff != "" {
		t.Errorf("sink filters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(int64(-1001234567890), cfg.Sinks[0].Chat); diff != "" {
		t.Errorf("chat mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
main:
  instance: fedi.example.org
  token: tok
  user: "1"
sinks:
  - name: hook
    type: discord
    webhook: https://example.com/hook
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(Duration(time.Second), cfg.Main.ReconnectDelay); diff != "" {
		t.Errorf("reconnect delay mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("info", cfg.Main.LogLevel); diff != "" {
		t.Errorf("loglevel mismatch (-want +got):\n%s", diff)
	}
	want := map[model.Visibility]bool{model.VisibilityDirect: true}
	if diff := cmp.Diff(want, cfg.ExcludedVisibilities()); diff != "" {
		t.Errorf("exclusions mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		mangle  func(s string) string
		wantErr string
	}{
		{
			"missing instance",
			func(s string) string { return strings.Replace(s, "instance: fedi.example.org", "", 1) },
			"instance is required",
		},
		{
			"missing token",
			func(s string) string { return strings.Replace(s, "token: secret-token", "", 1) },
			"token is required",
		},
		{
			"missing user",
			func(s string) string { return strings.Replace(s, `user: "64271"`, "", 1) },
			"user is required",
		},
		{
			"unknown sink type",
			func(s string) string { return strings.Replace(s, "type: discord", "type: matrix", 1) },
			"unknown type",
		},
		{
			"duplicate sink name",
			func(s string) string { return strings.Replace(s, "name: archive_hook", "name: main_channel", 1) },
			"duplicate name",
		},
		{
			"telegram without chat",
			func(s string) string { return strings.Replace(s, "chat: -1001234567890", "", 1) },
			"requires token and chat",
		},
		{
			"filter without type",
			func(s string) string { return strings.Replace(s, "type: boost", "mode: include", 1) },
			"type is required",
		},
		{
			"bad reconnect delay",
			func(s string) string { return strings.Replace(s, "reconnect_delay: 3s", "reconnect_delay: soon", 1) },
			"invalid duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mangle(sampleConfig)))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseUnknownExcludedVisibility(t *testing.T) {
	bad := strings.Replace(sampleConfig, "loglevel: debug",
		"exclude_visibility: [direct, everyone]", 1)
	_, err := Parse([]byte(bad))
	if err == nil || !strings.Contains(err.Error(), "unknown visibility") {
		t.Fatalf("expected visibility error, got %v", err)
	}
}
