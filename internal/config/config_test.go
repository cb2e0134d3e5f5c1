package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PRESENCE_CONFIG_FILE", "")

	cfg := Load("")

	if cfg.ReadAttempts != 3 {
		t.Errorf("ReadAttempts = %d, want 3", cfg.ReadAttempts)
	}
	if cfg.ReadDelay != 100*time.Millisecond {
		t.Errorf("ReadDelay = %v, want 100ms", cfg.ReadDelay)
	}
	if cfg.TickOffset != time.Second || cfg.TickPeriod != time.Minute {
		t.Errorf("tick = %v+%v, want 1m+1s", cfg.TickPeriod, cfg.TickOffset)
	}
	if cfg.StampSource != StampClock {
		t.Errorf("StampSource = %q, want %q", cfg.StampSource, StampClock)
	}
	if cfg.ListenAddr != "" || cfg.RedisAddr != "" || cfg.JournalFile != "" {
		t.Errorf("optional components should be disabled by default: %+v", cfg)
	}

	labels := cfg.Labels()
	if labels.Role != "玩家" || labels.Unknown != "未知" {
		t.Errorf("Labels() = %+v", labels)
	}
	if !reflect.DeepEqual(labels.Tags, []string{"玩家"}) {
		t.Errorf("Labels().Tags = %v", labels.Tags)
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "presence.yaml")
	content := `
snapshot_file: /srv/status.txt
roster_file: /srv/roster.json
read_delay: 250ms
role_label: player
tag_labels: [player, member]
unknown_label: unknown
listen_addr: ":9090"
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PRESENCE_ROSTER_FILE", "/data/roster.json")
	t.Setenv("PRESENCE_ALLOWED_CIDRS", "10.0.0.0/8, '192.168.1.0/24'")

	cfg := Load(file)

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"file value", cfg.SnapshotFile, "/srv/status.txt"},
		{"env beats file", cfg.RosterFile, "/data/roster.json"},
		{"file duration", cfg.ReadDelay, 250 * time.Millisecond},
		{"default kept", cfg.ReadAttempts, 3},
		{"file labels", cfg.Labels().Tags, []string{"player", "member"}},
		{"listen addr", cfg.ListenAddr, ":9090"},
		{"env slice", cfg.AllowedCIDRS, []string{"10.0.0.0/8", "192.168.1.0/24"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfigFileFromEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "presence.yaml")
	if err := os.WriteFile(file, []byte("stamp_source: snapshot\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PRESENCE_CONFIG_FILE", file)

	if got := Load("").StampSource; got != StampSnapshot {
		t.Errorf("StampSource = %q, want %q", got, StampSnapshot)
	}
}

func TestLoadPanics(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero attempts", map[string]string{"PRESENCE_READ_ATTEMPTS": "0"}},
		{"bad attempts", map[string]string{"PRESENCE_READ_ATTEMPTS": "three"}},
		{"bad delay", map[string]string{"PRESENCE_READ_DELAY": "soon"}},
		{"offset past period", map[string]string{"PRESENCE_TICK_OFFSET": "2m"}},
		{"bad stamp source", map[string]string{"PRESENCE_STAMP_SOURCE": "sundial"}},
		{"same files", map[string]string{
			"PRESENCE_SNAPSHOT_FILE": "same.txt",
			"PRESENCE_ROSTER_FILE":   "same.txt",
		}},
		{"bad bool", map[string]string{"PRESENCE_PRETTY_LOG": "maybe"}},
		{"missing file", map[string]string{"PRESENCE_CONFIG_FILE": "/nonexistent/presence.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PRESENCE_CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Load() should have panicked")
				}
			}()

			Load("")
		})
	}
}

func TestValidateEmptyRole(t *testing.T) {
	cfg := Defaults()
	cfg.RoleLabel = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an empty role label")
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{"seconds", "5s", time.Second, 5 * time.Second},
		{"milliseconds", "500ms", time.Second, 500 * time.Millisecond},
		{"empty uses default", "", 3 * time.Second, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := mustDuration("TEST_DURATION", tt.def); got != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "a", []string{"a"}},
		{"spaces and quotes", ` a , "b",'c' ,, `, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitAndTrim(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitAndTrim(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
