package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/presence/internal/domain"
)

const (
	StampClock    = "clock"    // lastSeen/firstSeen from the local wall clock
	StampSnapshot = "snapshot" // lastSeen/firstSeen from the snapshot check time
)

type Config struct {
	SnapshotFile string        `yaml:"snapshot_file"` // status report written by the producer
	RosterFile   string        `yaml:"roster_file"`   // roster document owned by the tracker
	ReadAttempts int           `yaml:"read_attempts"` // attempts before a snapshot counts as unavailable
	ReadDelay    time.Duration `yaml:"read_delay"`    // wait between read attempts
	TickOffset   time.Duration `yaml:"tick_offset"`   // offset past the aligned boundary
	TickPeriod   time.Duration `yaml:"tick_period"`   // alignment unit of the cycle (default 1m)
	StampLayout  string        `yaml:"stamp_layout"`  // time layout of lastSeen/firstSeen
	StampSource  string        `yaml:"stamp_source"`  // "clock" | "snapshot"

	RoleLabel     string   `yaml:"role_label"`     // role of a newly observed entity
	TagLabels     []string `yaml:"tag_labels"`     // tags of a newly observed entity
	UnknownLabel  string   `yaml:"unknown_label"`  // placeholder for missing timestamps
	EmptySentinel string   `yaml:"empty_sentinel"` // producer literal for an empty online list

	LogLevel  string `yaml:"log_level"`  // "debug" | "info" | "warn" | "error"
	PrettyLog bool   `yaml:"pretty_log"` // true => zap dev (color), false => zap prod (JSON)

	ListenAddr      string        `yaml:"listen_addr"`      // ops HTTP, empty = disabled
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // ex: 5s
	AllowedCIDRS    []string      `yaml:"allowed_cidrs"`    // restrict POST /reload to these networks
	TrustProxy      bool          `yaml:"trust_proxy"`      // true => trust X-Forwarded-For headers

	JournalFile string `yaml:"journal_file"` // SQLite transition journal, empty = disabled

	// Redis mirror, empty address = disabled
	RedisAddr           string        `yaml:"redis_addr"`
	RedisUser           string        `yaml:"redis_user"`
	RedisPassword       string        `yaml:"redis_password"`
	RedisDB             int           `yaml:"redis_db"`
	RedisDT             time.Duration `yaml:"redis_dial_timeout"`
	RedisRT             time.Duration `yaml:"redis_read_timeout"`
	RedisWT             time.Duration `yaml:"redis_write_timeout"`
	RedisMaxWait        time.Duration `yaml:"redis_max_wait"`
	RedisPingTimeout    time.Duration `yaml:"redis_ping_timeout"`
	RedisPoolSize       int           `yaml:"redis_pool_size"`
	RedisConnectTimeout time.Duration `yaml:"redis_connect_timeout"`
	RedisRetryInterval  time.Duration `yaml:"redis_retry_interval"`
}

// Defaults returns the configuration used when neither a file nor the
// environment says otherwise.
func Defaults() *Config {
	labels := domain.DefaultLabels()
	return &Config{
		SnapshotFile: "server_status.txt",
		RosterFile:   "player_data.json",
		ReadAttempts: 3,
		ReadDelay:    100 * time.Millisecond,
		TickOffset:   time.Second,
		TickPeriod:   time.Minute,
		StampLayout:  "2006-01-02 15:04:05",
		StampSource:  StampClock,

		RoleLabel:     labels.Role,
		TagLabels:     labels.Tags,
		UnknownLabel:  labels.Unknown,
		EmptySentinel: domain.DefaultEmptySentinel,

		LogLevel:  "info",
		PrettyLog: true,

		ShutdownTimeout: 5 * time.Second,
		TrustProxy:      false,

		RedisUser:           "default",
		RedisDT:             5 * time.Second,
		RedisRT:             3 * time.Second,
		RedisWT:             3 * time.Second,
		RedisMaxWait:        10 * time.Second,
		RedisPingTimeout:    5 * time.Second,
		RedisPoolSize:       10,
		RedisConnectTimeout: 30 * time.Second,
		RedisRetryInterval:  2 * time.Second,
	}
}

// Load layers defaults, the optional YAML file and PRESENCE_* variables, in
// that order. file may be empty, in which case PRESENCE_CONFIG_FILE is used.
// Any invalid value panics.
func Load(file string) *Config {
	cfg := Defaults()

	if file == "" {
		file = os.Getenv("PRESENCE_CONFIG_FILE")
	}
	if file != "" {
		if err := cfg.overlayFile(file); err != nil {
			panic(fmt.Sprintf("❌ FATAL: %v", err))
		}
	}

	cfg.overlayEnv()

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfgCopy.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.SnapshotFile = getenv("PRESENCE_SNAPSHOT_FILE", c.SnapshotFile)
	c.RosterFile = getenv("PRESENCE_ROSTER_FILE", c.RosterFile)
	c.ReadAttempts = getenvInt("PRESENCE_READ_ATTEMPTS", c.ReadAttempts)
	c.ReadDelay = mustDuration("PRESENCE_READ_DELAY", c.ReadDelay)
	c.TickOffset = mustDuration("PRESENCE_TICK_OFFSET", c.TickOffset)
	c.TickPeriod = mustDuration("PRESENCE_TICK_PERIOD", c.TickPeriod)
	c.StampLayout = getenv("PRESENCE_STAMP_LAYOUT", c.StampLayout)
	c.StampSource = getenv("PRESENCE_STAMP_SOURCE", c.StampSource)

	c.RoleLabel = getenv("PRESENCE_ROLE_LABEL", c.RoleLabel)
	if v := os.Getenv("PRESENCE_TAG_LABELS"); v != "" {
		c.TagLabels = splitAndTrim(v)
	}
	c.UnknownLabel = getenv("PRESENCE_UNKNOWN_LABEL", c.UnknownLabel)
	c.EmptySentinel = getenv("PRESENCE_EMPTY_SENTINEL", c.EmptySentinel)

	c.LogLevel = getenv("PRESENCE_LOG_LEVEL", c.LogLevel)
	c.PrettyLog = mustBool("PRESENCE_PRETTY_LOG", c.PrettyLog)

	c.ListenAddr = getenv("PRESENCE_LISTEN_ADDR", c.ListenAddr)
	c.ShutdownTimeout = mustDuration("PRESENCE_SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	if v := os.Getenv("PRESENCE_ALLOWED_CIDRS"); v != "" {
		c.AllowedCIDRS = splitAndTrim(v)
	}
	c.TrustProxy = mustBool("PRESENCE_TRUST_PROXY", c.TrustProxy)

	c.JournalFile = getenv("PRESENCE_JOURNAL_FILE", c.JournalFile)

	c.RedisAddr = getenv("PRESENCE_REDIS_ADDR", c.RedisAddr)
	c.RedisUser = getenv("PRESENCE_REDIS_USERNAME", c.RedisUser)
	c.RedisPassword = getenv("PRESENCE_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getenvInt("PRESENCE_REDIS_DB", c.RedisDB)
	c.RedisDT = mustDuration("PRESENCE_REDIS_DIAL_TIMEOUT", c.RedisDT)
	c.RedisRT = mustDuration("PRESENCE_REDIS_READ_TIMEOUT", c.RedisRT)
	c.RedisWT = mustDuration("PRESENCE_REDIS_WRITE_TIMEOUT", c.RedisWT)
	c.RedisMaxWait = mustDuration("PRESENCE_REDIS_MAX_WAIT", c.RedisMaxWait)
	c.RedisPingTimeout = mustDuration("PRESENCE_REDIS_PING_TIMEOUT", c.RedisPingTimeout)
	c.RedisPoolSize = getenvInt("PRESENCE_REDIS_POOL_SIZE", c.RedisPoolSize)
	c.RedisConnectTimeout = mustDuration("PRESENCE_REDIS_CONNECT_TIMEOUT", c.RedisConnectTimeout)
	c.RedisRetryInterval = mustDuration("PRESENCE_REDIS_RETRY_INTERVAL", c.RedisRetryInterval)
}

// Validate reports the first setting the tracker cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.SnapshotFile == "":
		return fmt.Errorf("snapshot file is not set")
	case c.RosterFile == "":
		return fmt.Errorf("roster file is not set")
	case c.SnapshotFile == c.RosterFile:
		return fmt.Errorf("snapshot and roster must be different files, got %s", c.RosterFile)
	case c.ReadAttempts < 1:
		return fmt.Errorf("read attempts must be >= 1, got %d", c.ReadAttempts)
	case c.ReadDelay < 0:
		return fmt.Errorf("read delay must be >= 0, got %v", c.ReadDelay)
	case c.TickPeriod <= 0:
		return fmt.Errorf("tick period must be > 0, got %v", c.TickPeriod)
	case c.TickOffset < 0 || c.TickOffset >= c.TickPeriod:
		return fmt.Errorf("tick offset must be in [0, %v), got %v", c.TickPeriod, c.TickOffset)
	case c.StampLayout == "":
		return fmt.Errorf("stamp layout is not set")
	case c.StampSource != StampClock && c.StampSource != StampSnapshot:
		return fmt.Errorf("stamp source must be %q or %q, got %q", StampClock, StampSnapshot, c.StampSource)
	case c.RoleLabel == "":
		return fmt.Errorf("role label is not set")
	case c.UnknownLabel == "":
		return fmt.Errorf("unknown label is not set")
	case c.EmptySentinel == "":
		return fmt.Errorf("empty sentinel is not set")
	}
	return nil
}

// Labels bundles the locale strings handed to the reconciler.
func (c *Config) Labels() domain.Labels {
	return domain.Labels{
		Role:    c.RoleLabel,
		Tags:    append([]string(nil), c.TagLabels...),
		Unknown: c.UnknownLabel,
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
		}
		return i
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: Invalid boolean value for %s: %s", key, v))
		}
		return b
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: Invalid duration value for %s: %s", key, v))
		}
		return d
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
