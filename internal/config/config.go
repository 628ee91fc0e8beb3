package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// ErrMissing marks a required setting that was not provided.
var ErrMissing = errors.New("required setting missing")

const (
	DefaultInterval    = 900 * time.Second
	DefaultSoftTimeout = 60 * time.Second
	DefaultHardTimeout = 10 * time.Second
	DefaultRetryDelay  = 30 * time.Second
	DefaultMaxFailures = 5
	DefaultHistorySize = 50
	DefaultProbeBinary = "turnutils_uclient"
	DefaultAddr        = ":8080"
	DefaultBurst       = 10
)

type Config struct {
	Address string // TURN server address, required
	Port    int    // 0 means let the probe pick its default
	Secret  string // static auth secret, optional

	ProbeBinary string        // executable name or path of the probe
	Interval    time.Duration // time between probes
	SoftTimeout time.Duration // graceful terminate after this long
	HardTimeout time.Duration // force kill this long after the graceful request
	RetryDelay  time.Duration // used instead of Interval after a timeout/exec error
	MaxFailures int           // consecutive failures before the snapshot is withdrawn

	Addr         string   // metrics listen address
	MetricsToken []string // bearer tokens accepted on /metrics; empty = open
	RateLimit    int      // scrapes per minute per client; 0 = unlimited
	Burst        int

	WorkDir  string // parent directory for the private work dir; empty = os.TempDir()
	LogDir   string // rotated log dir; empty = stderr only
	LogLevel string

	DatabaseURL     string // empty means in-memory probe history
	HistorySize     int
	SlackWebhookURL string
}

// Load merges a .env file from the working directory (if any) into the
// environment without overriding variables that are already set, then
// calls FromEnv.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the configuration from the process environment. Unlike
// unset optional values, malformed ones are reported as errors.
func FromEnv() (Config, error) {
	cfg := Config{
		Address:         strings.TrimSpace(os.Getenv("TURN_SERVER_ADDRESS")),
		Secret:          os.Getenv("TURN_SERVER_SECRET"),
		ProbeBinary:     envString("PROBE_BINARY", DefaultProbeBinary),
		Addr:            envString("METRICS_ADDR", DefaultAddr),
		WorkDir:         os.Getenv("WORK_DIR"),
		LogDir:          os.Getenv("LOG_DIR"),
		LogLevel:        envString("LOG_LEVEL", "info"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		MetricsToken:    envList("METRICS_TOKENS"),
	}

	var err error
	cfg.Port, err = envInt("TURN_SERVER_PORT", 0, err)
	cfg.Interval, err = envSeconds("PROBE_INTERVAL", DefaultInterval, err)
	cfg.SoftTimeout, err = envSeconds("PROBE_SOFT_TIMEOUT", DefaultSoftTimeout, err)
	cfg.HardTimeout, err = envSeconds("PROBE_HARD_TIMEOUT", DefaultHardTimeout, err)
	cfg.RetryDelay, err = envSeconds("PROBE_RETRY_DELAY", DefaultRetryDelay, err)
	cfg.MaxFailures, err = envInt("MAX_FAILURES", DefaultMaxFailures, err)
	cfg.HistorySize, err = envInt("HISTORY_SIZE", DefaultHistorySize, err)
	cfg.RateLimit, err = envInt("METRICS_RATE_LIMIT", 0, err)
	cfg.Burst, err = envInt("METRICS_BURST", DefaultBurst, err)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var err error
	if c.Address == "" {
		err = multierr.Append(err, fmt.Errorf("TURN_SERVER_ADDRESS: %w", ErrMissing))
	}
	if c.Port < 0 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("TURN_SERVER_PORT: %d out of range", c.Port))
	}
	if c.ProbeBinary == "" {
		err = multierr.Append(err, fmt.Errorf("PROBE_BINARY: %w", ErrMissing))
	}
	for name, d := range map[string]time.Duration{
		"PROBE_INTERVAL":     c.Interval,
		"PROBE_SOFT_TIMEOUT": c.SoftTimeout,
		"PROBE_HARD_TIMEOUT": c.HardTimeout,
		"PROBE_RETRY_DELAY":  c.RetryDelay,
	} {
		if d <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s: must be a positive number of seconds", name))
		}
	}
	if c.MaxFailures < 1 {
		err = multierr.Append(err, fmt.Errorf("MAX_FAILURES: must be at least 1"))
	}
	if c.HistorySize < 1 {
		err = multierr.Append(err, fmt.Errorf("HISTORY_SIZE: must be at least 1"))
	}
	if c.RateLimit < 0 {
		err = multierr.Append(err, fmt.Errorf("METRICS_RATE_LIMIT: must not be negative"))
	}
	if c.Addr == "" {
		err = multierr.Append(err, fmt.Errorf("METRICS_ADDR: %w", ErrMissing))
	}
	return err
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envList splits a comma separated value, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// envInt and envSeconds accumulate parse errors into prev so FromEnv can
// report all of them together.
func envInt(key string, def int, prev error) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, prev
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, multierr.Append(prev, fmt.Errorf("%s: %q is not an integer", key, v))
	}
	return n, prev
}

func envSeconds(key string, def time.Duration, prev error) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, prev
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, multierr.Append(prev, fmt.Errorf("%s: %q is not a positive integer", key, v))
	}
	return time.Duration(n) * time.Second, prev
}
