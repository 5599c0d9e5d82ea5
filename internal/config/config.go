package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default UDP address the server listens on.
	DefaultAddr = ":43127"

	// DefaultGridSize is W, the grid side length in cells.
	DefaultGridSize = 20
	// DefaultTickRate is the snapshot broadcast frequency in Hz.
	DefaultTickRate = 20

	// DefaultHeartbeatInterval is how often a client emits HEARTBEAT.
	DefaultHeartbeatInterval = time.Second
	// DefaultHeartbeatTimeout is how long a player may go silent before eviction.
	DefaultHeartbeatTimeout = 3 * time.Second

	// DefaultEventTimeout is the EVENT retransmission interval.
	DefaultEventTimeout = 300 * time.Millisecond
	// DefaultEventMaxRetries caps EVENT retransmission attempts.
	DefaultEventMaxRetries = 6

	// DefaultColorTimeout is the PLAYER_COLOR stop-and-redrive interval.
	DefaultColorTimeout = 500 * time.Millisecond
	// DefaultGameOverTimeout is the GAME_OVER stop-and-redrive interval.
	DefaultGameOverTimeout = 500 * time.Millisecond
	// DefaultRetransmitGranularity is the tick period of the retransmit workers.
	DefaultRetransmitGranularity = 50 * time.Millisecond

	// DefaultClientSnapshotQueueMax bounds the client's pending-snapshot queue.
	DefaultClientSnapshotQueueMax = 3
	// DefaultClientMetricsLogEvery samples client_metrics.csv every Nth snapshot.
	DefaultClientMetricsLogEvery = 10

	// DefaultReplayDumpWindow bounds how frequently replay dump triggers may be requested.
	DefaultReplayDumpWindow = time.Minute
	// DefaultReplayDumpBurst sets how many replay dump requests may be made per window.
	DefaultReplayDumpBurst = 1

	// DefaultLogLevel controls verbosity for server logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "gridclash.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultCSVDir is where the four append-only CSV logs are written.
	DefaultCSVDir = "csv"

	// DefaultDiagnosticsAddr is the bind address for the liveness/readiness/metrics server.
	DefaultDiagnosticsAddr = ":8080"
)

// DefaultPalette is the fixed RGB palette player colors cycle through.
var DefaultPalette = []ColorConfig{
	{R: 255, G: 0, B: 0},   // red
	{R: 0, G: 255, B: 0},   // green
	{R: 0, G: 0, B: 255},   // blue
	{R: 255, G: 255, B: 0}, // yellow
	{R: 255, G: 0, B: 255}, // magenta
	{R: 0, G: 255, B: 255}, // cyan
}

// ColorConfig is an RGB triple loaded from configuration.
type ColorConfig struct {
	R, G, B uint8
}

// Config captures all runtime tunables for the GridClash server.
type Config struct {
	Address                string
	AdminToken             string
	ReplayDumpWindow       time.Duration
	ReplayDumpBurst        int
	Logging                LoggingConfig

	GridSize               int
	TickRate               int
	HeartbeatInterval      time.Duration
	HeartbeatTimeout       time.Duration
	EventTimeout           time.Duration
	EventMaxRetries        int
	ColorTimeout           time.Duration
	GameOverTimeout        time.Duration
	RetransmitGranularity  time.Duration
	ClientSnapshotQueueMax int
	ClientMetricsLogEvery  int
	Palette                []ColorConfig

	CSVDir          string
	DiagnosticsAddr string
	ReplayBundleDir string
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads GridClash's configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:          getString("GRIDCLASH_ADDR", DefaultAddr),
		AdminToken:       strings.TrimSpace(os.Getenv("GRIDCLASH_ADMIN_TOKEN")),
		ReplayDumpWindow: DefaultReplayDumpWindow,
		ReplayDumpBurst:  DefaultReplayDumpBurst,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("GRIDCLASH_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("GRIDCLASH_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
		GridSize:               DefaultGridSize,
		TickRate:               DefaultTickRate,
		HeartbeatInterval:      DefaultHeartbeatInterval,
		HeartbeatTimeout:       DefaultHeartbeatTimeout,
		EventTimeout:           DefaultEventTimeout,
		EventMaxRetries:        DefaultEventMaxRetries,
		ColorTimeout:           DefaultColorTimeout,
		GameOverTimeout:        DefaultGameOverTimeout,
		RetransmitGranularity:  DefaultRetransmitGranularity,
		ClientSnapshotQueueMax: DefaultClientSnapshotQueueMax,
		ClientMetricsLogEvery:  DefaultClientMetricsLogEvery,
		Palette:                DefaultPalette,
		CSVDir:                 getString("GRIDCLASH_CSV_DIR", DefaultCSVDir),
		DiagnosticsAddr:        getString("GRIDCLASH_DIAGNOSTICS_ADDR", DefaultDiagnosticsAddr),
		ReplayBundleDir:        strings.TrimSpace(os.Getenv("GRIDCLASH_REPLAY_DIR")),
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_GRID_SIZE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_GRID_SIZE must be a positive integer, got %q", raw))
		} else {
			cfg.GridSize = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_TICK_RATE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_TICK_RATE must be a positive integer, got %q", raw))
		} else {
			cfg.TickRate = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_HEARTBEAT_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_HEARTBEAT_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.HeartbeatInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_HEARTBEAT_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_HEARTBEAT_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.HeartbeatTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_EVENT_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_EVENT_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.EventTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_EVENT_MAX_RETRIES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_EVENT_MAX_RETRIES must be a positive integer, got %q", raw))
		} else {
			cfg.EventMaxRetries = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_COLOR_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_COLOR_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.ColorTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_GAME_OVER_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_GAME_OVER_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.GameOverTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_RETRANSMIT_GRANULARITY")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_RETRANSMIT_GRANULARITY must be a positive duration, got %q", raw))
		} else {
			cfg.RetransmitGranularity = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_CLIENT_SNAPSHOT_QUEUE_MAX")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_CLIENT_SNAPSHOT_QUEUE_MAX must be a positive integer, got %q", raw))
		} else {
			cfg.ClientSnapshotQueueMax = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_CLIENT_METRICS_LOG_EVERY")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_CLIENT_METRICS_LOG_EVERY must be a positive integer, got %q", raw))
		} else {
			cfg.ClientMetricsLogEvery = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_REPLAY_DUMP_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_REPLAY_DUMP_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.ReplayDumpWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_REPLAY_DUMP_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_REPLAY_DUMP_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.ReplayDumpBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GRIDCLASH_PALETTE")); raw != "" {
		palette, err := parsePalette(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("GRIDCLASH_PALETTE invalid: %v", err))
		} else {
			cfg.Palette = palette
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// parsePalette parses a "R,G,B;R,G,B;..." override into a color list.
func parsePalette(raw string) ([]ColorConfig, error) {
	groups := strings.Split(raw, ";")
	palette := make([]ColorConfig, 0, len(groups))
	for _, group := range groups {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		parts := strings.Split(group, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("color %q must have three comma-separated components", group)
		}
		var rgb [3]uint8
		for i, part := range parts {
			value, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || value < 0 || value > 255 {
				return nil, fmt.Errorf("color component %q must be an integer 0-255", part)
			}
			rgb[i] = uint8(value)
		}
		palette = append(palette, ColorConfig{R: rgb[0], G: rgb[1], B: rgb[2]})
	}
	if len(palette) == 0 {
		return nil, fmt.Errorf("palette override must contain at least one color")
	}
	return palette, nil
}
