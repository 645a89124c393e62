package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fmueller/voxtype/internal/hotkey"
	"github.com/fmueller/voxtype/internal/inject"
	"github.com/fmueller/voxtype/internal/store"
)

// EnvPrefix prefixes every environment fallback, e.g. VOXTYPE_MODEL.
const EnvPrefix = "VOXTYPE_"

// Config is everything the daemon and its subcommands can be told.
// Precedence is flag, then environment, then Default.
type Config struct {
	Model             string
	ModelDir          string
	Language          string
	ForceCPU          bool
	Threads           int
	AutoDownload      bool
	TranscribeTimeout time.Duration

	RecordingDir    string
	RecordingFormat string
	SaveRecordings  bool

	Hotkeys []string

	SampleRate  int
	Channels    int
	ChunkFrames int
	Backend     string
	Input       string
	InputFormat string

	InjectMode   string
	KeyDelay     time.Duration
	SmartSpacing bool

	SilenceGate          bool
	SilenceThresholdDBFS float64

	MicCheck bool
	Beep     bool

	Verbose    bool
	JSON       bool
	NoProgress bool
	LogFile    string
}

func Default() Config {
	return Config{
		Model:                "small",
		Language:             "auto",
		AutoDownload:         true,
		RecordingFormat:      string(store.FormatWAV),
		SaveRecordings:       true,
		Hotkeys:              []string{hotkey.DefaultBinding},
		SampleRate:           16000,
		Channels:             1,
		Backend:              "auto",
		InjectMode:           string(inject.ModeType),
		SilenceGate:          true,
		SilenceThresholdDBFS: -65,
		MicCheck:             true,
		Beep:                 true,
	}
}

// ApplyEnv overrides fields from VOXTYPE_* variables. Malformed values are
// reported together and leave the field untouched.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	get := func(name string) (string, bool) {
		value, ok := lookup(EnvPrefix + name)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = parsed
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := get(name); ok {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = parsed
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = parsed
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := get(name); ok {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = parsed
		}
	}

	str("MODEL", &c.Model)
	str("MODEL_DIR", &c.ModelDir)
	str("LANGUAGE", &c.Language)
	boolean("FORCE_CPU", &c.ForceCPU)
	integer("THREADS", &c.Threads)
	boolean("AUTO_DOWNLOAD", &c.AutoDownload)
	duration("TRANSCRIBE_TIMEOUT", &c.TranscribeTimeout)

	str("RECORDING_DIR", &c.RecordingDir)
	str("RECORDING_FORMAT", &c.RecordingFormat)
	boolean("SAVE_RECORDINGS", &c.SaveRecordings)

	if v, ok := get("HOTKEY"); ok {
		c.Hotkeys = splitList(v)
	}

	integer("SAMPLE_RATE", &c.SampleRate)
	integer("CHANNELS", &c.Channels)
	integer("CHUNK", &c.ChunkFrames)
	str("BACKEND", &c.Backend)
	str("INPUT", &c.Input)
	str("INPUT_FORMAT", &c.InputFormat)

	str("INJECT_MODE", &c.InjectMode)
	duration("KEY_DELAY", &c.KeyDelay)
	boolean("SMART_SPACING", &c.SmartSpacing)

	boolean("SILENCE_GATE", &c.SilenceGate)
	float("SILENCE_THRESHOLD_DBFS", &c.SilenceThresholdDBFS)

	boolean("MIC_CHECK", &c.MicCheck)
	boolean("BEEP", &c.Beep)

	boolean("VERBOSE", &c.Verbose)
	boolean("JSON", &c.JSON)
	boolean("NO_PROGRESS", &c.NoProgress)
	str("LOG_FILE", &c.LogFile)

	return errors.Join(errs...)
}

// Normalize trims and lowercases the enumerated fields.
func (c *Config) Normalize() {
	c.Model = strings.TrimSpace(c.Model)
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language == "" {
		c.Language = "auto"
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = "auto"
	}
	c.RecordingFormat = strings.ToLower(strings.TrimSpace(c.RecordingFormat))
	c.InjectMode = strings.ToLower(strings.TrimSpace(c.InjectMode))

	var hotkeys []string
	for _, h := range c.Hotkeys {
		hotkeys = append(hotkeys, splitList(h)...)
	}
	c.Hotkeys = hotkeys
}

func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Model) == "" {
		add("model is required")
	}
	if c.Threads < 0 {
		add("threads must not be negative, got %d", c.Threads)
	}
	if c.TranscribeTimeout < 0 {
		add("transcribe timeout must not be negative, got %s", c.TranscribeTimeout)
	}
	if _, err := store.ParseFormat(c.RecordingFormat); err != nil {
		errs = append(errs, err)
	}
	if len(c.Hotkeys) == 0 {
		add("at least one hotkey is required")
	}
	for _, h := range c.Hotkeys {
		if _, err := hotkey.ParseBinding(h); err != nil {
			errs = append(errs, err)
		}
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		add("sample rate must be between 8000 and 192000, got %d", c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > 2 {
		add("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.ChunkFrames < 0 {
		add("chunk must not be negative, got %d", c.ChunkFrames)
	}
	if _, err := inject.ParseMode(c.InjectMode); err != nil {
		errs = append(errs, err)
	}
	if c.KeyDelay < 0 {
		add("key delay must not be negative, got %s", c.KeyDelay)
	}
	if c.SilenceThresholdDBFS >= 0 {
		add("silence threshold must be below 0 dBFS, got %g", c.SilenceThresholdDBFS)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

// Bindings parses the configured hotkeys. Call Validate first.
func (c Config) Bindings() ([]hotkey.Binding, error) {
	bindings := make([]hotkey.Binding, 0, len(c.Hotkeys))
	for _, h := range c.Hotkeys {
		b, err := hotkey.ParseBinding(h)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
