package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/fmueller/voxtype/internal/config"
	"github.com/fmueller/voxtype/internal/cue"
	"github.com/fmueller/voxtype/internal/hotkey"
	"github.com/fmueller/voxtype/internal/inject"
	"github.com/fmueller/voxtype/internal/logging"
	"github.com/fmueller/voxtype/internal/platform"
	"github.com/fmueller/voxtype/internal/record"
	"github.com/fmueller/voxtype/internal/session"
	"github.com/fmueller/voxtype/internal/store"
	"github.com/fmueller/voxtype/internal/version"
	"github.com/fmueller/voxtype/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// beeper is the audible cue observer; Close releases the output device.
type beeper interface {
	session.Observer
	Close()
}

type appState struct {
	cfg config.Config
	// envErr holds malformed VOXTYPE_* values until a command runs.
	envErr error

	logger *zap.Logger
	in     io.Reader
	errOut io.Writer

	newEngine     func(logger *zap.Logger) (whisper.Engine, error)
	backends      func() []record.Backend
	newInjector   func(cfg inject.Config) session.Injector
	newBeeper     func(logger *zap.Logger) beeper
	hotkeyFactory hotkey.Factory
	debounce      time.Duration
	transcribeFn  func(ctx context.Context, audioPath string) (string, error)
}

func NewRootCmd() *cobra.Command {
	cfg := config.Default()
	envErr := cfg.ApplyEnv(os.LookupEnv)
	return newRootCmd(newAppState(cfg, envErr))
}

func newAppState(cfg config.Config, envErr error) *appState {
	app := &appState{
		cfg:    cfg,
		envErr: envErr,
		in:     os.Stdin,
		errOut: os.Stderr,
		newEngine: func(logger *zap.Logger) (whisper.Engine, error) {
			return whisper.NewBundledEngine(logger)
		},
		backends: func() []record.Backend {
			return record.DefaultBackends(runtime.GOOS)
		},
		newInjector: func(cfg inject.Config) session.Injector {
			return inject.New(cfg)
		},
		newBeeper: func(logger *zap.Logger) beeper {
			return cue.NewBeeper(logger)
		},
		hotkeyFactory: hotkey.NewSystem,
	}
	app.transcribeFn = app.transcribeFile
	return app
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voxtype",
		Short: "Type what you say: press a hotkey, speak, press it again",
		Long: "voxtype runs in the background and listens for a global hotkey.\n" +
			"The first press starts recording, the second stops it. The recording is\n" +
			"transcribed with a local whisper model and typed into the focused window.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Get().String(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if app.envErr != nil {
				return fmt.Errorf("read %s environment: %w", config.EnvPrefix, app.envErr)
			}
			app.cfg.Normalize()
			if err := app.cfg.Validate(); err != nil {
				return err
			}

			logFile, err := platform.ResolveLogFile(app.cfg.LogFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Verbose: app.cfg.Verbose, JSON: app.cfg.JSON, File: logFile})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			app.errOut = cmd.ErrOrStderr()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runDaemon(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindCaptureFlags(cmd, app)
	bindStoreFlags(cmd, app)
	bindInjectFlags(cmd, app)
	bindDaemonFlags(cmd, app)

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newRecordCmd(app))
	cmd.AddCommand(newDevicesCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.cfg.Verbose, "verbose", app.cfg.Verbose, "Enable verbose logs")
	flags.BoolVar(&app.cfg.JSON, "json", app.cfg.JSON, "Enable JSON logging")
	flags.BoolVar(&app.cfg.NoProgress, "no-progress", app.cfg.NoProgress, "Disable progress indicators")
	flags.StringVar(&app.cfg.LogFile, "log-file", app.cfg.LogFile, "Also write logs to this file; \"default\" uses the voxtype data directory")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.cfg.Model, "model", app.cfg.Model, "Model name (tiny|base|small|medium|large|large-v3) or model file path")
	flags.StringVar(&app.cfg.ModelDir, "model-dir", app.cfg.ModelDir, "Directory where models are stored")
	flags.StringVar(&app.cfg.Language, "language", app.cfg.Language, "Language code (auto|en|de|...) for transcription")
	flags.BoolVar(&app.cfg.AutoDownload, "auto-download", app.cfg.AutoDownload, "Automatically download missing models")
	flags.BoolVar(&app.cfg.ForceCPU, "force-cpu", app.cfg.ForceCPU, "Run the model on the CPU even when a GPU is available")
	flags.IntVar(&app.cfg.Threads, "threads", app.cfg.Threads, "Inference threads; 0 lets the engine decide")
	flags.BoolVar(&app.cfg.SilenceGate, "silence-gate", app.cfg.SilenceGate, "Skip transcription of near-silent audio")
	flags.Float64Var(&app.cfg.SilenceThresholdDBFS, "silence-threshold-dbfs", app.cfg.SilenceThresholdDBFS, "Silence gate threshold in dBFS")
}

func bindCaptureFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.cfg.Backend, "backend", app.cfg.Backend, "Recording backend: auto|miniaudio|pw-record|arecord|ffmpeg")
	flags.StringVar(&app.cfg.Input, "input", app.cfg.Input, "Input device (run \"voxtype devices\" to list); e.g. node-ID (pw-record), hw:1,0 (arecord), :1 (ffmpeg)")
	flags.StringVar(&app.cfg.InputFormat, "input-format", app.cfg.InputFormat, "Input format for ffmpeg backend (pulse|alsa)")
	flags.IntVar(&app.cfg.SampleRate, "sample-rate", app.cfg.SampleRate, "Capture sample rate in Hz")
	flags.IntVar(&app.cfg.Channels, "channels", app.cfg.Channels, "Capture channels (1 or 2)")
	flags.IntVar(&app.cfg.ChunkFrames, "chunk", app.cfg.ChunkFrames, "Frames per capture read; 0 picks a default")
}

func bindStoreFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.cfg.RecordingDir, "recording-dir", app.cfg.RecordingDir, "Directory where recordings are saved")
	flags.StringVar(&app.cfg.RecordingFormat, "recording-format", app.cfg.RecordingFormat, "Recording file format: wav|flac")
}

func bindInjectFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.cfg.InjectMode, "inject-mode", app.cfg.InjectMode, "How text reaches the focused window: type|paste")
	flags.DurationVar(&app.cfg.KeyDelay, "key-delay", app.cfg.KeyDelay, "Pause between typed keys")
}

func bindDaemonFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.Flags()
	flags.StringSliceVar(&app.cfg.Hotkeys, "hotkey", app.cfg.Hotkeys, "Global hotkey that toggles recording; repeat for more than one")
	flags.DurationVar(&app.cfg.TranscribeTimeout, "transcribe-timeout", app.cfg.TranscribeTimeout, "Give up on a transcription after this long; 0 waits indefinitely")
	flags.BoolVar(&app.cfg.SaveRecordings, "save-recordings", app.cfg.SaveRecordings, "Keep every recording in the recording directory")
	flags.BoolVar(&app.cfg.SmartSpacing, "smart-spacing", app.cfg.SmartSpacing, "Insert a space between consecutive transcripts")
	flags.BoolVar(&app.cfg.MicCheck, "mic-check", app.cfg.MicCheck, "Probe the microphone at startup")
	flags.BoolVar(&app.cfg.Beep, "beep", app.cfg.Beep, "Play a short tone on state changes")
}

func (a *appState) prepareModel(ctx context.Context, verify bool) (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}
	return whisper.Prepare(ctx, whisper.PrepareOptions{
		Model:        a.cfg.Model,
		ModelDir:     modelDir,
		AutoDownload: a.cfg.AutoDownload,
		Verify:       verify,
		NoProgress:   a.cfg.NoProgress,
		Logger:       a.log(),
	})
}

func (a *appState) newInvoker(engine whisper.Engine, modelPath string) *whisper.Invoker {
	return whisper.NewInvoker(engine, whisper.InvokerConfig{
		ModelPath:            modelPath,
		Language:             a.cfg.Language,
		ForceCPU:             a.cfg.ForceCPU,
		Threads:              a.cfg.Threads,
		SilenceGate:          a.cfg.SilenceGate,
		SilenceThresholdDBFS: a.cfg.SilenceThresholdDBFS,
		Logger:               a.log(),
	})
}

func (a *appState) newCapture() *record.Capture {
	return record.NewCapture(a.backends(), a.cfg.Backend, record.Config{
		SampleRate:  a.cfg.SampleRate,
		Channels:    a.cfg.Channels,
		ChunkFrames: a.cfg.ChunkFrames,
		Input:       a.cfg.Input,
		Format:      a.cfg.InputFormat,
		Logger:      a.log(),
	})
}

func (a *appState) openStore() (*store.Store, error) {
	dir, err := platform.ResolveRecordingDir(a.cfg.RecordingDir)
	if err != nil {
		return nil, err
	}
	return store.New(store.Config{
		Dir:    dir,
		Format: store.Format(a.cfg.RecordingFormat),
		Logger: a.log(),
	})
}

func (a *appState) injectConfig() inject.Config {
	return inject.Config{
		Mode:         inject.Mode(a.cfg.InjectMode),
		KeyDelay:     a.cfg.KeyDelay,
		SmartSpacing: a.cfg.SmartSpacing,
		Logger:       a.log(),
	}
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.cfg.NoProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) errWriter() io.Writer {
	if a.errOut == nil {
		return os.Stderr
	}
	return a.errOut
}
