package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/fmueller/voxtype/internal/domain"
	"github.com/fmueller/voxtype/internal/platform"
	"go.uber.org/zap"
)

const EnginePathEnv = "VOXTYPE_WHISPER_PATH"

// BundledEngine runs whisper-cli as a subprocess. The model weights are
// loaded by the process on every call.
type BundledEngine struct {
	Executable string
	Logger     *zap.Logger
}

// NewBundledEngine locates whisper-cli: the env override first, then next
// to the voxtype binary, then on PATH.
func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(EnginePathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%w: %s is not executable: %w", domain.ErrModelUnavailable, EnginePathEnv, err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	voxtypeExe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve voxtype executable path: %w", err)
	}

	whisperExe, err := ResolveBundledEnginePath(voxtypeExe)
	if err == nil {
		return &BundledEngine{Executable: whisperExe, Logger: logger}, nil
	}

	if onPath, lookErr := exec.LookPath(engineBinaryName()); lookErr == nil {
		logger.Debug("using whisper engine from PATH", zap.String("engine", onPath))
		return &BundledEngine{Executable: onPath, Logger: logger}, nil
	}

	return nil, err
}

func ResolveBundledEnginePath(voxtypeExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(voxtypeExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: whisper engine not found near %s or on PATH; install whisper-cli, set %s, or place it at ../libexec/whisper/%s", domain.ErrModelUnavailable, voxtypeExecutable, EnginePathEnv, engineBinaryName())
}

func EnginePathCandidates(voxtypeExecutable string) []string {
	binDir := filepath.Dir(voxtypeExecutable)
	engineName := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, platform.NormalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

func (b *BundledEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return "", errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return "", fmt.Errorf("%w: model path is required", domain.ErrModelUnavailable)
	}
	if _, err := os.Stat(req.ModelPath); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}

	if err := ensureExecutable(b.Executable); err != nil {
		return "", fmt.Errorf("%w: whisper engine missing or not executable: %w", domain.ErrModelUnavailable, err)
	}

	outDir, err := os.MkdirTemp("", "voxtype-whisper-")
	if err != nil {
		return "", fmt.Errorf("create whisper output directory: %w", err)
	}
	defer os.RemoveAll(outDir)
	outBase := filepath.Join(outDir, "transcript")

	args := engineArgs(req, outBase)
	cmd := exec.CommandContext(ctx, b.Executable, args...)
	stderr := &strings.Builder{}
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr

	b.logger().Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return "", fmt.Errorf("%w: whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", domain.ErrModelUnavailable, b.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return "", fmt.Errorf("%w: whisper engine crashed with an illegal CPU instruction; "+
				"your CPU may lack required instruction set extensions; "+
				"set %s to a whisper-cli binary built for your CPU", domain.ErrModelUnavailable, EnginePathEnv)
		}
		if isModelLoadError(errText) {
			return "", fmt.Errorf("%w: whisper could not load %s (%s)", domain.ErrModelUnavailable, req.ModelPath, errText)
		}
		return "", fmt.Errorf("%w: whisper engine: %w (%s)", domain.ErrTranscriptionFailed, err, errText)
	}

	content, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("%w: read whisper output: %w", domain.ErrTranscriptionFailed, err)
	}

	return strings.TrimSpace(string(content)), nil
}

func engineArgs(req TranscriptionRequest, outBase string) []string {
	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-nt", "-otxt", "-of", outBase}

	lang := strings.TrimSpace(req.Language)
	if lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}
	if req.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(req.Threads))
	}
	if req.ForceCPU {
		args = append(args, "-ng")
	}
	return args
}

func (b *BundledEngine) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}

func isModelLoadError(stderr string) bool {
	value := strings.ToLower(stderr)
	return strings.Contains(value, "failed to initialize whisper context") ||
		strings.Contains(value, "failed to load model")
}
