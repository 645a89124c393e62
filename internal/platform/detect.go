package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "voxtype"

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{
		OS:   runtime.GOOS,
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// Env holds the variables the per-user data directory derives from.
type Env struct {
	Home         string
	XDGDataHome  string
	LocalAppData string
}

func CurrentEnv() (Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("resolve user home: %w", err)
	}
	return Env{
		Home:         home,
		XDGDataHome:  os.Getenv("XDG_DATA_HOME"),
		LocalAppData: os.Getenv("LOCALAPPDATA"),
	}, nil
}

// DataDirFor is the per-user data root: XDG on Linux, Application Support
// on macOS, LocalAppData on Windows.
func DataDirFor(goos string, env Env) (string, error) {
	if env.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if env.XDGDataHome != "" {
			return filepath.Join(env.XDGDataHome, appName), nil
		}
		return filepath.Join(env.Home, ".local", "share", appName), nil
	case "darwin":
		return filepath.Join(env.Home, "Library", "Application Support", appName), nil
	case "windows":
		if env.LocalAppData != "" {
			return filepath.Join(env.LocalAppData, appName), nil
		}
		return filepath.Join(env.Home, "AppData", "Local", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}

func ModelDirFor(goos string, env Env) (string, error) {
	return subdir(goos, env, "models")
}

func RecordingDirFor(goos string, env Env) (string, error) {
	return subdir(goos, env, "recordings")
}

func LogFileFor(goos string, env Env) (string, error) {
	return subdir(goos, env, filepath.Join("logs", appName+".log"))
}

func subdir(goos string, env Env, name string) (string, error) {
	dataDir, err := DataDirFor(goos, env)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}

func ResolveModelDir(override string) (string, error) {
	return resolve(override, ModelDirFor)
}

func ResolveRecordingDir(override string) (string, error) {
	return resolve(override, RecordingDirFor)
}

// DefaultLogFile is the --log-file value that selects LogFileFor.
const DefaultLogFile = "default"

// ResolveLogFile returns value unchanged unless it is DefaultLogFile.
func ResolveLogFile(value string) (string, error) {
	if value != DefaultLogFile {
		return value, nil
	}
	return resolve("", LogFileFor)
}

func resolve(override string, dirFor func(string, Env) (string, error)) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	env, err := CurrentEnv()
	if err != nil {
		return "", err
	}
	return dirFor(runtime.GOOS, env)
}
