package cue

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/fmueller/voxtype/internal/domain"
	"github.com/fmueller/voxtype/internal/session"
)

// Console prints one status line per session transition.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	goos string

	recording  lipgloss.Style
	working    lipgloss.Style
	done       lipgloss.Style
	failed     lipgloss.Style
	permission lipgloss.Style
	dim        lipgloss.Style
}

func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:          w,
		goos:       runtime.GOOS,
		recording:  r.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		working:    r.NewStyle().Foreground(lipgloss.Color("#00FFFF")),
		done:       r.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		failed:     r.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		permission: r.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#FFFF00")).Bold(true),
		dim:        r.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

func (c *Console) Observe(s session.Snapshot) {
	line := c.line(s)
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, line)
}

func (c *Console) line(s session.Snapshot) string {
	switch s.State {
	case domain.StateRecording:
		return c.recording.Render("● recording") + c.dim.Render("  press the hotkey again to stop")
	case domain.StateTranscribing:
		return c.working.Render(fmt.Sprintf("… transcribing %.1fs of audio", s.Audio.Seconds()))
	case domain.StateInjecting:
		return c.working.Render(fmt.Sprintf("✎ typing %d characters", len([]rune(s.Transcript))))
	case domain.StateCompleted:
		return c.done.Render("✓ "+s.Transcript) + c.dim.Render(fmt.Sprintf("  (%.1fs)", s.Elapsed().Seconds()))
	case domain.StateFailed:
		if domain.NeedsPermission(s.Err) {
			return c.permission.Render(" permission required ") + " " + PermissionHint(c.goos, s.Err)
		}
		return c.failed.Render(fmt.Sprintf("✗ %s: %v", domain.Kind(s.Err), s.Err))
	default:
		return ""
	}
}

// PermissionHint tells the user which OS setting blocks err.
func PermissionHint(goos string, err error) string {
	injection := errors.Is(err, domain.ErrInjectionDenied)
	switch goos {
	case "darwin":
		if injection {
			return "allow this terminal under System Settings > Privacy & Security > Accessibility"
		}
		return "allow this terminal under System Settings > Privacy & Security > Microphone"
	case "windows":
		if injection {
			return "run voxtype at the same privilege level as the target window"
		}
		return "enable Settings > Privacy & security > Microphone > Let desktop apps access your microphone"
	default:
		if injection {
			return "grant write access to /dev/uinput, e.g. add your user to the input group and log in again"
		}
		return "grant microphone access, e.g. add your user to the audio group or allow it in your sound settings"
	}
}
