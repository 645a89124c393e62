package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/record"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type recordOptions struct {
	duration  time.Duration
	immediate bool
}

func newRecordCmd(app *appState) *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record audio into the recording directory",
		Long: "Record from the microphone and save the audio the same way the hotkey\n" +
			"daemon does. Prints the path of the saved file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := app.recordToStore(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Record duration, e.g. 6s; 0 means interactive start/stop")
	cmd.Flags().BoolVar(&opts.immediate, "immediate", false, "Start recording immediately without waiting for Enter")

	return cmd
}

func (a *appState) recordToStore(ctx context.Context, opts recordOptions) (string, error) {
	st, err := a.openStore()
	if err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate recording id: %w", err)
	}

	interactive := opts.duration <= 0
	if interactive && !opts.immediate {
		if err := record.WaitForEnter(a.in, a.errWriter(), "Press Enter to start recording."); err != nil {
			return "", err
		}
	}

	buf, err := a.captureFor(ctx, opts.duration, interactive)
	if err != nil {
		return "", err
	}
	if buf.Empty() {
		return "", errors.New("no audio captured")
	}

	path, err := st.Save(ctx, buf, id.String())
	if err != nil {
		return "", err
	}

	a.log().Info("recording saved", zap.String("path", path), zap.Duration("audio", buf.Duration()))
	return path, nil
}

// captureFor records until the duration elapses or, when interactive, until
// Enter is pressed. A lost device ends the recording early with an error.
func (a *appState) captureFor(ctx context.Context, duration time.Duration, interactive bool) (audio.Buffer, error) {
	capture := a.newCapture()
	failed, err := capture.Start()
	if err != nil {
		return audio.Buffer{}, err
	}

	a.log().Info("recording started")
	var stopProgress stopFunc
	var until <-chan time.Time
	var enter chan error
	if interactive {
		stopProgress = startSpinner(a.progressEnabled(), "recording")
		enter = make(chan error, 1)
		go func() {
			enter <- record.WaitForEnter(a.in, a.errWriter(), "Recording... press Enter to stop.")
		}()
	} else {
		stopProgress = startDurationProgress(a.progressEnabled(), "recording", duration)
		timer := time.NewTimer(duration)
		defer timer.Stop()
		until = timer.C
	}

	var lost error
	select {
	case <-until:
	case err := <-enter:
		if err != nil {
			a.log().Debug("stop prompt ended", zap.Error(err))
		}
	case lost = <-failed:
	case <-ctx.Done():
	}
	stopProgress()

	buf, err := capture.Stop()
	if err = errors.Join(lost, err); err != nil {
		return buf, fmt.Errorf("record audio: %w", err)
	}
	return buf, nil
}
