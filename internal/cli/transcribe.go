package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var typeIt bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcribeFn := app.transcribeFn
			if transcribeFn == nil {
				transcribeFn = app.transcribeFile
			}

			transcript, err := transcribeFn(cmd.Context(), args[0])
			if errors.Is(err, whisper.ErrNoSpeech) {
				app.log().Warn(whisper.NoSpeechHint())
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), transcript)
			if !typeIt {
				return nil
			}
			if err := app.newInjector(app.injectConfig()).Inject(cmd.Context(), transcript); err != nil {
				return fmt.Errorf("type transcript: %w", err)
			}
			app.log().Info("transcript typed", zap.Int("chars", len([]rune(transcript))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&typeIt, "type", false, "Also type the transcript into the focused window")
	return cmd
}

func (a *appState) transcribeFile(ctx context.Context, audioPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	buf, err := audio.ReadWAVFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", audioPath, err)
	}

	engine, err := a.newEngine(a.log())
	if err != nil {
		return "", err
	}
	model, err := a.prepareModel(ctx, false)
	if err != nil {
		return "", err
	}

	a.log().Debug("transcribing file",
		zap.String("audio", audioPath),
		zap.Duration("duration", buf.Duration()),
		zap.String("model", model.Name),
	)

	stop := startSpinner(a.progressEnabled(), "transcribing")
	defer stop()
	return a.newInvoker(engine, model.Path).Transcribe(ctx, buf)
}
