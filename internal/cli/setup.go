package cli

import (
	"fmt"
	"os"

	"github.com/fmueller/voxtype/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			resolved, err := whisper.ResolveModel(app.cfg.Model, modelDir)
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
			}
			existed := !resolved.NeedsDownload

			// setup always fetches, regardless of --auto-download.
			app.cfg.AutoDownload = true
			model, err := app.prepareModel(cmd.Context(), true)
			if err != nil {
				return err
			}

			if _, err := app.newEngine(app.log()); err != nil {
				app.log().Warn("whisper engine not found; transcription will fail until it is installed", zap.Error(err))
			}

			if existed {
				if info, statErr := os.Stat(model.Path); statErr == nil {
					app.log().Info("model verified", zap.String("model", model.Name), zap.Int64("bytes", info.Size()))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Model %s already present at %s\n", model.Name, model.Path)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Model %s installed at %s\n", model.Name, model.Path)
			return nil
		},
	}
}
