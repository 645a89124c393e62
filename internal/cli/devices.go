package cli

import (
	"fmt"
	"runtime"

	"github.com/fmueller/voxtype/internal/record"
	"github.com/spf13/cobra"
)

func newDevicesCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List recording devices and backend diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends := app.backends()
			if len(backends) == 0 {
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}

			out := cmd.OutOrStdout()
			for _, backend := range backends {
				fmt.Fprintf(out, "== %s ==\n", backend.Name())
				if !backend.Available() {
					fmt.Fprintln(out, "not available")
					fmt.Fprintln(out)
					continue
				}

				list, err := backend.ListDevices(cmd.Context())
				switch {
				case err != nil:
					fmt.Fprintf(out, "failed to list devices: %v\n", err)
				case list == "":
					fmt.Fprintln(out, "no output")
				default:
					fmt.Fprintln(out, list)
				}
				fmt.Fprintln(out)
			}

			selected, err := record.SelectBackend(backends, app.cfg.Backend)
			if err != nil {
				fmt.Fprintf(out, "no usable backend: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "Recording uses %s. Pick a device with --input and a backend with --backend, e.g. voxtype --backend %s --input <device>\n", selected.Name(), selected.Name())
			return nil
		},
	}
}
