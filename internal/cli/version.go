package cli

import (
	"fmt"

	"github.com/fmueller/voxtype/internal/platform"
	"github.com/fmueller/voxtype/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := platform.CurrentRuntime()
			fmt.Fprintf(cmd.OutOrStdout(), "voxtype v%s %s/%s\n", version.Get().String(), rt.OS, rt.Arch)
			return nil
		},
	}
}
