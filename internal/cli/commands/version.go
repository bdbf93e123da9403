package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cssdedupe/internal/cli/output"
)

// VersionOutput is the JSON form of the version command.
type VersionOutput struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

const versionDescription = "Ancestor-aware CSS dedupe for split bundles"

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display cssdedupe version and build information.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Config is not loaded for version; read --output directly
			mode := output.ModeAuto
			if f := cmd.Flags().Lookup("output"); f != nil {
				mode = output.Mode(f.Value.String())
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(VersionOutput{Name: "cssdedupe", Version: version, Description: versionDescription})
			}
			r.Printf("cssdedupe v%s\n", version)
			r.Println(versionDescription)
			return nil
		},
	}
}
