package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/docbridge/internal/service"
)

// newInfoCmd creates the 'info' subcommand.
func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <pdf>",
		Short: "Prints page count, size and metadata of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, app App) error {
			resp := app.Tools().GetInfo(cmd.Context(), service.InfoRequest{InputRef: args[0]})
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Success {
				return errors.New(resp.Error)
			}
			return nil
		}),
	}
}
