package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/progress"
	"github.com/JakeFAU/docbridge/internal/service"
)

const barDrainWait = 2 * time.Second

type convertFlags struct {
	output   string
	pages    string
	password string
	noBar    bool
}

// newConvertCmd creates the 'convert' subcommand.
func newConvertCmd() *cobra.Command {
	flags := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert <pdf>",
		Short: "Converts a PDF to DOCX",
		Long: `Converts the given PDF to a Word document on the local worker pool,
drawing a progress bar on stderr and printing the JSON result on stdout.
The command exits non-zero when the conversion fails.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, app App) error {
			return runConvert(cmd.Context(), app, flags, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		}),
	}
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output DOCX path (default: input path with .docx)")
	cmd.Flags().StringVarP(&flags.pages, "pages", "p", "", `zero-based pages, e.g. "0,2,4" or "0-5" (default: all)`)
	cmd.Flags().StringVar(&flags.password, "password", "", "password for a protected PDF")
	cmd.Flags().BoolVar(&flags.noBar, "no-progress", false, "do not draw a progress bar")
	return cmd
}

func runConvert(
	ctx context.Context,
	app App,
	flags *convertFlags,
	input string,
	stdout, stderr io.Writer,
) error {
	app.Start(ctx)

	var (
		notifier progress.Notifier = progress.Discard
		mailbox  *progress.Mailbox
		bar      *barRenderer
	)
	if !flags.noBar {
		bar = newBarRenderer(stderr, filepath.Base(input))
		mailbox = progress.NewMailbox(ctx, bar.Deliver, zap.L().Named("cli_progress"))
		notifier = mailbox
	}

	resp := app.Tools().Convert(ctx, service.ConvertRequest{
		InputRef:     input,
		OutputRef:    flags.output,
		UnitSelector: flags.pages,
		Credential:   flags.password,
	}, notifier)

	if mailbox != nil {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), barDrainWait)
		_ = mailbox.Close(drainCtx)
		cancel()
		bar.Finish(resp.Success)
	}

	if err := printJSON(stdout, resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}
	return nil
}

func printJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
