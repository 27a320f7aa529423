package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sqlite-browser/internal/console"
	"sqlite-browser/internal/exporter"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export <db> <sql>",
		Short: "Export a query result to CSV, JSON, Excel or PDF",
		Long:  "Streams the result of a query into a file. Without --out the export goes to stdout and status lines to stderr.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !exporter.ValidFormat(format) {
				return fmt.Errorf("%w: %q", exporter.ErrUnknownFormat, format)
			}

			sess, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return wrapOpen(args[0], err)
			}
			defer sess.Close()

			var w io.Writer = cmd.OutOrStdout()
			var file *os.File
			if out != "" && out != "-" {
				file, err = os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer file.Close()
				w = file
			}

			enc, err := exporter.NewEncoder(format, w)
			if err != nil {
				return err
			}
			res, err := sess.Export(cmd.Context(), args[1], enc)
			if closeErr := enc.Close(); err == nil && closeErr != nil {
				err = fmt.Errorf("finish export: %w", closeErr)
			}
			if err != nil {
				if file != nil {
					_ = file.Close()
					_ = os.Remove(out)
				}
				return err
			}
			if file != nil {
				if err := file.Close(); err != nil {
					return fmt.Errorf("close %s: %w", out, err)
				}
			}

			dest := out
			if file == nil {
				dest = "stdout"
			}
			a.logger.Debug("export finished", "rows", res.RowsProcessed, "duration", res.Duration, "format", format)
			console.NewRenderer(cmd.ErrOrStderr(), 0).
				Success(fmt.Sprintf("Exported %d rows to %s in %d ms", res.RowsProcessed, dest, res.Duration.Milliseconds()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", exporter.FormatCSV, "Output format (csv, json, excel, pdf)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file; stdout when empty or -")

	return cmd
}
