package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newCatalogCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Export or replace the catalog as CSV",
	}
	cmd.AddCommand(newCatalogExportCmd(open), newCatalogImportCmd(open))
	return cmd
}

func newCatalogExportCmd(open opener) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every variant as one CSV row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			buf := bufio.NewWriter(w)
			rows, err := e.services.Transfer.Export(cmd.Context(), buf)
			if err != nil {
				return err
			}
			if err := buf.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d rows\n", rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "destination file, - for stdout")
	return cmd
}

func newCatalogImportCmd(open opener) *cobra.Command {
	var (
		input string
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the catalog, stock and sales history from a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("import deletes the catalog, carts and sales; rerun with --yes to confirm")
			}
			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := e.services.Transfer.Import(cmd.Context(), bufio.NewReader(f))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "applied %d rows\n", result.Applied)
			for _, line := range result.Errors {
				fmt.Fprintf(out, "  [skip] %s\n", line)
			}
			return result.Err()
		},
	}
	cmd.Flags().StringVarP(&input, "file", "f", "", "CSV file path (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive import")
	return cmd
}
