package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salesops/internal/core"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a CSV file without saving entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, data, err := readCSV(args[0])
			if err != nil {
				return err
			}

			ctx, b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			result, err := b.service.ValidateCSV(ctx, name, data)
			if err != nil {
				return err
			}

			if err := a.printValidation(result); err != nil {
				return err
			}
			if !result.IsValid {
				return withCode(exitFailed, fmt.Errorf("%s: %d errors", name, len(result.Errors)))
			}
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Validate a CSV file and save its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, data, err := readCSV(args[0])
			if err != nil {
				return err
			}

			ctx, b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			report, err := b.service.ImportCSV(ctx, name, data)
			if errors.Is(err, core.ErrValidationFailed) && report != nil {
				if perr := a.printValidation(report.Validation); perr != nil {
					return perr
				}
				return withCode(exitFailed, fmt.Errorf("%s: nothing imported", name))
			}
			if err != nil {
				return err
			}

			if err := a.printReport(report); err != nil {
				return err
			}
			if report.Summary != nil && report.Summary.Failed > 0 {
				return withCode(exitFailed, fmt.Errorf("%d entries failed to save", report.Summary.Failed))
			}
			return nil
		},
	}
}

func newTemplateCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the import template for the current sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			data, err := b.service.TemplateCSV(ctx)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = a.stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(a.stderr, "template written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all producers, sources, entries and coaching history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return withCode(exitUsage, errors.New("reset deletes all data; pass --confirm to proceed"))
			}

			ctx, b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			if err := b.reset(ctx); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			a.logger.Warn("database reset")
			fmt.Fprintln(a.stdout, "all data deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm deleting all data")
	return cmd
}

// readCSV loads path, applying the same type gate as the upload endpoint.
func readCSV(path string) (string, []byte, error) {
	name := filepath.Base(path)
	if !core.IsCSVUpload(name, "") {
		return "", nil, withCode(exitUsage, fmt.Errorf("%w: %s", core.ErrNotCSV, name))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, withCode(exitUsage, err)
	}
	return name, data, nil
}

func (a *app) printValidation(result *core.ValidationResult) error {
	if a.jsonOut {
		return writeJSON(a.stdout, result)
	}

	status := "valid"
	if !result.IsValid {
		status = "invalid"
	}
	fmt.Fprintf(a.stdout, "format: %s\nrows: %d\nprocessed: %d\nstatus: %s\n",
		result.Format, result.RowCount, len(result.ProcessedRows), status)
	printList(a.stdout, "errors", result.Errors)
	printList(a.stdout, "warnings", result.Warnings)
	return nil
}

func (a *app) printReport(report *core.ImportReport) error {
	if a.jsonOut {
		return writeJSON(a.stdout, report)
	}

	fmt.Fprintf(a.stdout, "import: %s\nfile: %s\n", report.ImportID, report.FileName)
	if report.Summary != nil {
		fmt.Fprintf(a.stdout, "succeeded: %d\nfailed: %d\n", report.Summary.Succeeded, report.Summary.Failed)
		for _, f := range report.Summary.Failures {
			fmt.Fprintf(a.stdout, "  %s %s: %s\n", f.ProducerEmail, f.EntryDate, f.Error)
		}
	}
	if report.Validation != nil {
		printList(a.stdout, "warnings", report.Validation.Warnings)
	}
	if report.ArchiveKey != "" {
		fmt.Fprintf(a.stdout, "archived: %s\n", report.ArchiveKey)
	}
	return nil
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
