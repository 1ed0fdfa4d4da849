package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"docx2pdf/internal/domain"
	"docx2pdf/internal/packager"
	"docx2pdf/internal/pipeline"
	u "docx2pdf/internal/utils"
)

type convertOptions struct {
	outDir  string
	archive string
	backend string
}

func newConvertCmd(cfgFile *string) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Convert local .docx files",
		Long: `Convert one or more local .docx files. One input is written as a PDF,
several inputs are written as a single ZIP archive. Files that fail are
listed on stderr and make the command exit non-zero.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*cfgFile)
			return runConvert(cmd, cfg, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "output", "o", ".", "directory for the PDF or archive")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "archive name for several inputs (default converter.archive_name)")
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "", "override converter.backend (word, libreoffice, chrome)")
	return cmd
}

func runConvert(cmd *cobra.Command, cfg u.Config, opts convertOptions, paths []string) error {
	if opts.backend != "" {
		cfg.Converter.Backend = opts.backend
	}
	archive := cfg.Converter.ArchiveName
	if opts.archive != "" {
		archive = opts.archive
	}

	conv, err := newConverter(cfg.Converter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploads, failures := readInputs(paths)
	batch := pipeline.Run(ctx, conv, uploads, nil)
	failures = append(failures, batch.Errors...)

	for _, fe := range failures {
		fail(cmd, "%s", fe.Error())
	}

	res, err := packager.Package(len(paths), batch.Outputs, archive)
	if errors.Is(err, packager.ErrNothingConverted) {
		return fmt.Errorf("none of %d file(s) converted", len(paths))
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(opts.outDir, res.Filename)
	if err := os.WriteFile(dst, res.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d converted, %d failed)\n", dst, len(batch.Outputs), len(failures))

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d file(s) failed", len(failures), len(paths))
	}
	return nil
}

func readInputs(paths []string) ([]domain.Upload, []*domain.FileError) {
	uploads := make([]domain.Upload, 0, len(paths))
	var failures []*domain.FileError
	for _, p := range paths {
		name := filepath.Base(p)
		data, err := os.ReadFile(p)
		if err != nil {
			failures = append(failures, &domain.FileError{Name: name, Err: err})
			continue
		}
		uploads = append(uploads, domain.Upload{Name: name, Data: data})
	}
	return uploads, failures
}
