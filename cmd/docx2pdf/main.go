package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docx2pdf/internal/converter"
	"docx2pdf/internal/handlers"
	u "docx2pdf/internal/utils"
)

// newConverter builds the conversion backend. Tests replace it.
var newConverter = func(cfg u.ConverterConfig) (handlers.Converter, error) {
	shim, err := converter.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return shim, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "docx2pdf",
		Short: "Convert Word documents to PDF",
		Long: `docx2pdf converts .docx files to PDF through the office automation
available on the host. Without a subcommand it serves the upload form
and the HTTP API.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(loadConfig(cfgFile))
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default $CONFIG_PATH or config.yaml)")

	root.AddCommand(newServeCmd(&cfgFile), newConvertCmd(&cfgFile))
	return root
}

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload form and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(loadConfig(*cfgFile))
		},
	}
}

// loadConfig reads the config file and initialises the logger from it.
func loadConfig(path string) u.Config {
	var cfg u.Config
	if path != "" {
		cfg = u.LoadConfigFrom(path)
	} else {
		cfg = u.LoadConfig()
	}
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	return cfg
}

func fail(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
