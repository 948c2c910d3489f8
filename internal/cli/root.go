// Package cli implements the cobra commands for codaio-exporter.
//
// Each subcommand (export, reimport, docs) is defined in its own file.
// This file defines the root command, the global flags, and the error
// handling that maps errors to process exit codes.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smessmer/codaio-exporter/internal/coda"
	"github.com/smessmer/codaio-exporter/internal/config"
	"github.com/smessmer/codaio-exporter/internal/logging"
	"github.com/smessmer/codaio-exporter/internal/model"
)

// Global flag variables bound to persistent flags on the root command.
var (
	// apiToken is the --api-token flag. It participates in config
	// resolution with the highest precedence.
	apiToken string

	// configFile is the --config flag naming an explicit config file.
	configFile string

	// jsonOutput switches command output to JSON for machine consumption.
	jsonOutput bool

	// verbose enables debug logging on stderr.
	verbose bool
)

// Version, Commit and Date are set at build time via ldflags and injected
// from the main package.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codaio-exporter",
		Short: "Export and reimport coda.io documents",
		Long: `codaio-exporter backs up the tables of your coda.io documents into a local
directory tree (JSON, CSV and HTML per table) and can push a previous export
back into a coda.io document.

An API token is required for all commands; create one at
https://coda.io/account and pass it via --api-token, the CODAIO_API_TOKEN
environment variable, or the config file.`,

		// Errors are formatted by Execute; keep cobra quiet.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().StringVar(&apiToken, "api-token", "", "coda.io API bearer token")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: "+config.DefaultConfigFile+" if present)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewExportCommand())
	rootCmd.AddCommand(NewReimportCommand())
	rootCmd.AddCommand(NewDocsCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into exit codes.
// CLIError values carry their own code; everything else exits with 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error in the format selected by --json. Errors go
// to stderr in both modes; stdout is reserved for command results.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			errObj["error"].(map[string]interface{})["detail"] = underlying.Error()
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// setup resolves configuration, builds the logger and creates the API
// client. Shared by all subcommands.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, *coda.Client, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, model.WrapCLIError(model.ExitGeneralError, "invalid configuration", err)
	}
	if err := cfg.RequireToken(); err != nil {
		return nil, nil, nil, model.WrapCLIError(model.ExitAuthError, "missing API token", err)
	}

	logger, err := logging.New(verbose)
	if err != nil {
		return nil, nil, nil, model.WrapCLIError(model.ExitGeneralError, "failed to set up logging", err)
	}

	client, err := coda.NewClient(coda.Options{
		Token:           cfg.APIToken,
		RPS:             cfg.RateLimit.RPS,
		Burst:           cfg.RateLimit.Burst,
		Retries:         cfg.Retries,
		BackoffInterval: cfg.BackoffInterval,
		Logger:          logger,
	})
	if err != nil {
		return nil, nil, nil, model.WrapCLIError(model.ExitGeneralError, "failed to create API client", err)
	}

	return cfg, logger, client, nil
}

// wrapRunError maps an error from a command run to a CLIError with the
// matching exit code. API error classes are detected through the coda
// package sentinels; transport-level failures (connection refused, DNS)
// count as API errors too, since both mean the API kept failing after all
// retries.
func wrapRunError(message string, err error) error {
	switch {
	case errors.Is(err, coda.ErrUnauthorized):
		return model.WrapCLIError(model.ExitAuthError, "API token was rejected", err)
	case errors.Is(err, coda.ErrNotFound):
		return model.WrapCLIError(model.ExitNotFound, message, err)
	default:
		var apiErr *coda.APIError
		var urlErr *url.Error
		if errors.As(err, &apiErr) || errors.As(err, &urlErr) {
			return model.WrapCLIError(model.ExitAPIError, message, err)
		}
		return model.WrapCLIError(model.ExitGeneralError, message, err)
	}
}
