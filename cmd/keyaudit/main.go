// keyaudit runs one AWS access key audit from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/locktivity/aws-key-audit/internal/config"
	"github.com/locktivity/aws-key-audit/internal/logger"
	"github.com/locktivity/aws-key-audit/internal/runner"
)

type options struct {
	envFile    string
	dryRun     bool
	verbose    bool
	jsonOutput bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("keyaudit", flag.ContinueOnError)
	fs.StringVar(&opts.envFile, "env-file", "", "Path to a dotenv file to load before reading the environment")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Log mails instead of sending them")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print the audit output as JSON")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// loadConfig reads the configuration, letting flags override the environment.
func loadConfig(opts options) (*config.Config, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}
	getenv := os.Getenv
	if opts.dryRun || opts.verbose {
		getenv = func(name string) string {
			switch {
			case name == config.EnvDryRun && opts.dryRun:
				return "true"
			case name == config.EnvLogLevel && opts.verbose:
				return "debug"
			}
			return os.Getenv(name)
		}
	}
	return config.Load(getenv)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(initCtx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	r, err := runner.FromConfig(initCtx, cfg, awsCfg)
	if err != nil {
		return err
	}

	summary, err := r.Run(ctx)
	if opts.jsonOutput && summary != nil && summary.Output != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(summary.Output); encErr != nil {
			return fmt.Errorf("writing output: %w", encErr)
		}
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "\n[ERROR] %v\n\n", err)
		stop()
		os.Exit(1)
	}
}
