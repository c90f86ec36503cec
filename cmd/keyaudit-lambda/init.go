package main

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/locktivity/aws-key-audit/internal/config"
	"github.com/locktivity/aws-key-audit/internal/logger"
	"github.com/locktivity/aws-key-audit/internal/runner"
)

// InitOptions holds optional dependencies for initialization
type InitOptions struct {
	Runner AuditRunner
}

type InitOption func(*InitOptions)

func WithRunner(r AuditRunner) InitOption {
	return func(o *InitOptions) {
		o.Runner = r
	}
}

// loadDefaultOptions loads all default dependencies from environment and AWS
func loadDefaultOptions(ctx context.Context) (*InitOptions, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)

	// Create context with timeout for AWS operations
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(initCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	r, err := runner.FromConfig(initCtx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	return &InitOptions{Runner: r}, nil
}

// initialize sets up all dependencies and returns the scheduled event handler.
// It supports functional options for dependency injection in tests
func initialize(ctx context.Context, opts ...InitOption) (*ScheduledHandler, error) {
	var options *InitOptions

	// If no custom options provided, load default options
	if len(opts) == 0 {
		defaultOpts, err := loadDefaultOptions(ctx)
		if err != nil {
			return nil, err
		}
		options = defaultOpts
	} else {
		options = &InitOptions{}
		for _, opt := range opts {
			opt(options)
		}
	}

	if options.Runner == nil {
		return nil, fmt.Errorf("audit runner is required")
	}

	return NewScheduledHandler(options.Runner), nil
}
