// epack-collector-aws-keys audits the age and status of AWS IAM access keys.
//
// This binary is designed to be executed by the epack collector runner.
// It uses the epack Component SDK for protocol compliance.
package main

import (
	"github.com/locktivity/aws-key-audit/internal/collector"
	"github.com/locktivity/epack/componentsdk"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	componentsdk.RunCollector(componentsdk.CollectorSpec{
		Name:        "aws-keys",
		Version:     Version,
		Description: "Audits AWS IAM access key age and status",
	}, run)
}

func run(ctx componentsdk.CollectorContext) error {
	config, err := buildConfig(ctx.Config())
	if err != nil {
		return componentsdk.NewConfigError("invalid configuration: %v", err)
	}
	config.OnStatus = ctx.Status
	config.OnProgress = ctx.Progress

	c, err := collector.New(config)
	if err != nil {
		return componentsdk.NewConfigError("creating collector: %v", err)
	}

	output, err := c.Collect(ctx.Context())
	if err != nil {
		return componentsdk.NewNetworkError("auditing access keys: %v", err)
	}

	// Emit the collected data (SDK handles protocol envelope)
	return ctx.Emit(output)
}
