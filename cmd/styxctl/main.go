package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/QuarksBlueFoot/styxctl/internal/config"
	"github.com/QuarksBlueFoot/styxctl/internal/harness"
	"github.com/QuarksBlueFoot/styxctl/internal/logging"
	"github.com/QuarksBlueFoot/styxctl/internal/registry"
	"github.com/QuarksBlueFoot/styxctl/internal/resolver"
	"github.com/QuarksBlueFoot/styxctl/internal/rpc"
	"github.com/QuarksBlueFoot/styxctl/internal/submit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "styxctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "styxctl.toml", "harness config file")
	mode := flag.String("mode", "all", "run mode: all, sweep or flows")
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.New("styxctl")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if !rpc.ValidSignerKey(cfg.Signer.PublicKey) {
		log.Warn().Str("public_key", cfg.Signer.PublicKey).Msg("signer key is not a 32-byte base58 address")
	}

	reg, err := registry.Builtin()
	if err != nil {
		return err
	}

	signer := submit.Signer{PublicKey: cfg.Signer.PublicKey, KeyHandle: cfg.Signer.KeyHandle}
	client := rpc.NewClient(cfg.Endpoint, cfg.Retry.AttemptTimeout())
	sub := submit.New(client, submit.Config{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		AttemptTimeout: cfg.Retry.AttemptTimeout(),
		Backoff: submit.BackoffConfig{
			InitialDelay: cfg.Retry.InitialDelay(),
			Multiplier:   cfg.Retry.Multiplier,
			MaxDelay:     cfg.Retry.MaxDelay(),
			Jitter:       cfg.Retry.Jitter,
		},
	}, logging.New("submit"))
	res := resolver.New(reg, sub, signer, logging.New("resolver"))

	orch := harness.NewOrchestrator(reg, res, sub, signer, harness.Options{
		SweepDelay:    cfg.Sweep.Delay(),
		ParallelFlows: cfg.Flows.Parallel,
		Logger:        logging.New("harness"),
	})

	if cfg.StatusAddr != "" {
		go serveStatus(cfg.StatusAddr, orch, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runFlows := cfg.Flows.Enabled && (*mode == "all" || *mode == "flows")
	runSweep := cfg.Sweep.Enabled && (*mode == "all" || *mode == "sweep")
	if !runFlows && !runSweep {
		return errors.New("nothing to run: check -mode against the config")
	}

	if runFlows {
		flows := selectFlows(harness.BuiltinFlows(reg), cfg.Flows.Only)
		log.Info().Int("flows", len(flows)).Msg("running flow mode")
		if err := orch.RunFlows(ctx, flows); err != nil {
			return err
		}
	}
	if runSweep {
		log.Info().Int("operations", len(reg.All())).Msg("running sweep mode")
		if err := orch.RunSweep(ctx); err != nil {
			return err
		}
	}

	report := orch.Finish()
	if err := writeReport(cfg.ReportPath, report); err != nil {
		return err
	}

	log.Info().Str("report", cfg.ReportPath).Msg(report.Summary())
	for _, out := range report.Unexpected() {
		log.Error().Str("op", out.Operation).Str("detail", out.Detail).Msg("unexpected failure")
	}
	if report.UnexpectedFailures > 0 {
		return fmt.Errorf("%d unexpected failures", report.UnexpectedFailures)
	}
	return nil
}

func selectFlows(flows []harness.Flow, only []string) []harness.Flow {
	if len(only) == 0 {
		return flows
	}
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}
	out := make([]harness.Flow, 0, len(flows))
	for _, flow := range flows {
		if wanted[flow.Name] {
			out = append(out, flow)
		}
	}
	return out
}

func writeReport(path string, report harness.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	if err := report.WriteJSON(f); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
