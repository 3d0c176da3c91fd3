// Command autonomic is the entrypoint binary: it wires the Registry,
// Policy Governor, Quota Bucket, Lockchain, and Driver into the cobra
// root command built by internal/cli and runs it. Grounded on
// cmd/nerd/main.go's root-command wiring: run() builds the zap console
// logger and initializes file-based logging before executing the
// command, and deferred calls flush both on exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
	"github.com/seanchatmangpt/autonomic-cli/internal/cli"
	"github.com/seanchatmangpt/autonomic-cli/internal/config"
	"github.com/seanchatmangpt/autonomic-cli/internal/driver"
	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
	"github.com/seanchatmangpt/autonomic-cli/internal/lockchain"
	"github.com/seanchatmangpt/autonomic-cli/internal/logging"
	"github.com/seanchatmangpt/autonomic-cli/internal/policy"
	"github.com/seanchatmangpt/autonomic-cli/internal/quota"
	"github.com/seanchatmangpt/autonomic-cli/internal/registry"
	"github.com/seanchatmangpt/autonomic-cli/internal/session"
	"github.com/seanchatmangpt/autonomic-cli/internal/telemetry"
)

const version = "0.1.0"

// Exit codes per spec.md:164's external-interfaces contract.
const (
	exitSuccess         = 0
	exitValidationError = 2
	exitPolicyDenied    = 3
	exitQuotaExhausted  = 4
	exitCanceled        = 5
	exitInternal        = 70
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "autonomic:", err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitSuccess)
}

// exitCodeFor classifies an error returned by run() against the
// sentinels the driver, quota, and session packages already expose,
// rather than collapsing every failure mode to a single generic code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, grammar.ErrNotFound),
		errors.Is(err, grammar.ErrDuplicateName),
		errors.Is(err, grammar.ErrInvalidIndex),
		errors.Is(err, grammar.ErrEmptyName):
		return exitValidationError
	case errors.Is(err, driver.ErrNotPermitted), errors.Is(err, driver.ErrPolicyBlocked):
		return exitPolicyDenied
	case errors.Is(err, session.ErrCancelled), errors.Is(err, context.Canceled):
		return exitCanceled
	}
	var exhausted *quota.ExhaustedError
	if errors.As(err, &exhausted) {
		return exitQuotaExhausted
	}
	return exitInternal
}

func run() error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	cfg, err := config.Load(filepath.Join(workspace, "autonomic.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.Initialize(workspace, cfg.Logging.DebugMode); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
	}
	defer logging.CloseAll()

	zapCfg := zap.NewProductionConfig()
	if cfg.Logging.DebugMode {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zapLogger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("build zap logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	reg := buildRegistry(cfg)
	governor := policy.NewGovernor(capabilityIDs(reg))
	bucket := quota.New(quota.Limits{
		Runtime:     cfg.Quota.RuntimeMs,
		Memory:      cfg.Quota.MemoryBytes,
		IO:          cfg.Quota.IOOps,
		Network:     cfg.Quota.NetworkBytes,
		Concurrency: cfg.Quota.MaxConcurrent,
	})
	chain := lockchain.New()

	// Every process run gets its own operator identity for receipt
	// attribution; a long-lived deployment would load this from the
	// host's credential store instead of minting a fresh one per run.
	agentID := uuid.NewString()
	drv := driver.New(reg, governor, bucket, chain, cfg, capability.AgentProfile(), agentID)
	if cfg.Telemetry.Enabled {
		drv = drv.WithTelemetry(telemetry.NewMetrics())
		go serveTelemetry(cfg.Telemetry.Addr, zapLogger)
	}
	registerBodies(drv)

	dispatch := func(verbPath []string, residualArgs []string) error {
		argv := append(append([]string{}, verbPath...), residualArgs...)
		outcome, err := drv.Invoke(context.Background(), argv, func(f session.Frame) {
			fmt.Fprintf(os.Stdout, "%s\n", f.Payload)
		})
		for _, w := range outcome.Warnings {
			zapLogger.Warn(w)
		}
		return err
	}

	root := cli.Build(reg, dispatch, cli.Options{Version: version})
	return root.Execute()
}

// buildRegistry registers the small demonstration noun/verb tree and
// freezes it. A production deployment would load this from a plugin
// manifest; the spec leaves verb registration to the host binary.
func buildRegistry(cfg *config.Config) *registry.Registry {
	reg := registry.New(cfg.AppName)
	ro := capability.ReadOnly()
	status := capability.PureContract()

	_ = reg.RegisterNoun(grammar.Noun{
		Name: "runtime",
		Help: "introspect the running autonomic CLI process",
		Verbs: []grammar.Verb{
			{
				Name:               "status",
				Help:               "print quota, policy, and lockchain summary",
				CapabilityContract: &status,
			},
			{
				Name:               "capabilities",
				Help:               "list every registered verb's capability contract",
				Aliases:            []string{"caps"},
				CapabilityContract: &ro,
			},
		},
	})
	reg.BuildParser()
	return reg
}

func capabilityIDs(reg *registry.Registry) []string {
	var ids []string
	for _, rv := range reg.AllVerbs() {
		id := ""
		for i, p := range rv.VerbPath {
			if i > 0 {
				id += "/"
			}
			id += p
		}
		ids = append(ids, id)
	}
	return ids
}

// registerBodies wires an executable behind every verb the demonstration
// registry declares. A real deployment does this once per plugin.
func registerBodies(drv *driver.Driver) {
	drv.RegisterBody([]string{"runtime", "status"}, func(ctx context.Context, sess *session.Session, args []string) driver.Result {
		sess.YieldData(session.Stdout, []byte("autonomic runtime is healthy"))
		return driver.Result{Artifact: "healthy"}
	})
	drv.RegisterBody([]string{"runtime", "capabilities"}, func(ctx context.Context, sess *session.Session, args []string) driver.Result {
		sess.YieldData(session.Stdout, []byte("use --capabilities on the root command for the full table"))
		return driver.Result{Artifact: "see --capabilities"}
	})
}

func serveTelemetry(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("telemetry server stopped", zap.Error(err))
	}
}
