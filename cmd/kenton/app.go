package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kenton-research/kenton/internal/logger"
	"github.com/kenton-research/kenton/pkg/apitool"
	"github.com/kenton-research/kenton/pkg/assistant"
	"github.com/kenton-research/kenton/pkg/config"
	"github.com/kenton-research/kenton/pkg/observability"
	"github.com/kenton-research/kenton/pkg/runner"
	"github.com/kenton-research/kenton/pkg/security"
	"github.com/kenton-research/kenton/pkg/session"
)

// newRunner builds the model runner. Tests replace it.
var newRunner = func(cfg *config.Config, tools runner.ToolSet) (runner.Runner, error) {
	if err := cfg.RequireModelKey(); err != nil {
		return nil, err
	}
	client := runner.NewOpenAIClient(cfg.Model.APIKey, cfg.Model.BaseURL)
	return runner.NewOpenAIRunner(client, tools,
		runner.WithModel(cfg.Model.Name),
		runner.WithMaxTurns(cfg.Model.MaxTurns),
		runner.WithTemperature(cfg.Model.Temperature),
	), nil
}

// app holds the wired components for one command invocation.
type app struct {
	cfg   *config.Config
	store *session.Store
	tools *apitool.Registry
}

func openApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := observability.InitTracing(ctx, observability.TracingConfigFromEnv()); err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	store, err := session.New(ctx, cfg.Conversation)
	if err != nil {
		return nil, err
	}
	logger.Debug("conversation store ready",
		zap.String("backend", store.Backend()),
		zap.Bool("fell_back", store.FellBack()),
	)
	return &app{cfg: cfg, store: store}, nil
}

// registry builds the tool registry on first use.
func (a *app) registry() (*apitool.Registry, error) {
	if a.tools != nil {
		return a.tools, nil
	}

	descs := apitool.DefaultCatalog()
	if a.cfg.Tools.Catalog != "" {
		loaded, err := apitool.LoadCatalog(a.cfg.Tools.Catalog)
		if err != nil {
			return nil, err
		}
		descs = loaded
	}

	policy := security.DefaultEndpointPolicy()
	policy.AllowedHosts = a.cfg.Tools.AllowedHosts
	reg, err := apitool.BuildRegistry(descs,
		apitool.WithEndpointPolicy(policy),
		apitool.WithRateLimiter(security.NewToolRateLimiter()),
	)
	if err != nil {
		return nil, err
	}
	a.tools = reg
	return reg, nil
}

func (a *app) assistant() (*assistant.Assistant, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	r, err := newRunner(a.cfg, reg)
	if err != nil {
		return nil, err
	}

	opts := []assistant.Option{
		assistant.WithModel(a.cfg.Model.Name),
		assistant.WithHistoryLimit(a.cfg.Assistant.HistoryLimit),
	}
	if a.cfg.Assistant.Instructions != "" {
		opts = append(opts, assistant.WithInstructions(a.cfg.Assistant.Instructions))
	}
	return assistant.New(r, a.store, opts...)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := observability.ShutdownTracing(ctx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil && !errors.Is(err, session.ErrStorageClosed) {
		logger.Warn("conversation store close failed", zap.Error(err))
	}
}

func requireSession(flags *rootFlags) (string, error) {
	if flags.sessionID == "" {
		return "", errors.New("--session is required")
	}
	return flags.sessionID, nil
}
