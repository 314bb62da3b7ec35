package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"

	pilot "github.com/zysilm-ai/open-claude-pilot"
	"github.com/zysilm-ai/open-claude-pilot/config"
	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/logging"
	"github.com/zysilm-ai/open-claude-pilot/model"
	"github.com/zysilm-ai/open-claude-pilot/model/anthropic"
	"github.com/zysilm-ai/open-claude-pilot/model/gollm"
	"github.com/zysilm-ai/open-claude-pilot/model/openai"
	"github.com/zysilm-ai/open-claude-pilot/sandbox"
	"github.com/zysilm-ai/open-claude-pilot/server"
	"github.com/zysilm-ai/open-claude-pilot/session"
	"github.com/zysilm-ai/open-claude-pilot/session/sqlite"
	"github.com/zysilm-ai/open-claude-pilot/task"
	"github.com/zysilm-ai/open-claude-pilot/tool"
)

type app struct {
	logger  logging.Logger
	server  *server.Server
	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger, httpLog := newLoggers(cfg, os.Stderr)
	a := &app{logger: logger}

	source, err := newSource(cfg)
	if err != nil {
		return nil, err
	}

	sb, err := sandbox.NewLocal(cfg.WorkspaceDir, func(o *sandbox.LocalOptions) {
		o.ExecTimeout = cfg.BashTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	tools := tool.NewRegistry().MustRegister(tool.DefaultToolset(sb, func(o *tool.ToolsetOptions) {
		o.WorkspaceWrites = cfg.WorkspaceWrites
		o.OutputDir = cfg.OutputDir
	})...)

	store, err := a.newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tasks := task.Default()
	tasks.StartJanitor(ctx, cfg.JanitorInterval, cfg.TaskMaxAge)

	p := pilot.New(source, tools, func(o *pilot.Options) {
		o.Agent = cfg.AgentConfig()
		o.Store = store
		o.Tasks = tasks
		o.Logger = logger
	})

	a.server = server.New(p.Runner(), func(o *server.Options) {
		o.Addr = cfg.HTTPAddr
		o.Logger = httpLog
	})

	logger.Info("pilot configured",
		"provider", cfg.Provider,
		"tools", p.Agent().Tools().Names(),
		"workspace", sb.Root(),
		"persistent", cfg.DBPath != "",
	)

	return a, nil
}

// newLoggers returns the engine logger and the HTTP access logger. With the
// zerolog format both write through the same zerolog logger.
func newLoggers(cfg config.Config, out io.Writer) (logging.Logger, zerolog.Logger) {
	httpLog := logging.NewConsoleZerolog(cfg.LogLevel, cfg.LogFormat == logging.FormatConsole, out)

	if cfg.LogFormat == logging.FormatZerolog {
		return logging.NewZerologAdapter(httpLog.With().Str("component", "pilot").Logger()), httpLog
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Output:    out,
		Component: "pilot",
	}), httpLog
}

func (a *app) newStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	if cfg.DBPath == "" {
		return session.NewInMemoryStore(), nil
	}

	store, err := sqlite.Open(ctx, sqlite.DSN(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *app) close() {
	var errs []error
	for _, fn := range a.closers {
		errs = append(errs, fn())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("close resources", "error", err)
	}
}

func newSource(cfg config.Config) (model.StreamSource, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil

	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil

	case config.ProviderGollm:
		m, err := gollm.NewModel(func(o *gollm.Options) {
			o.Provider = cfg.GollmProvider
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			o.APIKey = cfg.APIKey
		})
		if err != nil {
			return nil, fmt.Errorf("create gollm source: %w", err)
		}
		return m, nil

	case config.ProviderScripted:
		return greeter{}, nil
	}

	return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
}

// greeter answers every request with a fixed reply; it lets the server be
// exercised without an LLM backend.
type greeter struct{}

func (greeter) Stream(ctx context.Context, req model.Request) (<-chan core.StreamItem, <-chan error) {
	return model.NewScriptedSource(model.Text("Hello from the scripted model.")).Stream(ctx, req)
}

func (greeter) Info() model.Info {
	return model.Info{Name: "greeter", Provider: string(config.ProviderScripted)}
}
