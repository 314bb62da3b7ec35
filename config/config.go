// Package config loads process configuration for the pilot server from
// PILOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zysilm-ai/open-claude-pilot/agent"
	"github.com/zysilm-ai/open-claude-pilot/logging"
	"github.com/zysilm-ai/open-claude-pilot/sandbox"
)

const envPrefix = "PILOT_"

const (
	defaultHTTPAddr        = "127.0.0.1:8080"
	defaultShutdownTimeout = 10 * time.Second
	defaultProvider        = ProviderScripted
	defaultWorkspaceDir    = "./workspace"
	defaultTaskMaxAge      = time.Hour
	defaultJanitorInterval = 5 * time.Minute
	defaultBashTimeout     = 30 * time.Second
)

// Provider selects the LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGollm     Provider = "gollm"
	// ProviderScripted answers with a fixed greeting; useful for smoke tests.
	ProviderScripted Provider = "scripted"
)

// Config is the runtime configuration of cmd/pilot.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        logging.LogLevel
	LogFormat       string

	Provider    Provider
	Model       string
	APIKey      string
	BaseURL     string
	Temperature *float64
	MaxTokens   int

	// GollmProvider names the backend gollm talks to (ollama, groq, ...).
	GollmProvider string

	MaxIterations      int
	SystemInstructions string
	EnabledTools       []string

	WorkspaceDir    string
	OutputDir       string
	WorkspaceWrites bool
	BashTimeout     time.Duration

	// DBPath selects the sqlite store; empty keeps sessions in memory.
	DBPath          string
	TaskMaxAge      time.Duration
	JanitorInterval time.Duration
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		HTTPAddr:        defaultHTTPAddr,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        logging.LogLevelInfo,
		LogFormat:       logging.FormatConsole,
		Provider:        defaultProvider,
		GollmProvider:   "ollama",
		MaxIterations:   agent.DefaultMaxIterations,
		WorkspaceDir:    defaultWorkspaceDir,
		OutputDir:       sandbox.OutputDir,
		BashTimeout:     defaultBashTimeout,
		TaskMaxAge:      defaultTaskMaxAge,
		JanitorInterval: defaultJanitorInterval,
	}
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv, which receives full
// variable names such as PILOT_HTTP_ADDR.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()
	env := func(name string) string { return strings.TrimSpace(getenv(envPrefix + name)) }

	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse %sLOG_LEVEL: %w", envPrefix, err)
		}
		cfg.LogLevel = level
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if v := env("LLM_PROVIDER"); v != "" {
		cfg.Provider = Provider(strings.ToLower(v))
	}
	if v := env("LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := env("LLM_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := env("LLM_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := env("GOLLM_PROVIDER"); v != "" {
		cfg.GollmProvider = v
	}
	if v := env("SYSTEM_INSTRUCTIONS"); v != "" {
		cfg.SystemInstructions = v
	}
	if v := env("ENABLED_TOOLS"); v != "" {
		cfg.EnabledTools = splitList(v)
	}
	if v := env("WORKSPACE_DIR"); v != "" {
		cfg.WorkspaceDir = v
	}
	if v := env("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := env("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	var err error
	if cfg.ShutdownTimeout, err = durationVar(env, "SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.BashTimeout, err = durationVar(env, "BASH_TIMEOUT", cfg.BashTimeout); err != nil {
		return Config{}, err
	}
	if cfg.TaskMaxAge, err = durationVar(env, "TASK_MAX_AGE", cfg.TaskMaxAge); err != nil {
		return Config{}, err
	}
	if cfg.JanitorInterval, err = durationVar(env, "JANITOR_INTERVAL", cfg.JanitorInterval); err != nil {
		return Config{}, err
	}
	if cfg.MaxIterations, err = intVar(env, "MAX_ITERATIONS", cfg.MaxIterations); err != nil {
		return Config{}, err
	}
	if cfg.MaxTokens, err = intVar(env, "MAX_TOKENS", cfg.MaxTokens); err != nil {
		return Config{}, err
	}
	if v := env("TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse %sTEMPERATURE: %w", envPrefix, err)
		}
		cfg.Temperature = &t
	}
	if v := env("WORKSPACE_WRITES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse %sWORKSPACE_WRITES: %w", envPrefix, err)
		}
		cfg.WorkspaceWrites = b
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("validate config: HTTP address is empty")
	}

	switch c.LogFormat {
	case logging.FormatJSON, logging.FormatText, logging.FormatConsole, logging.FormatZerolog:
	default:
		return fmt.Errorf("validate config: unsupported %sLOG_FORMAT %q (allowed: %q, %q, %q, %q)",
			envPrefix, c.LogFormat, logging.FormatJSON, logging.FormatText, logging.FormatConsole, logging.FormatZerolog)
	}

	switch c.Provider {
	case ProviderScripted:
	case ProviderOpenAI, ProviderAnthropic:
		if c.APIKey == "" {
			return fmt.Errorf("validate config: provider %s requires %sLLM_API_KEY", c.Provider, envPrefix)
		}
	case ProviderGollm:
		if c.GollmProvider == "" {
			return fmt.Errorf("validate config: provider gollm requires %sGOLLM_PROVIDER", envPrefix)
		}
	default:
		return fmt.Errorf("validate config: unsupported %sLLM_PROVIDER %q (allowed: %q, %q, %q, %q)",
			envPrefix, c.Provider, ProviderOpenAI, ProviderAnthropic, ProviderGollm, ProviderScripted)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("validate config: %sTEMPERATURE must be within [0, 2]", envPrefix)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("validate config: %sMAX_TOKENS must be >= 0", envPrefix)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("validate config: %sMAX_ITERATIONS must be > 0", envPrefix)
	}
	if strings.TrimSpace(c.WorkspaceDir) == "" {
		return errors.New("validate config: workspace directory is empty")
	}
	if !sandbox.ValidateFilePath(c.OutputDir) {
		return fmt.Errorf("validate config: %sOUTPUT_DIR %q is not below %s", envPrefix, c.OutputDir, sandbox.WorkspaceRoot)
	}
	if c.TaskMaxAge <= 0 || c.JanitorInterval <= 0 {
		return errors.New("validate config: task max age and janitor interval must be > 0")
	}

	return nil
}

// AgentConfig returns the agent configuration derived from c.
func (c Config) AgentConfig() agent.Config {
	return agent.Config{
		SystemInstructions: c.SystemInstructions,
		EnabledTools:       c.EnabledTools,
		MaxIterations:      c.MaxIterations,
	}
}

func durationVar(env func(string) string, name string, def time.Duration) (time.Duration, error) {
	v := env(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse %s%s: value must be > 0", envPrefix, name)
	}
	return d, nil
}

func intVar(env func(string) string, name string, def int) (int, error) {
	v := env(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
