package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"localchat/internal/common/fsutil"
	"localchat/internal/config"
)

// options holds flag values; only flags the user set override the config.
type options struct {
	configPath      string
	addr            string
	logLevel        string
	defaultProvider string
	foundryEndpoint string
	ollamaEndpoint  string
	chatTimeout     int64
}

func buildRootCmd() *cobra.Command { return buildRootCmdWith(&options{}) }

// buildRootCmdWith constructs the command tree; serve is the default action.
func buildRootCmdWith(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "localchat",
		Short:         "Local chat backend over on-device inference services",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, o)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "Config file (.yaml, .json, .toml); defaults to LOCALCHAT_CONFIG")
	pf.StringVar(&o.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults LOCALCHAT_LOG_LEVEL or info)")
	pf.StringVar(&o.defaultProvider, "default-provider", "", "Provider used when a request names none")
	pf.StringVar(&o.foundryEndpoint, "foundry-endpoint", "", "Pin the Foundry Local base URL and skip discovery")
	pf.StringVar(&o.ollamaEndpoint, "ollama-endpoint", "", "Enable the Ollama provider at this base URL")

	serveCmd := &cobra.Command{Use: "serve", Short: "Run the HTTP API (default)", RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, o)
	}}
	for _, c := range []*cobra.Command{root, serveCmd} {
		c.Flags().StringVar(&o.addr, "addr", "", "HTTP listen address, e.g. :8080")
		c.Flags().Int64Var(&o.chatTimeout, "chat-timeout", 0, "Chat stream timeout in seconds (0 disables)")
	}

	statusCmd := &cobra.Command{Use: "status", Short: "Print provider statuses as JSON", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, o)
		if err != nil {
			return err
		}
		mgr, err := buildManager(cfg, newLogger(cfg.LogLevel))
		if err != nil {
			return err
		}
		return printJSON(cmd, mgr.Statuses(cmd.Context()))
	}}

	var provider string
	var local bool
	modelsCmd := &cobra.Command{Use: "models", Short: "List models as JSON", Example: "  localchat models --provider foundry\n  localchat models --local", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, o)
		if err != nil {
			return err
		}
		mgr, err := buildManager(cfg, newLogger(cfg.LogLevel))
		if err != nil {
			return err
		}
		if local {
			return printJSON(cmd, mgr.ListLoaded(cmd.Context()))
		}
		models, err := mgr.ListModels(cmd.Context(), provider)
		if err != nil {
			return err
		}
		return printJSON(cmd, models)
	}}
	modelsCmd.Flags().StringVar(&provider, "provider", "", "Provider to list; empty uses the default")
	modelsCmd.Flags().BoolVar(&local, "local", false, "Only downloaded models, across all providers")

	root.AddCommand(serveCmd, statusCmd, modelsCmd)
	return root
}

// loadConfig layers the config file, LOCALCHAT_* variables and set flags,
// in that order, then applies defaults.
func loadConfig(cmd *cobra.Command, o *options) (config.Config, error) {
	var cfg config.Config
	path := o.configPath
	if path == "" {
		path = envStr("LOCALCHAT_CONFIG", "")
	}
	if path != "" {
		expanded, err := fsutil.ExpandHome(path)
		if err != nil {
			return cfg, fmt.Errorf("config path: %w", err)
		}
		if !fsutil.PathExists(expanded) {
			return cfg, fmt.Errorf("config file not found: %s", expanded)
		}
		c, err := config.Load(expanded)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	applyEnv(&cfg)

	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr = o.addr
	}
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if f.Changed("default-provider") {
		cfg.DefaultProvider = o.defaultProvider
	}
	if f.Changed("chat-timeout") {
		cfg.ChatTimeoutSeconds = o.chatTimeout
	}
	if f.Changed("foundry-endpoint") {
		cfg.Foundry.Endpoint = o.foundryEndpoint
	}
	if f.Changed("ollama-endpoint") {
		cfg.Ollama.Enabled = o.ollamaEndpoint != ""
		cfg.Ollama.Endpoint = o.ollamaEndpoint
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func applyEnv(cfg *config.Config) {
	cfg.Addr = envStr("LOCALCHAT_ADDR", cfg.Addr)
	cfg.LogLevel = envStr("LOCALCHAT_LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultProvider = envStr("LOCALCHAT_DEFAULT_PROVIDER", cfg.DefaultProvider)
	cfg.MaxBodyBytes = int64(envInt("LOCALCHAT_MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.ChatTimeoutSeconds = int64(envInt("LOCALCHAT_CHAT_TIMEOUT_SECONDS", int(cfg.ChatTimeoutSeconds)))
	cfg.Foundry.Endpoint = envStr("LOCALCHAT_FOUNDRY_ENDPOINT", cfg.Foundry.Endpoint)
	cfg.Foundry.CLIPath = envStr("LOCALCHAT_FOUNDRY_CLI", cfg.Foundry.CLIPath)
	cfg.Foundry.DisableCLI = envBool("LOCALCHAT_FOUNDRY_DISABLE_CLI", cfg.Foundry.DisableCLI)
	if v := envStr("LOCALCHAT_OLLAMA_ENDPOINT", ""); v != "" {
		cfg.Ollama.Enabled = true
		cfg.Ollama.Endpoint = v
	}
	if v := envStr("LOCALCHAT_CORS_ORIGINS", ""); v != "" {
		cfg.CORS.Enabled = true
		cfg.CORS.Origins = splitCSV(v)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
