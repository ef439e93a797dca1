package commands

import (
	"fmt"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/menta2k/embedviz"
	"github.com/menta2k/embedviz/internal/config"
)

var (
	configPath  string
	backendMode string
	backendURL  string
)

// NewRootCmd creates the top level command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embedviz",
		Short: "Inspect image embeddings and label image regions",
		Long: `embedviz renders the embedding of an image as a false-color grid and
collects labeled rectangles for a few-shot classifier.

The backend is either a remote embedding server or in-process vision models
(ollama, llama.cpp or an OpenAI-compatible API).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// API keys may live in .env
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.GetConfigPath(), "Path to the JSON config file")
	cmd.PersistentFlags().StringVar(&backendMode, "backend", "", "Backend mode: remote or local (overrides config)")
	cmd.PersistentFlags().StringVar(&backendURL, "url", "", "Remote backend URL (overrides config)")

	cmd.AddCommand(
		NewEmbedCmd(),
		NewRenderCmd(),
		NewLabelCmd(),
		NewPredictCmd(),
		NewServeCmd(),
		NewConfigCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the config file and environment, then applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil && backendMode == "" && backendURL == "" {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if backendMode != "" {
		cfg.Backend.Mode = strings.ToLower(backendMode)
	}
	if backendURL != "" {
		cfg.Backend.URL = backendURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newInspector() (*embedviz.Inspector, *config.Config, logs.Log, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logs.NewLog()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	insp, err := embedviz.NewFromConfig(cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating backend: %w", err)
	}
	return insp, cfg, log, nil
}
