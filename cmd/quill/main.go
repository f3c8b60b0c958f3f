package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/quill/internal/api"
	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/debuglog"
	"github.com/pders01/quill/internal/desk"
	"github.com/pders01/quill/internal/search"
	"github.com/pders01/quill/internal/speech"
	"github.com/pders01/quill/internal/storage"
	"github.com/pders01/quill/internal/topics"
	"github.com/pders01/quill/internal/tui"
)

// Version is the version of the application, set at build time
var Version = "dev"

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	backendURL string
	debug      bool
	quiet      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "quill",
		Short:        "A terminal desk for AI-generated posts",
		Long:         "quill lists, generates, edits and publishes posts from a post-generation backend.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flags.StringVar(&opts.dbPath, "db", "", "Path to database file (overrides config)")
	flags.StringVar(&opts.backendURL, "backend", "", "Backend base URL (overrides config)")
	flags.BoolVar(&opts.debug, "debug", false, "Write debug logs")
	root.Flags().BoolVar(&opts.quiet, "quiet", false, "Skip startup banner")

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(opts),
		newListCmd(opts),
		newGenerateCmd(opts),
		newPostCmd(opts),
		newEditCmd(opts),
		newHealthCmd(opts),
		newTopicsCmd(opts),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "quill %s\n", Version)
			fmt.Fprintln(out, "Post desk")
			fmt.Fprintln(out, "github.com/pders01/quill")
		},
	}
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cfgCmd.AddCommand(newConfigGenCmd(opts))
	return cfgCmd
}

func newConfigGenCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile := opts.configPath
			if configFile == "" {
				home, _ := os.UserHomeDir()
				configFile = filepath.Join(home, ".config", "quill", "config.toml")
			}

			if err := config.GenerateDefaultConfig(configFile); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", configFile)
			return nil
		},
	}
}

// loadConfig reads the configuration, applies flag overrides and sets up
// logging and the theme.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}
	if opts.backendURL != "" {
		cfg.Backend.URL = opts.backendURL
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}

	if err := debuglog.SetupFromConfig(cfg.Log.Level, cfg.Log.Path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	tui.ApplyTheme(cfg.UI.Colors)
	return cfg, nil
}

// openSuggester picks the bleve index when one is configured and the
// in-memory engine otherwise. The returned func releases it.
func openSuggester(store *storage.Store, cfg *config.Config) (search.Suggester, func()) {
	if cfg.Database.SearchIndex != "" {
		engine, err := search.NewBleveEngine(store, cfg.Database.SearchIndex)
		if err == nil {
			return engine, func() { engine.Close() }
		}
		debuglog.Warnf("search index unavailable, using in-memory engine: %v", err)
	}
	return search.NewEngine(store), func() {}
}

func recorderFor(store *storage.Store, suggester search.Suggester) desk.Recorder {
	if r, ok := suggester.(desk.Recorder); ok {
		return desk.Recorders(store, r)
	}
	return store
}

func runTUI(cmd *cobra.Command, opts *globalOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer debuglog.Close()

	if !opts.quiet {
		tui.ShowBanner(Version)
	}

	client, err := api.NewFromConfig(cfg.Backend)
	if err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return err
	}
	defer store.Close()
	store.SetScope(cfg.Backend.URL)

	suggester, closeSuggester := openSuggester(store, cfg)
	defer closeSuggester()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if len(cfg.Topics.Sources) > 0 {
		manager := topics.NewManager(store, cfg)
		if l, ok := suggester.(search.HeadlineListener); ok {
			manager.AddListener(l)
		}
		go func() {
			if err := manager.Sync(ctx, cfg.Topics.Sources); err != nil {
				debuglog.Warnf("topic sources: %v", err)
			}
		}()
	}

	deps := desk.Deps{
		Backend:  client,
		Speech:   speech.NewProvider(cfg.Speech),
		Recorder: recorderFor(store, suggester),
		Timeout:  cfg.Backend.Timeout,
	}

	app := tui.NewApp(cfg, deps, store, suggester)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}
