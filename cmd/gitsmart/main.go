package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gitsmart/cmd/gitsmart/tui"
	"gitsmart/internal/analyzer"
	"gitsmart/internal/config"
	"gitsmart/internal/events"
	"gitsmart/internal/git"
	"gitsmart/internal/llm"
	"gitsmart/internal/logging"
	"gitsmart/internal/pipeline"
	"gitsmart/internal/server"
	"gitsmart/internal/session"
	"gitsmart/internal/store"
	"gitsmart/internal/taxonomy"
	"gitsmart/internal/tools"
)

// Version is set at build time.
var Version = "dev"

// promptMargin reserves part of the model's context budget for prompts and
// the reply.
const promptMargin = 4096

var (
	verbose    bool
	repoPath   string
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gitsmart",
	Short: "gitSMART - AI-assisted staging and commit messages",
	Long: `gitSMART analyzes your staged changes and synthesizes structured,
conventional commit messages via an external language model.

Run without arguments to start the interactive interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The interactive mode draws its own UI; no console logger there.
		if cmd.CalledAs() == "gitsmart" {
			return nil
		}
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()
		return tui.Run(app.Session, app.Pipeline, app.Broadcaster, app.Store, app.Config)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tool server",
	Long: `Serves the registered tools over HTTP: POST /rpc for invocations,
GET /events for the persistent event stream, GET /status for liveness.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		registry := tools.NewRegistry()
		app.Handlers().RegisterAll(registry)

		watcher := git.NewWatcher(app.Session.Repo())
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("watcher stopped", zap.Error(err))
			}
		}()
		go func() {
			for range watcher.Changed() {
				cs, err := app.Session.Executor().Snapshot(ctx)
				if err != nil {
					continue
				}
				app.Session.RecordChangeSet(cs)
				app.Broadcaster.Publish(events.TypeStaged, cs.Summarize())
			}
		}()

		srv := server.New(app.Config.Server, registry, app.Broadcaster, app.Session)
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a commit message draft from the staged changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		commit, _ := cmd.Flags().GetBool("commit")

		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if commit {
			registry := tools.NewRegistry()
			app.Handlers().RegisterAll(registry)
			resp := registry.Dispatch(ctx, tools.NewRequest("generate_commit_and_commit", map[string]any{}))
			if resp.Err != nil {
				return resp.Err
			}
			return printJSON(cmd, resp.Result)
		}

		cs, err := app.Session.Executor().Snapshot(ctx)
		if err != nil {
			return err
		}
		draft, err := app.Pipeline.Generate(ctx, cs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), draft.Render())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the repository's staged and unstaged changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		registry := tools.NewRegistry()
		app.Handlers().RegisterAll(registry)
		resp := registry.Dispatch(cmd.Context(), tools.NewRequest("repository_status", map[string]any{}))
		if resp.Err != nil {
			return resp.Err
		}
		return printJSON(cmd, resp.Result)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gitsmart %s\n", Version)
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// App bundles the wired components behind the CLI surface.
type App struct {
	Config      *config.Config
	Session     *session.RepositorySession
	Pipeline    *pipeline.Pipeline
	Broadcaster *events.Broadcaster
	Store       *store.Store
}

// Handlers returns tool handlers bound to the app's components.
func (a *App) Handlers() *tools.Handlers {
	return &tools.Handlers{
		Session:     a.Session,
		Pipeline:    a.Pipeline,
		Broadcaster: a.Broadcaster,
		Store:       a.Store,
	}
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
	a.Broadcaster.Close()
	logging.Close()
}

// buildApp loads configuration and wires the repository session, pipeline,
// broadcaster, and store.
func buildApp() (*App, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(repoPath)
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(repo.Root(), cfg.Logging.Debug || verbose, cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	table, err := taxonomy.Load(cfg.Taxonomy.TablePath)
	if err != nil {
		return nil, err
	}

	client, err := llm.New(cfg.API)
	if err != nil {
		return nil, err
	}

	executor := git.NewExecutor(repo, cfg.GetLockTimeout())
	chunker := analyzer.NewChunker(cfg.API.MaxTokens, promptMargin)
	policy := pipeline.PolicyFromConfig(cfg)
	pipe := pipeline.New(client, table, chunker, policy, cfg.API.Temperature)

	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		// The registry is a convenience; the core flows work without it.
		fmt.Fprintf(os.Stderr, "warning: repository registry unavailable: %v\n", err)
		st = nil
	}
	if st != nil {
		if err := st.Touch(repo.Root(), repo.Name()); err != nil {
			logging.StoreDebug("failed to touch repository: %v", err)
		}
	}

	return &App{
		Config:      cfg,
		Session:     session.New(repo, executor),
		Pipeline:    pipe,
		Broadcaster: events.NewBroadcaster(),
		Store:       st,
	}, nil
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", "", "repository path (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.gitsmart/config.yaml)")

	generateCmd.Flags().Bool("commit", false, "commit with the generated message")

	rootCmd.AddCommand(serveCmd, generateCmd, statusCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
