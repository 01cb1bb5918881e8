package main

import (
	"fmt"
	"os"

	"github.com/clarity-ai/backend/internal/auth"
	authhandlers "github.com/clarity-ai/backend/internal/auth/handlers"
	"github.com/clarity-ai/backend/internal/chat"
	"github.com/clarity-ai/backend/internal/config"
	"github.com/clarity-ai/backend/internal/logger"
	"github.com/clarity-ai/backend/internal/notifier"
	"github.com/clarity-ai/backend/internal/provider"
	"github.com/clarity-ai/backend/internal/server"
	"github.com/clarity-ai/backend/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "clarity-server",
	Short: "API server for the Clarity AI assistant",
	Long: `clarity-server is the backend for the Clarity AI assistant.
It authenticates users against the identity provider, runs the optional
two-factor challenge flow, and proxies conversations to the completion API.`,
	Run: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags()
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if !cfg.Supabase.Configured() {
		logger.Warn("Supabase is not configured; auth endpoints will answer 503")
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.GetLogger().WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		provider.Module,
		store.Module,
		notifier.Module,
		auth.Module,
		chat.Module,
		fx.Provide(authhandlers.NewHandler),
		server.Module,
	)
	app.Run()
}
