package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/estctiger/estctiger/config"
	"github.com/estctiger/estctiger/internal/search"
	"github.com/estctiger/estctiger/internal/server"
)

// Run executes the root command.
func Run() {
	rootCmd := NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "estctiger",
		Short: "estctiger - ESTC stock analysis assistant",
		Long: `estctiger is a retrieval-augmented chat assistant for Elastic N.V. (ESTC)
stock analysis. It screens queries, grounds answers in indexed financial
data and live market quotes, and screens its own responses before replying.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Debug = true
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cfg)
		},
	}

	rootCmd.AddCommand(newServeCmd(cfg))
	rootCmd.AddCommand(newChatCmd(cfg))
	rootCmd.AddCommand(newReindexCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(cfg))

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return rootCmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat server",
		Long: `Start the HTTP server exposing the chat pipeline, conversation
management, the stock chart endpoint, and a health check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
				cfg.ListenAddr = addr
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().String("listen", "", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}

func newChatCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat about ESTC in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cfg)
		},
	}
}

func newReindexCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the estc-* indices with ELSER sparse vectors",
		Long: `Copy every estc-* index into an estc-*-v2 twin whose documents carry a
content_for_vector field and ELSER sparse vectors, enabling hybrid search.
The elser-v2-pipeline ingest pipeline must already exist on the cluster.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cfg)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("estctiger v1.0.0")
			fmt.Println("ESTC stock analysis assistant")
		},
	}
}

func newConfigCmd(cfg *config.Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cfg)
		},
	})

	return configCmd
}

func runServe(cfg *config.Config) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	srv := server.New(cfg.ListenAddr, a.pipeline, a.store, a.fetcher, a.es, a.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		a.logger.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runReindex(cfg *config.Config) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	fmt.Println(titleStyle.Render("ESTC Reindexing with ELSER"))
	fmt.Println(strings.Repeat("=", 40))

	return search.NewReindexer(a.es, a.logger).Run(ctx)
}

func showConfig(cfg *config.Config) {
	fmt.Println(titleStyle.Render("estctiger configuration"))
	fmt.Printf("  Symbol:            %s\n", cfg.Symbol)
	fmt.Printf("  Company:           %s\n", cfg.CompanyName)
	fmt.Printf("  LLM provider:      %s\n", cfg.LLMProvider)
	fmt.Printf("  Chat model:        %s\n", cfg.ChatModel)
	fmt.Printf("  Elasticsearch:     %s\n", cfg.ElasticsearchURL)
	fmt.Printf("  Finnhub key set:   %t\n", cfg.FinnhubAPIKey != "")
	fmt.Printf("  Fallback corpus:   %s\n", cfg.FallbackCorpusPath)
	fmt.Printf("  Listen address:    %s\n", cfg.ListenAddr)
	fmt.Printf("  Max sessions:      %d\n", cfg.MaxSessions)
	fmt.Printf("  Session timeout:   %dh\n", cfg.SessionTimeoutHours)
}
