// po-agent is a conversational assistant for creating purchase orders
// against the SupplierX procurement API. It runs either as an HTTP
// service (serve) or as an interactive terminal session (chat).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poagent/internal/agent"
	"poagent/internal/catalog"
	"poagent/internal/config"
	"poagent/internal/logging"
	"poagent/internal/nlu"
	"poagent/internal/server"
)

var (
	cfgPath string
	cfg     *config.Config
	zlog    *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "po-agent",
		Short: "Conversational purchase order assistant",
		Long: `po-agent walks a user through creating a purchase order step by
step: PO type, supplier, dates, organization details, and line items,
then submits the order to the SupplierX procurement API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			zlog, err = zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}

			cfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.Level, cfg.Logging.Enabled); err != nil {
				zlog.Warn("file logging disabled", zap.Error(err))
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.CloseAll()
			_ = zlog.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	root.AddCommand(serveCmd(), chatCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildAgent wires the catalog gateway and the analyzer chain. An
// analyzer construction failure is not fatal; the agent falls back to
// pattern extraction alone.
func buildAgent(ctx context.Context) *agent.Agent {
	gateway := catalog.NewClient(catalog.ClientConfig{
		BaseURL:    cfg.SupplierX.BaseURL,
		APIToken:   cfg.SupplierX.APIToken,
		SessionKey: cfg.SupplierX.SessionKey,
		Timeout:    cfg.SupplierXTimeout(),
	})

	analyzer, err := nlu.NewAnalyzerFromConfig(ctx, cfg.NLU)
	if err != nil {
		zlog.Warn("analyzer unavailable, using pattern extraction only", zap.Error(err))
		analyzer = nlu.NewChain(nlu.PatternAnalyzer{})
	}

	return agent.New(gateway, analyzer)
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = cfg.Server.Addr
			}

			a := buildAgent(ctx)
			srv := server.New(a, zlog)
			zlog.Info("starting po-agent", zap.String("version", cfg.Version), zap.String("addr", addr))
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive terminal session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := buildAgent(ctx)
			sess := agent.NewSession("local")

			fmt.Println("PO Agent ready. What type of purchase order would you like to create?")
			fmt.Println("(Try 'list po types'. Ctrl+D to quit.)")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				fmt.Println(a.Advance(ctx, text, sess))
				if sess.Step == agent.StepDone {
					break
				}
			}
			return scanner.Err()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
		},
	}
}
