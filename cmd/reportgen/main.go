package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reportgen/internal/assembly"
	"reportgen/internal/config"
	"reportgen/internal/logger"
	"reportgen/internal/pipeline"
	"reportgen/internal/server"
	"reportgen/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rootCmd = &cobra.Command{
		Use:           "reportgen",
		Short:         "Year-aware business report generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	dbPath     string
	configPath string
	sessionID  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "default", "Session id to work on")

	generateCmd.Flags().StringP("out", "o", "", "Write the report to this file")
	generateCmd.Flags().String("metrics", "", "Write the pass report (JSON) to this file")
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")

	ingestCmd.AddCommand(ingestKindCmd("reference", "Ingest the reference document (style and terms)"))
	ingestCmd.AddCommand(ingestKindCmd("source", "Ingest the source document (content)"))

	rootCmd.AddCommand(ingestCmd, tocCmd, yearsCmd, generateCmd, refineCmd, resetCmd, sessionsCmd, serveCmd)
}

// initService loads configuration and opens the service.
func initService(ctx context.Context) (*pipeline.Service, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	log := logger.New(cfg.Log.File, cfg.Log.Production)

	svc, err := pipeline.New(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return svc, log, nil
}

// withSession loads the selected session, runs fn and saves the session
// even when fn fails, so partial progress is kept.
func withSession(ctx context.Context, fn func(svc *pipeline.Service, sess *session.Session) error) error {
	svc, log, err := initService(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer svc.Close()

	rc := svc.Config().Report
	sess, err := session.GetOrCreate(ctx, svc.Sessions, sessionID, rc.CurrentYear, rc.TotalYears)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	runErr := fn(svc, sess)
	if err := svc.Sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return runErr
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a reference or source document (PDF, TXT, MD)",
}

func ingestKindCmd(kind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(svc *pipeline.Service, sess *session.Session) error {
				fmt.Printf("📄 Extracting %s: %s\n", kind, args[0])
				res, err := svc.IngestFile(ctx, sess, kind, args[0])
				if err != nil {
					return err
				}
				for _, w := range res.Warnings {
					fmt.Printf("⚠️  %s\n", w)
				}
				fmt.Printf("✅ %d characters from %d page(s).\n", len([]rune(res.Text)), res.Pages)
				if kind == "reference" {
					fmt.Printf("  -> itemized style: %v\n", sess.Style.Itemized)
					fmt.Printf("  -> protected terms: %s\n", strings.Join(sess.ProtectedTerms, ", "))
				}
				return nil
			})
		},
	}
}

var yearsCmd = &cobra.Command{
	Use:   "years <current> <total>",
	Short: "Set the current project year and the total number of years",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := strconv.Atoi(args[0])
		if err != nil || current < 1 {
			return fmt.Errorf("invalid current year %q", args[0])
		}
		total, err := strconv.Atoi(args[1])
		if err != nil || total < 1 {
			return fmt.Errorf("invalid total years %q", args[1])
		}
		return withSession(cmd.Context(), func(_ *pipeline.Service, sess *session.Session) error {
			sess.CurrentYear = current
			sess.TotalYears = total
			fmt.Printf("📅 Year %d of %d.\n", current, total)
			return nil
		})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one generation pass, resuming where the last pass paused",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		metricsPath, _ := cmd.Flags().GetString("metrics")

		// Ctrl-C stops before the next section; finished sections are kept.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return withSession(ctx, func(svc *pipeline.Service, sess *session.Session) error {
			mode := "full"
			if sess.Progress.State() == assembly.StatePaused {
				mode = "resume"
				fmt.Printf("🔄 Resuming at section %d of %d...\n", sess.Progress.CurrentSectionIndex+1, sess.Progress.TotalSections)
			} else {
				fmt.Printf("🚀 Generating %d section(s)...\n", len(sess.TOC))
			}

			metrics := assembly.NewPassReport(mode, sess.ID)
			start := time.Now()
			res, err := svc.Generate(ctx, sess, metrics)
			if err != nil && res.TotalSections > 0 {
				fmt.Printf("⚠️  Pass stopped after %d section(s): %v\n", res.CompletedCount, err)
			}

			switch {
			case res.IsComplete:
				fmt.Printf("✅ Report complete: %d/%d sections in %v.\n", res.CompletedCount, res.TotalSections, time.Since(start).Round(time.Millisecond))
			case res.Paused:
				fmt.Printf("⏸️  Paused at %d/%d sections (token budget).\n", res.CompletedCount, res.TotalSections)
				fmt.Println("  -> The written report counts against the budget; raise generation.token_budget (or MAX_TOKEN_LIMIT) and run 'generate' again.")
			}
			if len(res.Failed) > 0 {
				fmt.Printf("  -> %d section(s) failed: %s\n", len(res.Failed), strings.Join(res.Failed, ", "))
			}

			if out != "" {
				if werr := writeFile(out, sess.Report); werr != nil {
					return werr
				}
				fmt.Printf("💾 Report written to %s\n", out)
			}
			if metricsPath != "" {
				if werr := metrics.Save(metricsPath); werr != nil {
					return werr
				}
				fmt.Printf("📊 Pass report written to %s\n", metricsPath)
			}
			return err
		})
	},
}

var refineCmd = &cobra.Command{
	Use:   "refine <request>",
	Short: "Apply a free-text modification request to the report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		request := strings.Join(args, " ")
		ctx := cmd.Context()
		return withSession(ctx, func(svc *pipeline.Service, sess *session.Session) error {
			out, err := svc.Refine(ctx, sess, request)
			if err != nil {
				return err
			}
			fmt.Printf("🧭 Intent: %s", out.Classification.Intent)
			if out.Classification.Section != "" {
				fmt.Printf(" (section %s)", out.Classification.Section)
			}
			fmt.Println()
			if out.Applied {
				fmt.Println("✅ Report updated.")
			} else {
				fmt.Printf("ℹ️  Report unchanged: %s\n", out.Reason)
			}
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the generated report and its progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(svc *pipeline.Service, sess *session.Session) error {
			svc.Reset(sess)
			fmt.Println("🧹 Report cleared.")
			return nil
		})
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, log, err := initService(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer svc.Close()

		list, err := svc.Sessions.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No sessions.")
			return nil
		}
		for _, s := range list {
			fmt.Printf("  %s  (updated %s)\n", s.ID, s.UpdatedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, log, err := initService(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer svc.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = svc.Config().Server.Addr
		}
		fmt.Printf("🌐 Listening on %s\n", addr)
		return server.New(svc, log).Run(addr)
	},
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
