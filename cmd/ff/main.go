package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"feedbackfast/internal/app"
	"feedbackfast/internal/config"
	"feedbackfast/internal/repo"
	"feedbackfast/internal/seed"
	"feedbackfast/internal/server"
	"feedbackfast/internal/session"
	"feedbackfast/internal/views"
)

var rootCmd = &cobra.Command{
	Use:   "ff",
	Short: "FeedbackFast CLI",
	Long: `FeedbackFast connects product creators with testers.
Creators launch test campaigns; testers accept invitations, try the product in a
simulated site, and leave rated feedback. Each campaign can be briefed, matched
to testers, and summarized by a generative model when an API key is configured.

The whole session lives in memory. 'ff serve' exposes it over HTTP, 'ff replay'
applies a scripted list of intents and prints where the session ends up.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FEEDBACKFAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	// The key is also honoured under its bare name.
	_ = viper.BindEnv("api-key", "FEEDBACKFAST_API_KEY", "API_KEY")
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default ./"+config.FileName+")")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("debug", false, "shorthand for --log-level=debug")
	rootCmd.PersistentFlags().String("api-key", "", "generative model API key")
	rootCmd.PersistentFlags().String("model", "", "generative model name")
	rootCmd.PersistentFlags().String("seed", "", "seed data file (YAML)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("api-key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("seed", rootCmd.PersistentFlags().Lookup("seed"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(aiCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withSession(ctx, func(ctx context.Context, sess *app.Session) error {
				if cmd.Flags().Changed("addr") {
					sess.Config.Server.Addr = addr
				}
				if cmd.Flags().Changed("base-path") {
					sess.Config.Server.BasePath = basePath
				}
				handler, err := server.New(server.Config{Session: sess, BasePath: sess.Config.Server.BasePath})
				if err != nil {
					return err
				}
				hooks := server.NewWebhookDispatcher(sess.Repo, sess.Config.Webhooks, sess.Logger.Named("webhooks"))
				go hooks.Run(ctx)

				srv := &http.Server{Addr: sess.Config.Server.Addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				sess.Logger.Info("serving FeedbackFast API",
					zap.String("addr", srv.Addr),
					zap.String("base_path", sess.Config.Server.BasePath),
					zap.Bool("ai", sess.Gateway.Available()),
					zap.Int("webhooks", len(sess.Config.Webhooks)))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

func replayCmd() *cobra.Command {
	var file string
	var events int
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a scripted list of intents to a fresh session",
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := app.ScriptFromFile(file)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				res, replayErr := sess.Replay(ctx, script)
				journal, err := sess.Repo.LatestEvents(ctx, repo.EventFilters{Limit: events})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					out := map[string]any{"result": res, "journal": journal}
					if replayErr != nil {
						out["error"] = replayErr.Error()
					}
					if err := printJSON(out); err != nil {
						return err
					}
					return replayErr
				}
				fmt.Printf("applied %d of %d intents, %d events\n", res.Applied, len(script.Intents), res.Events)
				printState(res.State)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Entity", "Actor"})
				for i := len(journal) - 1; i >= 0; i-- {
					evt := journal[i]
					tw.AppendRow(table.Row{evt.ID, evt.Type, strings.TrimSuffix(evt.EntityKind+":"+evt.EntityID, ":"), evt.ActorID})
				}
				tw.Render()
				return replayErr
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "intent script (YAML)")
	cmd.Flags().IntVar(&events, "events", 50, "journal entries to show")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func seedCmd() *cobra.Command {
	sd := &cobra.Command{Use: "seed", Short: "Inspect seed data"}
	sd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the data a session starts from",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadSeed()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(data)
			}
			printState(data.State())
			return nil
		},
	})
	sd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check a seed file's references",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadSeed(); err != nil {
				return err
			}
			fmt.Println("seed OK")
			return nil
		},
	})
	return sd
}

func aiCmd() *cobra.Command {
	ai := &cobra.Command{
		Use:   "ai",
		Short: "Run the AI helpers against the seed session",
		Long:  "Each helper falls back to an empty or canned answer when no API key is configured or the model call fails.",
	}
	ai.AddCommand(&cobra.Command{
		Use:   "brief <idea>",
		Short: "Turn a rough idea into a campaign brief",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				b := sess.Gateway.GenerateBrief(ctx, strings.Join(args, " "))
				if viper.GetBool("json") {
					return printJSON(b)
				}
				if b.Empty() {
					fmt.Println("no brief generated")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRows([]table.Row{{"Title", b.Title}, {"Description", b.Description}, {"Audience", b.Audience}})
				tw.Render()
				return nil
			})
		},
	})
	ai.AddCommand(&cobra.Command{
		Use:   "match <requirement>",
		Short: "Rank community testers for a requirement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				st := sess.Store.Snapshot()
				matches := sess.Gateway.MatchTesters(ctx, strings.Join(args, " "), st.Directory())
				if viper.GetBool("json") {
					return printJSON(matches)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Tester", "Name", "Score", "Reason"})
				for _, m := range matches {
					name := ""
					if p, err := st.TesterByID(m.TesterID); err == nil {
						name = p.Name
					}
					tw.AppendRow(table.Row{m.TesterID, name, fmt.Sprintf("%.0f", m.MatchScore), m.Reason})
				}
				tw.Render()
				return nil
			})
		},
	})
	ai.AddCommand(&cobra.Command{
		Use:   "summarize <campaign-id>",
		Short: "Summarize a campaign's feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				c, err := sess.Store.Snapshot().Campaign(args[0])
				if err != nil {
					return fmt.Errorf("campaign %s: %w", args[0], err)
				}
				summary := sess.Gateway.SummarizeFeedback(ctx, c.Feedbacks)
				if viper.GetBool("json") {
					return printJSON(map[string]string{"campaign_id": c.ID, "summary": summary})
				}
				fmt.Println(summary)
				return nil
			})
		},
	})
	return ai
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long:  "Configuration comes from " + config.FileName + ", FEEDBACKFAST_* environment variables and flags, in increasing precedence.",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show resolved config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			out := map[string]any{"config": c, "api_key_set": c.APIKey != ""}
			return printJSON(out)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.FromFile(path)
	} else {
		cfg, err = config.LoadOptional(config.Path("."))
	}
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("api-key"); v != "" {
		cfg.APIKey = v
	}
	if v := viper.GetString("model"); v != "" {
		cfg.AI.Model = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if viper.GetBool("debug") {
		cfg.Log.Level = "debug"
	}
	if v := viper.GetString("seed"); v != "" {
		cfg.Seed.File = v
	}
	return cfg, cfg.Validate()
}

func loadSeed() (seed.Data, error) {
	cfg, err := loadConfig()
	if err != nil {
		return seed.Data{}, err
	}
	if cfg.Seed.File == "" {
		return seed.Default(), nil
	}
	return seed.FromFile(cfg.Seed.File)
}

func withSession(ctx context.Context, fn func(context.Context, *app.Session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()
	sess, err := app.Open(ctx, app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(ctx, sess)
}

func printState(st session.State) {
	d := views.Creator(st)
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Campaigns")
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Feedback", "Reward", "Max testers"})
	for _, c := range d.Campaigns {
		tw.AppendRow(table.Row{c.ID, c.Title, c.Status, c.FeedbackCount, c.Reward, c.MaxTesters})
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d active", d.ActiveCount), d.FeedbackCount, "", ""})
	tw.Render()

	aw := table.NewWriter()
	aw.SetOutputMirror(os.Stdout)
	aw.SetTitle("Assignments")
	aw.AppendHeader(table.Row{"ID", "Campaign", "Tester", "Status", "Invited"})
	for _, a := range st.Assignments {
		aw.AppendRow(table.Row{a.ID, a.CampaignID, a.TesterID, a.Status, a.InvitedAt})
	}
	aw.Render()
	fmt.Printf("role: %s, tab: %s\n", st.Role, st.Nav.ActiveTab)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
