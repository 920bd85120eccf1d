package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pavelanni/cqdrill/internal/evaluator"
	"github.com/pavelanni/cqdrill/internal/handler"
	appI18n "github.com/pavelanni/cqdrill/internal/i18n"
	"github.com/pavelanni/cqdrill/internal/llm"
	"github.com/pavelanni/cqdrill/internal/metrics"
	"github.com/pavelanni/cqdrill/internal/model"
	"github.com/pavelanni/cqdrill/internal/profile"
	"github.com/pavelanni/cqdrill/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cqdrill",
		Short: "Communication drill server with free-text evaluation and skill profiles",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), evaluateCmd(), profileCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP drill server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "cqdrill.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Question bank files to import (.json, .jsonl, .yaml; repeatable)")
	f.StringP("lang", "l", appI18n.DefaultLang, "Language for profile text and messages (ja, en)")
	f.IntP("batch-size", "n", 2, "Questions per drill batch")
	f.Int("candidates", 200, "Candidates fetched per batch before tag filtering")
	f.Int64("max-body", 1<<20, "Maximum API request body size in bytes")
	f.Duration("session-ttl", store.DefaultSessionTTL, "Lifetime of login tokens")
	f.Duration("session-sweep", 10*time.Minute, "Interval between expired token sweeps (0 disables)")
	f.String("admin-token", "", "Token for question uploads (or set CQDRILL_ADMIN_TOKEN); empty disables uploads")
	addLLMFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import question bank files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	cmd.Flags().String("db", "cqdrill.db", "SQLite database path")
	addLogFlags(cmd)
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score one free-text answer and print the evaluation as JSON",
		RunE:  runEvaluate,
	}
	f := cmd.Flags()
	f.String("scenario", "", "Situation the answer responds to")
	f.String("text", "", "Answer text (@file reads a file, - reads stdin)")
	_ = cmd.MarkFlagRequired("text")
	addLLMFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Aggregate a JSON list of session items into a skill profile",
		RunE:  runProfile,
	}
	f := cmd.Flags()
	f.String("items", "", "JSON file with session items (- reads stdin)")
	f.Bool("precomputed", true, "Compute skill scores locally and use them as the profile's scores")
	f.StringP("lang", "l", appI18n.DefaultLang, "Language for profile text (ja, en)")
	_ = cmd.MarkFlagRequired("items")
	addLLMFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-provider", llm.ProviderAuto, "Model vendor (auto, none, openai, anthropic, gemini)")
	f.String("llm-key", "", "API key for the selected vendor (defaults to the vendor's environment variable)")
	f.String("llm-model", "", "Model name (vendor default when empty)")
	f.String("llm-url", "", "Base URL for OpenAI-compatible or Anthropic endpoints")
	f.Duration("llm-timeout", 30*time.Second, "Time limit for one evaluation or profile call")
	f.Int("llm-retries", 2, "Retries after a transient model failure")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CQDRILL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("cqdrill")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/cqdrill")
	v.AddConfigPath("/etc/cqdrill")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	}

	return v
}

// llmConfig maps the --llm-* flags onto an llm.Config. Key, model and URL
// apply to the selected vendor; auto treats them as OpenAI settings.
func llmConfig(v *viper.Viper) llm.Config {
	cfg := llm.DefaultConfig()
	cfg.Provider = strings.ToLower(strings.TrimSpace(v.GetString("llm-provider")))
	cfg.Timeout = v.GetDuration("llm-timeout")
	cfg.Retry.MaxAttempts = v.GetInt("llm-retries") + 1

	key, modelName, url := v.GetString("llm-key"), v.GetString("llm-model"), v.GetString("llm-url")
	switch cfg.Provider {
	case llm.ProviderAnthropic:
		cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL = key, url
		if modelName != "" {
			cfg.Anthropic.Model = modelName
		}
	case llm.ProviderGemini:
		cfg.Gemini.APIKey = key
		if modelName != "" {
			cfg.Gemini.Model = modelName
		}
	default:
		cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL = key, url
		if modelName != "" {
			cfg.OpenAI.Model = modelName
		}
	}
	return cfg
}

func newBackend(ctx context.Context, v *viper.Viper, rec *metrics.Recorder) (llm.Backend, time.Duration, error) {
	cfg := llmConfig(v)
	backend, err := llm.NewBackend(ctx, cfg, slog.Default(), rec)
	if err != nil {
		return llm.Backend{}, 0, fmt.Errorf("create LLM backend: %w", err)
	}
	slog.Info("scoring backend selected", "backend", backend.String())
	return backend, cfg.Timeout, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := importFiles(db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	db.SetSessionTTL(v.GetDuration("session-ttl"))
	if n, err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	} else if n > 0 {
		slog.Info("removed expired sessions", "count", n)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()
	backend, timeout, err := newBackend(ctx, v, rec)
	if err != nil {
		return err
	}
	catalog := appI18n.NewCatalog(lang)
	ev := evaluator.New(backend,
		evaluator.WithTimeout(timeout),
		evaluator.WithLogger(slog.Default()),
		evaluator.WithRecorder(rec))
	agg := profile.New(backend,
		profile.WithTimeout(timeout),
		profile.WithLogger(slog.Default()),
		profile.WithRecorder(rec),
		profile.WithCatalog(catalog))

	cfg := model.Config{
		BatchSize:   v.GetInt("batch-size"),
		CandidateN:  v.GetInt("candidates"),
		MaxBodySize: v.GetInt64("max-body"),
		AdminToken:  v.GetString("admin-token"),
	}
	h := handler.New(db, ev, agg, rec, cfg)
	if every := v.GetDuration("session-sweep"); every > 0 {
		go h.SweepSessions(ctx, every)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server",
		"addr", srv.Addr,
		"backend", backend.String(),
		"lang", lang,
		"batch_size", cfg.BatchSize,
		"uploads", cfg.AdminToken != "",
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := importFiles(db, args); err != nil {
		return err
	}
	count, err := db.QuestionCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d questions in %s\n", count, v.GetString("db"))
	return nil
}

func importFiles(db *store.Store, paths []string) error {
	for _, path := range paths {
		if _, err := db.ImportFile(path); err != nil {
			return err
		}
	}
	return nil
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	text, err := readArg(cmd, v.GetString("text"))
	if err != nil {
		return err
	}
	backend, timeout, err := newBackend(cmd.Context(), v, nil)
	if err != nil {
		return err
	}

	ev := evaluator.New(backend, evaluator.WithTimeout(timeout), evaluator.WithLogger(slog.Default()))
	return printJSON(cmd.OutOrStdout(), ev.Evaluate(cmd.Context(), v.GetString("scenario"), string(text)))
}

func runProfile(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := readArg(cmd, "@"+v.GetString("items"))
	if err != nil {
		return err
	}
	var items []model.SessionItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse session items: %w", err)
	}
	for i := range items {
		items[i].Type = model.ParseItemType(string(items[i].Type))
		items[i].Skill = model.NormalizeSkill(items[i].Skill)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	backend, timeout, err := newBackend(cmd.Context(), v, nil)
	if err != nil {
		return err
	}

	var precomputed map[string]float64
	if v.GetBool("precomputed") {
		precomputed = profile.SkillScores(items)
	}
	meta := profile.Meta(items)
	agg := profile.New(backend,
		profile.WithTimeout(timeout),
		profile.WithLogger(slog.Default()),
		profile.WithCatalog(appI18n.NewCatalog(lang)))
	return printJSON(cmd.OutOrStdout(), agg.Aggregate(cmd.Context(), items, precomputed, &meta))
}

// readArg returns s itself, or the contents of a file when s is "@path".
// "-" and "@-" read stdin.
func readArg(cmd *cobra.Command, s string) ([]byte, error) {
	path, isFile := strings.CutPrefix(s, "@")
	if !isFile && s != "-" {
		return []byte(s), nil
	}
	if s == "-" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
