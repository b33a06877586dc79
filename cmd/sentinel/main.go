package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cookiesentinel/internal/agent"
	"cookiesentinel/internal/browser"
	"cookiesentinel/internal/bus"
	"cookiesentinel/internal/classify"
	"cookiesentinel/internal/config"
	"cookiesentinel/internal/enforce"
	"cookiesentinel/internal/logging"
	"cookiesentinel/internal/review"
	"cookiesentinel/internal/store"
)

var (
	cfgPath string
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Cookie Sentinel - automated cookie consent and enforcement",
	Long: `Cookie Sentinel attaches to a Chrome instance over the DevTools Protocol,
resolves cookie consent prompts according to your preferences, classifies
the cookies sites set, deletes the ones you have not agreed to, and queues
anything it cannot classify confidently for your review.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		if err := logging.Initialize("."); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach to the browser and run the consent and enforcement agent",
	Long: `Connects to Chrome (launching one if no debugger URL is configured),
attaches a consent resolver to every page, and runs the classification and
enforcement passes in the background until interrupted.`,
	RunE: runAgent,
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Triage pending review items interactively",
	RunE:  runReview,
}

var decideCmd = &cobra.Command{
	Use:   "decide [id] [delete|keep]",
	Short: "Record a verdict on one review item",
	Args:  cobra.ExactArgs(2),
	RunE:  runDecide,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show classifier status, banner counters, and queue depth",
	RunE:  showStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "sentinel.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// preferencesPath is where the live-reloadable preference file lives.
func preferencesPath() string {
	return filepath.Join(".sentinel", "preferences.yaml")
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Storage.DatabasePath)
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	prefs, err := config.NewPreferenceStore(preferencesPath(), cfg.Preferences)
	if err != nil {
		return err
	}

	manifests := classify.NewManifestIndex()
	if err := manifests.LoadBundled(cfg.Storage.ManifestDir); err != nil {
		logger.Warn("bundled manifests unavailable", zap.Error(err))
	}
	pipeline := classify.NewPipeline(manifests)

	escalator, err := classify.NewEscalatorFromConfig(ctx, cfg.Classifier, prefs.Current().AIEnabled)
	if err != nil {
		return err
	}

	mgr := browser.NewManager(cfg.Browser)
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Shutdown()

	cookies := mgr.CookieStore()
	tracker := enforce.NewTracker(
		cfg.Enforcement.AttemptCooldownDuration(),
		cfg.Enforcement.MaxAttemptsOrDefault(),
		cfg.Enforcement.InactivityWindowDuration(),
		cfg.Enforcement.SweepIntervalDuration(),
	)
	enforcer := enforce.NewEnforcer(cookies, tracker)
	watcher := enforce.NewWatcher(cookies, tracker, cfg.Enforcement.WatchIntervalDuration())

	queue := review.New(st, func(ctx context.Context, name, domain string) (bool, error) {
		res, err := enforcer.Delete(ctx, name, domain)
		return res.Succeeded(), err
	})

	a := agent.New(agent.Options{
		Browser:   mgr,
		Prefs:     prefs,
		Config:    cfg,
		Pipeline:  pipeline,
		Escalator: escalator,
		Manifests: manifests,
		Enforcer:  enforcer,
		Watcher:   watcher,
		Queue:     queue,
		Store:     st,
	})

	logger.Info("agent running",
		zap.String("browser", mgr.ControlURL()),
		zap.String("database", cfg.Storage.DatabasePath))
	return a.Run(ctx)
}

func runDecide(cmd *cobra.Command, args []string) error {
	id, verdict := args[0], store.Decision(args[1])
	if verdict != store.DecisionDelete && verdict != store.DecisionKeep {
		return fmt.Errorf("verdict must be delete or keep, got %q", args[1])
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	queue := review.New(st, nil)
	item, err := queue.Decide(context.Background(), id, verdict)
	if err != nil {
		return err
	}

	fmt.Printf("%s@%s: %s\n", item.Name, item.Domain, item.Decision)
	if verdict == store.DecisionDelete {
		fmt.Println("the running agent will remove it on its next enforcement pass")
	}
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	escalator, err := classify.NewEscalatorFromConfig(ctx, cfg.Classifier, cfg.Preferences.AIEnabled)
	if err != nil {
		return err
	}

	b := bus.New(bus.Services{
		ClassifierStatus: escalator.Status,
		Review:           review.New(st, nil),
		Store:            st,
	})

	status, err := b.ClassifierStatus(ctx)
	if err != nil {
		return err
	}
	pending, err := b.FetchPending(ctx)
	if err != nil {
		return err
	}
	counts, err := st.GetBannerCounts()
	if err != nil {
		return err
	}

	fmt.Printf("classifier: enabled=%v provider=%s model=%s ready=%v\n",
		status.Enabled, status.Provider, status.Model, status.Ready)
	fmt.Printf("banners:    today=%d lifetime=%d\n", counts.Today, counts.Lifetime)
	fmt.Printf("review:     %d pending\n", len(pending.Items))
	return nil
}
