// catsync: incremental synchronization of per-language UI string
// catalogs with AI translation of changed keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/catsync/catsync/catalog"
	"github.com/catsync/catsync/config"
	"github.com/catsync/catsync/history"
	"github.com/catsync/catsync/i18n"
	"github.com/catsync/catsync/lockfile"
	"github.com/catsync/catsync/merge"
	"github.com/catsync/catsync/sync"
	"github.com/catsync/catsync/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catsync",
		Short: "Incremental UI catalog synchronization with AI translation",
		Long: `catsync: incremental synchronization of per-language UI string catalogs.

Diffs the source-language catalog against its previous committed revision,
translates exactly the new or changed keys via an AI provider, and merges
the results into each target-language catalog without touching existing
translations.

Commands:
  status    Show per-language translation coverage
  changes   Show keys that would be translated (no provider calls)
  sync      Translate pending keys and update target catalogs

AI Providers:
  google         Google AI (Gemini), API key
  groq           Groq. API key required
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newStatusCmd(),
		newChangesCmd(),
		newSyncCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("catsync version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// status (read-only: per-language coverage)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-language translation coverage",
		Long: `Show translation statistics for every configured target language.

Reads the source and target catalogs; does not modify any files and does
not call any provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootDir)
			if err != nil {
				return err
			}
			return runStatus(cfg)
		},
	}
}

func runStatus(cfg *config.Config) error {
	src, err := catalog.ParseFile(cfg.SourcePath())
	if err != nil {
		return err
	}
	sourceFlat := src.Root.Flatten()

	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Translation Statistics"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "\n%-10s %-12s %-12s %s\n", "Lang", "Translated", "Missing", "Progress")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 52))

	for _, lang := range cfg.Languages {
		path := cfg.CatalogPath(lang.Code)
		target, err := catalog.ParseFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%-10s %-12s %-12s %s\n", lang.Code, "missing", "-", "-")
			continue
		}

		missing := merge.Missing(target.Root.Flatten(), sourceFlat)
		_, translated, _ := target.Stats()
		percent := 0
		if len(sourceFlat) > 0 {
			percent = (len(sourceFlat) - len(missing)) * 100 / len(sourceFlat)
		}
		fmt.Fprintf(os.Stderr, "%-10s %-12d %-12d %s\n", lang.Code, translated, len(missing), progressBar(percent, 20))
	}

	fmt.Fprintln(os.Stderr, strings.Repeat("─", 52))
	fmt.Fprintf(os.Stderr, "Source keys (%s): %d\n\n", cfg.SourceLang, len(sourceFlat))

	if dirty, err := history.NewProvider(rootDir).Dirty(cfg.SourcePath()); err == nil && dirty {
		logWarning("Source catalog has uncommitted changes; sync will diff against the last two commits")
	}
	return nil
}

// progressBar renders a colored percentage bar of the given width.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	color := colorGreen
	if percent < 50 {
		color = colorRed
	} else if percent < 100 {
		color = colorYellow
	}

	filled := percent * width / 100
	return fmt.Sprintf("%s%s%s%s %3d%%",
		color,
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		colorReset,
		percent)
}

// ---------------------------------------------------------------------------
// changes (dry run: compute workload, no provider calls)
// ---------------------------------------------------------------------------

func newChangesCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show keys that would be translated",
		Long: `Compute the change set against the previous committed revision of the
source catalog and show the per-language translation workload. Makes no
provider calls and writes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootDir)
			if err != nil {
				return err
			}
			return runChanges(cfg, full)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Consider every source key, not just changed ones")

	return cmd
}

func runChanges(cfg *config.Config, full bool) error {
	src, err := catalog.ParseFile(cfg.SourcePath())
	if err != nil {
		return err
	}

	opts := sync.Options{
		SourcePath: cfg.SourcePath(),
		SourceLang: cfg.SourceLang,
		Snapshot:   history.NewProvider(rootDir).Previous,
		Full:       full,
		OnError:    logWarning,
	}
	candidates := sync.Candidates(src, &opts)

	if len(candidates) == 0 {
		logSuccess(i18n.T("No pending changes"))
		return nil
	}

	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Pending Changes"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	paths := make([]string, 0, len(candidates))
	for k := range candidates {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	for _, k := range paths {
		fmt.Fprintf(os.Stderr, "  %s: %q\n", k, candidates[k])
	}
	fmt.Fprintln(os.Stderr)

	// Per-language workload after the non-overwrite filter.
	for _, lang := range cfg.Languages {
		pending := len(candidates)
		if target, err := catalog.ParseFile(cfg.CatalogPath(lang.Code)); err == nil {
			targetFlat := target.Root.Flatten()
			pending = 0
			for _, k := range paths {
				if targetFlat[k] == "" {
					pending++
				}
			}
		}
		logInfo("%s (%s): %d key(s) to translate", lang.Code, lang.Name, pending)
	}

	return nil
}

// ---------------------------------------------------------------------------
// sync
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var (
		langs    string
		provider string
		apiKey   string
		model    string
		baseURL  string
		proxy    string
		timeout  time.Duration
		full     bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Translate pending keys and update target catalogs",
		Long: `Synchronize target-language catalogs with the source catalog.

Only keys that are new or changed since the previous committed revision
of the source catalog are translated, and a key already translated in a
target catalog is never overwritten; clear its value to opt in to
re-translation.

Examples:
  # Sync all configured languages using Google AI
  catsync sync --provider google --api-key $KEY

  # Sync specific languages with a local model
  catsync sync --provider ollama --model llama3.2 --lang de,fr

  # Ignore the change set and fill every missing key
  catsync sync --provider groq --full`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(syncArgs{
				langs: langs, provider: provider, apiKey: apiKey,
				model: model, baseURL: baseURL, proxy: proxy,
				timeout: timeout, full: full, verbose: verbose,
			})
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "AI provider: google, groq, ollama, custom-openai")
	cmd.Flags().StringVar(&model, "model", "", "Model name (provider default if empty)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or CATSYNC_API_KEY env var)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().StringVar(&langs, "lang", "", "Languages to sync (comma-separated, default: all configured)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().BoolVar(&full, "full", false, "Consider every source key, not just changed ones")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log every key as it is processed")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"google\tGoogle AI (Gemini). API key required",
			"groq\tGroq. API key required",
			"ollama\tOllama local server",
			"custom-openai\tCustom OpenAI-compatible endpoint",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

type syncArgs struct {
	langs    string
	provider string
	apiKey   string
	model    string
	baseURL  string
	proxy    string
	timeout  time.Duration
	full     bool
	verbose  bool
}

func runSync(a syncArgs) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	env, err := config.LoadEnv(rootDir)
	if err != nil {
		return err
	}

	prov := resolveProvider(a, cfg, env)
	if err := prov.Validate(); err != nil {
		return err
	}

	targets, err := selectTargets(cfg, a.langs)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		logSuccess(i18n.T("All translations are up to date"))
		return nil
	}

	lock, err := lockfile.Acquire(rootDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	logInfo("Provider: %s (%s), Model: %s", prov.Name, prov.ID, prov.Model)
	logInfo("Source: %s", cfg.SourcePath())
	codes := make([]string, len(targets))
	for i, t := range targets {
		codes[i] = t.Lang
	}
	logInfo("Syncing: %s", strings.Join(codes, ", "))

	// Graceful cancellation: first SIGINT saves in-flight progress.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning(i18n.T("Interrupted, saving progress..."))
		cancel()
	}()

	terms := cfg.Terms
	opts := sync.Options{
		SourcePath: cfg.SourcePath(),
		SourceLang: cfg.SourceLang,
		Snapshot:   history.NewProvider(rootDir).Previous,
		Full:       a.full,
		Translator: func(ctx context.Context, text, langName string) translate.Result {
			return translate.Text(ctx, prov, text, langName, terms)
		},
		OnLog:   logInfo,
		OnError: logError,
	}
	if !a.verbose {
		// Per-key progress stays quiet; per-language summaries and
		// diagnostics still go through.
		opts.OnLog = func(format string, args ...any) {
			if !strings.HasPrefix(format, "Translated %q") && !strings.HasPrefix(format, "Skipping %q") {
				logInfo(format, args...)
			}
		}
	}

	err = sync.RunAll(ctx, targets, opts)
	if err != nil {
		if ctx.Err() != nil {
			logWarning("Sync interrupted, partial progress saved")
			return nil
		}
		return err
	}

	logSuccess(i18n.T("Sync complete!"))
	return nil
}

// resolveProvider merges provider settings: flags beat environment beats
// config file beats built-in defaults.
func resolveProvider(a syncArgs, cfg *config.Config, env *config.Env) translate.Provider {
	id := firstNonEmpty(a.provider, env.Provider, cfg.Provider.ID, translate.ProviderGoogle)
	baseURL := firstNonEmpty(a.baseURL, env.BaseURL, cfg.Provider.BaseURL)
	apiKey := firstNonEmpty(a.apiKey, env.APIKey)
	model := firstNonEmpty(a.model, env.Model, cfg.Provider.Model)
	proxy := firstNonEmpty(a.proxy, env.Proxy)
	return translate.Resolve(id, baseURL, apiKey, model, proxy, a.timeout)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// selectTargets returns the sync targets, restricted to the --lang filter
// when given. Unknown filter codes are an error rather than silently
// skipped.
func selectTargets(cfg *config.Config, filter string) ([]sync.Target, error) {
	byCode := make(map[string]config.Language, len(cfg.Languages))
	for _, l := range cfg.Languages {
		byCode[l.Code] = l
	}

	var selected []config.Language
	if filter == "" {
		selected = cfg.Languages
	} else {
		for _, code := range strings.Split(filter, ",") {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			l, ok := byCode[code]
			if !ok {
				return nil, fmt.Errorf("language %q is not configured", code)
			}
			selected = append(selected, l)
		}
	}

	targets := make([]sync.Target, len(selected))
	for i, l := range selected {
		targets[i] = sync.Target{
			Lang:     l.Code,
			LangName: l.Name,
			Path:     cfg.CatalogPath(l.Code),
		}
	}
	return targets, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
