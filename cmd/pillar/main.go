package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jdgilhuly/go_pillar_eval/pkg/config"
	"github.com/jdgilhuly/go_pillar_eval/pkg/diff"
	"github.com/jdgilhuly/go_pillar_eval/pkg/dispatch"
	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/judge"
	"github.com/jdgilhuly/go_pillar_eval/pkg/mock"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
	"github.com/jdgilhuly/go_pillar_eval/pkg/prompt"
	"github.com/jdgilhuly/go_pillar_eval/pkg/provider"
	"github.com/jdgilhuly/go_pillar_eval/pkg/record"
	"github.com/jdgilhuly/go_pillar_eval/pkg/report"
	"github.com/jdgilhuly/go_pillar_eval/pkg/scan"
	"github.com/jdgilhuly/go_pillar_eval/pkg/worker"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pillar",
	Short: "Multi-pillar repository evaluation",
	Long: `Evaluate a repository along four pillars (security, fidelity, ethics,
performance) with cooperating workers, and gate the result against a
threshold profile into a single PASS / WARN / FAIL decision.

Use 'pillar init' to scaffold configuration, then 'pillar run <repo>'.`,
	SilenceUsage: true,
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run <repo>",
	Short: "Evaluate a repository",
	Long: `Dispatch the pillar workers over a repository, aggregate their scores
and synthesize the verdict under the selected profile.

The run record is saved as JSON for 'pillar verdict' and 'pillar diff' and
appended to the history database. The exit code is 0 whenever a record was
produced, whatever the decision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		logger, closeLog, err := newLogger(cfg, verbose, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		root := args[0]
		eval := func(ctx context.Context) error {
			return evaluate(ctx, cmd, cfg, root, logger)
		}

		watch, _ := cmd.Flags().GetBool("watch")
		if watch {
			outputPath, _ := cmd.Flags().GetString("output")
			return watchRepo(ctx, root, ignoredPaths(cfg, outputPath), logger, cmd.OutOrStdout(), eval)
		}
		return eval(ctx)
	},
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// applyRunFlags overrides config values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("profile") {
		cfg.Profile, _ = flags.GetString("profile")
	}
	if flags.Changed("mode") {
		mode, _ := flags.GetString("mode")
		cfg.Dispatch.Mode = config.Mode(mode)
	}
	if flags.Changed("order") {
		order, _ := flags.GetString("order")
		cfg.Dispatch.Order = splitList(order)
	}
	if flags.Changed("concurrency") {
		cfg.Dispatch.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("timeout") {
		cfg.Dispatch.WorkerTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("budget") {
		cfg.Dispatch.RunBudget, _ = flags.GetDuration("budget")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("no-judge") {
		if off, _ := flags.GetBool("no-judge"); off {
			cfg.Judge.Provider = "none"
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// newLogger logs to stderr when verbose and to the configured log file.
func newLogger(cfg *config.Config, verbose bool, stderr io.Writer) (*log.Logger, func(), error) {
	var writers []io.Writer
	if verbose {
		writers = append(writers, stderr)
	}
	closeFn := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
		closeFn = func() { f.Close() }
	}
	if len(writers) == 0 {
		return log.New(io.Discard, "", 0), closeFn, nil
	}
	return log.New(io.MultiWriter(writers...), "[pillar] ", log.LstdFlags|log.Lmicroseconds), closeFn, nil
}

func loadProfiles(cfg *config.Config) (*profile.Registry, error) {
	profiles := profile.NewRegistry()
	if cfg.ProfileDir != "" {
		if err := profiles.LoadDir(cfg.ProfileDir); err != nil {
			return nil, fmt.Errorf("loading profiles: %w", err)
		}
	}
	return profiles, nil
}

// collaborators returns the scripted collaborators when a mock script is
// given, otherwise the file scanners plus the configured judge.
func collaborators(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *log.Logger) (worker.Collaborators, error) {
	if script, _ := cmd.Flags().GetString("mock"); script != "" {
		mc, err := mock.Load(script)
		if err != nil {
			return worker.Collaborators{}, err
		}
		logger.Printf("using scripted collaborators from %s", script)
		return mock.NewRegistry(mc).Collaborators(), nil
	}

	c := scan.Collaborators()
	j, err := newJudge(ctx, cfg, logger)
	if err != nil {
		return worker.Collaborators{}, err
	}
	c.Judge = j
	return c, nil
}

// newJudge builds the external judge. An unreachable provider yields no
// judge, which the performance worker reports as degraded.
func newJudge(ctx context.Context, cfg *config.Config, logger *log.Logger) (worker.ExternalJudge, error) {
	if cfg.Judge.Provider == "none" {
		return nil, nil
	}
	p, err := provider.NewAnthropic(ctx, provider.AnthropicConfig{
		APIKeyEnv:  cfg.Judge.APIKeyEnv,
		UseBedrock: cfg.Judge.Bedrock,
		AWSRegion:  cfg.Judge.AWSRegion,
		AWSProfile: cfg.Judge.AWSProfile,
		BaseURL:    cfg.Judge.BaseURL,
	})
	if evalerr.IsProviderUnavailable(err) {
		logger.Printf("judge disabled: %v", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating judge provider: %w", err)
	}
	tmpl, err := prompt.LoadOrDefault(cfg.Judge.PromptFile)
	if err != nil {
		return nil, err
	}
	return judge.New(p, cfg.Judge.Model, tmpl), nil
}

func evaluate(ctx context.Context, cmd *cobra.Command, cfg *config.Config, root string, logger *log.Logger) error {
	out := cmd.OutOrStdout()
	verbose, _ := cmd.Flags().GetBool("verbose")
	asJSON, _ := cmd.Flags().GetBool("json")
	outputPath, _ := cmd.Flags().GetString("output")

	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}
	repo, err := scan.Repo(root)
	if err != nil {
		return fmt.Errorf("reading repository: %w", err)
	}
	collabs, err := collaborators(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	workers := worker.Builtins(collabs, worker.Options{Retry: cfg.RetryPolicy(), Fallback: cfg.Judge.Fallback})

	opts := []dispatch.Option{dispatch.WithLogger(logger)}
	if verbose && !asJSON {
		opts = append(opts, dispatch.WithProgress(func(done, total int, res pillar.WorkerResult) {
			fmt.Fprintf(cmd.ErrOrStderr(), "  [%d/%d] %-13s %s %.2f\n", done, total, res.Worker, res.Status, res.Score)
		}))
	}

	rec, err := dispatch.New(cfg, profiles, workers, opts...).Run(ctx, repo, cfg.Profile)
	if err != nil {
		return err
	}

	sinks := record.MultiSink{}
	if outputPath != "" {
		if err := rec.Save(outputPath); err != nil {
			return err
		}
	} else {
		outputPath = record.DefaultPath(cfg.OutputDir, rec)
		sinks = append(sinks, record.FileSink{Dir: cfg.OutputDir})
	}
	if cfg.DBPath != "" {
		store, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}
	if err := sinks.Write(ctx, rec); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	if asJSON {
		data, err := rec.Canonical()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	colored := !color.NoColor
	if verbose {
		report.PrintVerbose(out, rec, colored)
	} else {
		report.PrintRecord(out, rec, colored)
	}
	fmt.Fprintf(out, "\nRecord saved to %s\n", outputPath)
	return nil
}

func openStore(path string) (*record.Store, error) {
	store, err := record.Open(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// --- verdict command ---

var verdictCmd = &cobra.Command{
	Use:   "verdict <run.json>",
	Short: "Re-synthesize the verdict of a saved run",
	Long: `Recompute the composite score and verdict from the frozen worker results
of a saved run. Without --profile the profile recorded in the run is used,
which reproduces the original verdict exactly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := record.Load(args[0])
		if err != nil {
			return err
		}

		var prof *profile.Profile
		if name, _ := cmd.Flags().GetString("profile"); name != "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			profiles, err := loadProfiles(cfg)
			if err != nil {
				return err
			}
			if prof, err = profiles.Resolve(name); err != nil {
				return err
			}
		}

		sum, v, err := record.Resynthesize(rec, prof)
		if err != nil {
			return err
		}
		rec.Summary, rec.Verdict = sum, v
		if prof != nil {
			rec.Profile, rec.Rules = prof.Name, prof
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := record.MarshalVerdict(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		report.PrintRecord(out, rec, !color.NoColor)
		return nil
	},
}

// --- diff command ---

var diffCmd = &cobra.Command{
	Use:   "diff <run-a.json> <run-b.json>",
	Short: "Compare two runs",
	Long: `Compare two saved runs pillar by pillar.

Shows score regressions, improvements and unchanged pillars, and whether
the decision changed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := record.Load(args[0])
		if err != nil {
			return err
		}
		b, err := record.Load(args[1])
		if err != nil {
			return err
		}

		threshold, _ := cmd.Flags().GetFloat64("threshold")
		dr := diff.Compare(a, b, threshold)
		if only, _ := cmd.Flags().GetString("only"); only != "" {
			var cats []diff.Category
			for _, c := range splitList(only) {
				cats = append(cats, diff.Category(c))
			}
			dr = dr.Filter(cats)
		}

		out := cmd.OutOrStdout()
		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			data, err := dr.JSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
		case "table":
			dr.PrintTable(out)
		default:
			return fmt.Errorf("unknown format %q (want table or json)", format)
		}
		return nil
	},
}

// --- history command ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs",
	Long: `List runs recorded in the history database, newest first. With
--pillar, show that pillar's score over time instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("db") {
			cfg.DBPath, _ = cmd.Flags().GetString("db")
		}
		store, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		repo, _ := cmd.Flags().GetString("repo")
		out := cmd.OutOrStdout()

		if name, _ := cmd.Flags().GetString("pillar"); name != "" {
			p, err := pillar.Parse(name)
			if err != nil {
				return err
			}
			points, err := store.Trend(cmd.Context(), repo, p, limit)
			if err != nil {
				return err
			}
			report.PrintTrend(out, p, points)
			return nil
		}

		entries, err := store.List(cmd.Context(), repo, limit)
		if err != nil {
			return err
		}
		report.PrintHistory(out, entries, !color.NoColor)
		return nil
	},
}

// --- profiles command ---

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List and inspect threshold profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		profiles, err := loadProfiles(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range profiles.Names() {
			p, err := profiles.Resolve(name)
			if err != nil {
				fmt.Fprintf(out, "  %-20s (invalid: %v)\n", name, err)
				continue
			}
			desc := p.Description
			if desc == "" {
				desc = "(no description)"
			}
			fmt.Fprintf(out, "  %-20s %s\n", p.Name, desc)
		}
		return nil
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a profile as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		profiles, err := loadProfiles(cfg)
		if err != nil {
			return err
		}
		p, err := profiles.Resolve(args[0])
		if err != nil {
			return err
		}
		data, err := p.YAML()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// --- validate command ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config, profile and mock files",
	Long: `Check the configuration, every profile in the profile directory and,
optionally, a single profile file, judge prompt or mock script.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
		fmt.Fprintf(out, "Config %q is valid.\n", cfgPath)

		profiles, err := loadProfiles(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Profiles valid: %s\n", strings.Join(profiles.Names(), ", "))

		if path, _ := cmd.Flags().GetString("profile"); path != "" {
			p, err := profile.Load(path)
			if err != nil {
				return fmt.Errorf("profile validation failed: %w", err)
			}
			fmt.Fprintf(out, "Profile %q is valid (%d pillars).\n", p.Name, len(p.Pillars))
		}
		if cfg.Judge.PromptFile != "" {
			if _, err := prompt.Load(cfg.Judge.PromptFile); err != nil {
				return fmt.Errorf("prompt validation failed: %w", err)
			}
			fmt.Fprintf(out, "Judge prompt %q is valid.\n", cfg.Judge.PromptFile)
		}
		if path, _ := cmd.Flags().GetString("mock"); path != "" {
			if _, err := mock.Load(path); err != nil {
				return fmt.Errorf("mock script validation failed: %w", err)
			}
			fmt.Fprintf(out, "Mock script %q is valid.\n", path)
		}
		return nil
	},
}

// --- init command ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pillar configuration",
	Long: `Scaffold configuration for pillar in the current directory.

Creates the following structure:
  pillar.yaml                     - Main configuration file
  .pillar/profiles/custom.yaml    - Example threshold profile
  .pillar/prompts/judge.yaml      - Judge prompt template
  .pillar/mock.yaml               - Example scripted collaborators
  .pillar/runs/                   - Run record output directory`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dirs := []string{".pillar/profiles", ".pillar/prompts", ".pillar/runs"}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
		fmt.Fprintf(out, "  created %s/\n", d)
	}

	if _, err := os.Stat(config.FileName); err == nil {
		fmt.Fprintf(out, "  skipped %s (already exists)\n", config.FileName)
	} else {
		if err := config.WriteDefault(config.FileName); err != nil {
			return err
		}
		fmt.Fprintf(out, "  created %s\n", config.FileName)
	}

	if err := writeYAML(out, filepath.Join(".pillar", "profiles", "custom.yaml"), exampleProfile()); err != nil {
		return err
	}
	if err := writeYAML(out, filepath.Join(".pillar", "prompts", "judge.yaml"), prompt.Default()); err != nil {
		return err
	}
	if err := writeYAML(out, filepath.Join(".pillar", "mock.yaml"), exampleMock()); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nInitialized. Run 'pillar validate' to check your config.")
	return nil
}

func writeYAML(out io.Writer, path string, data any) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "  skipped %s (already exists)\n", path)
		return nil
	}

	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(out, "  created %s\n", path)
	return nil
}

func exampleProfile() *profile.Profile {
	return &profile.Profile{
		Name:        "custom",
		Description: "Security and fidelity weigh double; performance may be simulated",
		Pillars: map[pillar.Pillar]profile.Rule{
			pillar.Security:    {Threshold: 0.6, Veto: true, Weight: 2},
			pillar.Fidelity:    {Threshold: 0.7, Weight: 2},
			pillar.Ethics:      {Threshold: 0.6, Weight: 1},
			pillar.Performance: {Threshold: 0.6, Weight: 1, Degraded: profile.DegradedEvaluate},
		},
		Bands: profile.DefaultBands(),
	}
}

func exampleMock() mock.Config {
	return mock.Config{
		Secrets: mock.Script[[]worker.SecretFinding]{
			DefaultResponse: &mock.Response[[]worker.SecretFinding]{Value: []worker.SecretFinding{
				{Pattern: "aws_access_key", File: "config.py", Line: 3, Snippet: "AKIA****"},
			}},
		},
		Structure: mock.Script[worker.Structure]{
			DefaultResponse: &mock.Response[worker.Structure]{Value: worker.Structure{
				Languages: []string{"python"}, FileCount: 40, TestRatio: 0.2,
			}},
		},
		Docs: mock.Script[worker.DocStats]{
			DefaultResponse: &mock.Response[worker.DocStats]{Value: worker.DocStats{
				SectionCount: 4, WordCount: 350, Sections: []string{"Install", "Usage", "Security", "License"},
			}},
		},
		Judge: mock.Script[worker.JudgeMetrics]{
			DefaultResponse: &mock.Response[worker.JudgeMetrics]{Value: worker.JudgeMetrics{Faithfulness: mock.Float(0.82)}},
		},
	}
}

func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("profile", "p", "", "Threshold profile (default from config)")
	cmd.Flags().StringP("config", "c", "", "Path to config file (default ./pillar.yaml)")
	cmd.Flags().String("mode", "", "Dispatch mode: sequential or parallel")
	cmd.Flags().String("order", "", "Comma-separated dispatch order, e.g. security,fidelity,ethics,performance")
	cmd.Flags().IntP("concurrency", "j", 0, "Max workers per parallel stage")
	cmd.Flags().Duration("timeout", 0, "Per-worker timeout")
	cmd.Flags().Duration("budget", 0, "Overall run budget")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: <output_dir>/<timestamp>-<id>.json)")
	cmd.Flags().String("db", "", "History database path (empty disables)")
	cmd.Flags().String("mock", "", "Scripted collaborator YAML instead of scanning files")
	cmd.Flags().Bool("no-judge", false, "Do not call the external judge")
	cmd.Flags().Bool("json", false, "Print the run record as JSON")
	cmd.Flags().BoolP("verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolP("watch", "w", false, "Re-run when repository files change")
}

func init() {
	registerRunFlags(runCmd)

	// verdict command flags
	verdictCmd.Flags().StringP("profile", "p", "", "Re-gate under another profile")
	verdictCmd.Flags().StringP("config", "c", "", "Path to config file")
	verdictCmd.Flags().Bool("json", false, "Print the verdict as JSON")

	// diff command flags
	diffCmd.Flags().Float64("threshold", 0.0, "Minimum score change to count as improved or regressed")
	diffCmd.Flags().String("format", "table", "Output format: table, json")
	diffCmd.Flags().String("only", "", "Comma-separated categories to show")

	// history command flags
	historyCmd.Flags().StringP("config", "c", "", "Path to config file")
	historyCmd.Flags().String("db", "", "History database path")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum runs to show (0 = all)")
	historyCmd.Flags().String("repo", "", "Only runs of this repository")
	historyCmd.Flags().String("pillar", "", "Show the score trend of one pillar")

	// profiles command flags
	profilesCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)

	// validate command flags
	validateCmd.Flags().StringP("config", "c", "", "Path to config file to validate")
	validateCmd.Flags().String("profile", "", "Path to a profile file to validate")
	validateCmd.Flags().String("mock", "", "Path to a mock script to validate")

	// register all subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verdictCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
}
