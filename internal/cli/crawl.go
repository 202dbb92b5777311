package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/casecrawl/internal/auth"
	"github.com/ppiankov/casecrawl/internal/cache"
	"github.com/ppiankov/casecrawl/internal/checkpoint"
	"github.com/ppiankov/casecrawl/internal/listing"
	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/output"
	"github.com/ppiankov/casecrawl/internal/pipeline"
	"github.com/ppiankov/casecrawl/internal/portal"
	"github.com/ppiankov/casecrawl/internal/session"
	"github.com/ppiankov/casecrawl/internal/util"
	"github.com/ppiankov/casecrawl/internal/worker"
)

var (
	portalName  string
	baseURL     string
	username    string
	password    string
	outputDir   string
	idsFile     string
	noResume    bool
	noCache     bool
	itemDelay   time.Duration
	rps         float64
	robots      bool
	insecureTLS bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Log in, enumerate the case list and save every case",
	Long: `Crawl runs one resumable pass over a portal:
- Logs in (the captcha image is saved and you are asked to type it)
- Enumerates every page of the case list
- Fetches each case detail page not already completed
- Saves labeled tables as JSON and CSV under the output directory
- Writes a run report listing failures

Interrupting with Ctrl-C stops after the current case; the next run resumes.

Example:
  casecrawl crawl --portal zmjg --base-url http://10.0.0.5:8080 -u officer
  casecrawl crawl --portal jeecg -u jeecg -o jeecg-data
  casecrawl crawl --ids failed.txt`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	// Portal flags
	crawlCmd.Flags().StringVar(&portalName, "portal", "", "portal preset (see 'casecrawl portals')")
	crawlCmd.Flags().StringVar(&baseURL, "base-url", "", "override the preset base URL")
	crawlCmd.Flags().StringVarP(&username, "username", "u", "", "login username (or CASECRAWL_USERNAME)")
	crawlCmd.Flags().StringVarP(&password, "password", "p", "", "login password (prefer CASECRAWL_PASSWORD)")

	// Output flags
	crawlCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "output directory (default from config: case-data)")
	crawlCmd.Flags().StringVar(&idsFile, "ids", "", "only process identifiers listed in this file, one per line")
	crawlCmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore the checkpoint and process every case")

	// HTTP flags
	crawlCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the detail page cache")
	crawlCmd.Flags().DurationVar(&itemDelay, "delay", 0, "pause after each case (default from config: 2s)")
	crawlCmd.Flags().Float64Var(&rps, "rps", 0, "max requests per second per host (0 = unlimited)")
	crawlCmd.Flags().BoolVar(&robots, "robots", false, "honor robots.txt rules and crawl delays")
	crawlCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
}

// applyFlags lets explicitly set flags win over config and environment
func applyFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("portal") {
		cfg.Portal.Name = portalName
	}
	if flags.Changed("base-url") {
		cfg.Portal.BaseURL = baseURL
	}
	if flags.Changed("output-dir") {
		cfg.Crawl.OutputDir = outputDir
	}
	if flags.Changed("no-resume") {
		cfg.Crawl.Resume = !noResume
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if flags.Changed("delay") {
		cfg.Crawl.ItemDelay = itemDelay
	}
	if flags.Changed("rps") {
		cfg.HTTP.RequestsPerSecond = rps
	}
	if flags.Changed("robots") {
		cfg.Crawl.RespectRobots = robots
	}
	if flags.Changed("insecure") {
		cfg.HTTP.InsecureTLS = insecureTLS
	}
}

// resolvePortal loads the configuration and merges it onto the selected preset
func resolvePortal(cmd *cobra.Command) (*model.Config, model.PortalConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, model.PortalConfig{}, err
	}
	applyFlags(cmd, cfg)

	pcfg, err := portal.NewRegistry().Resolve(cfg.Portal.Name, cfg.Portal)
	if err != nil {
		return nil, model.PortalConfig{}, err
	}
	return cfg, pcfg, nil
}

// newSession builds the transport session for a portal
func newSession(cfg *model.Config, pcfg model.PortalConfig) (*session.Session, error) {
	return session.New(cfg.HTTP,
		session.WithLimiter(worker.NewLimiter(cfg.HTTP.RequestsPerSecond, 1)),
		session.WithCache(cache.New(cfg.Cache)),
		session.WithHeaders(portal.Headers(pcfg)),
	)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, pcfg, err := resolvePortal(cmd)
	if err != nil {
		return err
	}

	// Credentials: flags, then environment, then prompt
	stdin := bufio.NewReader(os.Stdin)
	user := username
	if user == "" {
		user = viper.GetString("username")
	}
	if user == "" {
		if user, err = promptLine(ctx, stdin, os.Stderr, "Username"); err != nil {
			return fmt.Errorf("read username: %w", err)
		}
	}
	pass := password
	if pass == "" {
		pass = viper.GetString("password")
	}
	if pass == "" {
		if pass, err = readPassword(ctx, int(os.Stdin.Fd()), stdin, os.Stderr); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	var only []string
	if idsFile != "" {
		if only, err = worker.ReadIdentifiersFromFile(idsFile); err != nil {
			return err
		}
		if len(only) == 0 {
			return fmt.Errorf("no identifiers in %s", idsFile)
		}
	}

	s, err := newSession(cfg, pcfg)
	if err != nil {
		return err
	}
	flow, err := portal.NewAuthFlow(s, pcfg)
	if err != nil {
		return err
	}
	lister, err := portal.NewLister(s, pcfg)
	if err != nil {
		return err
	}
	extractor, err := portal.NewExtractor(pcfg)
	if err != nil {
		return err
	}

	var store checkpoint.Store = checkpoint.NopStore{}
	if cfg.Crawl.Resume {
		store = checkpoint.NewFileStore(filepath.Join(cfg.Crawl.OutputDir, cfg.Crawl.CheckpointFile))
	}

	orch := pipeline.New(s, flow, lister, extractor, output.NewWriter(cfg.Crawl.OutputDir), store, pipeline.Config{
		Portal:    pcfg.Name,
		Username:  user,
		Password:  pass,
		Solver:    newTerminalSolver(cfg.Crawl.OutputDir, stdin, os.Stderr),
		ItemDelay: pauseAfterItem(cfg.Crawl.ItemDelay),
		OnlyIDs:   only,
	})
	if cfg.Crawl.RespectRobots {
		orch.WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, s.Probe))
	}

	fmt.Fprintf(os.Stderr, "Crawling %s (%s)\n", pcfg.Name, pcfg.BaseURL)
	fmt.Fprintf(os.Stderr, "Output: %s\n", cfg.Crawl.OutputDir)
	fmt.Fprintf(os.Stderr, "Resume: %v\n\n", cfg.Crawl.Resume)

	summary, runErr := orch.Run(ctx)

	switch orch.State() {
	case pipeline.RunDone, pipeline.RunInterrupted:
		reportPath := filepath.Join(cfg.Crawl.OutputDir, cfg.Crawl.ReportFile)
		if err := output.WriteReport(reportPath, summary); err == nil {
			fmt.Fprintf(os.Stderr, "✓ Report written to %s\n", reportPath)
		}
		printSummary(summary)
	}

	if runErr != nil {
		explain(runErr)
		return runErr
	}
	return nil
}

func printSummary(s *model.RunSummary) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "✓ Succeeded:            %d\n", s.Succeeded)
	fmt.Fprintf(os.Stderr, "✗ Failed:               %d\n", s.FailedCount())
	fmt.Fprintf(os.Stderr, "  Previously completed: %d\n", s.Skipped)
	if s.Interrupted {
		fmt.Fprintf(os.Stderr, "\n⚠️  Interrupted; run again to resume\n")
	}
	if s.FailedCount() > 0 {
		fmt.Fprintf(os.Stderr, "\nRetry failures with: casecrawl crawl --ids <file with the failed ids>\n")
	}
}

// explain prints the operator-facing reason of a fatal error
func explain(err error) {
	var authErr *auth.AuthenticationError
	var enumErr *listing.EnumerationError
	var transportErr *session.TransportError

	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.As(err, &authErr):
		fmt.Fprintf(os.Stderr, "✗ Login rejected at %s stage: %s\n", authErr.Stage, authErr.Reason)
	case errors.As(err, &enumErr):
		fmt.Fprintf(os.Stderr, "✗ Case list failed on page %d: %s\n", enumErr.Page, enumErr.Reason)
	case errors.As(err, &transportErr):
		fmt.Fprintf(os.Stderr, "✗ Portal unreachable: %v\n", transportErr)
	}
}

// pauseAfterItem maps a configured delay onto the orchestrator's: zero or less means no pause
func pauseAfterItem(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}
