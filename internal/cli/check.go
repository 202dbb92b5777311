package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/casecrawl/internal/pipeline"
)

var checkTimeout time.Duration

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [url]",
	Short: "Test connectivity to a portal",
	Long: `Check fetches the portal base URL (or the given URL) once, without logging in,
and prints the status, the final URL after redirects and the page title.

Example:
  casecrawl check --portal zmjg --base-url http://10.0.0.5:8080
  casecrawl check https://boot3.jeecg.com/login`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&portalName, "portal", "", "portal preset (see 'casecrawl portals')")
	checkCmd.Flags().StringVar(&baseURL, "base-url", "", "override the preset base URL")
	checkCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "overall check timeout")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	cfg, pcfg, err := resolvePortal(cmd)
	if err != nil {
		return err
	}
	cfg.Cache.Enabled = false

	target := pcfg.BaseURL
	if len(args) == 1 {
		target = args[0]
	}

	s, err := newSession(cfg, pcfg)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n\n", target)
	}

	result, err := pipeline.Check(ctx, s, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Connection failed: %v\n", err)
		return err
	}

	marker := "✓"
	if result.StatusCode >= 400 {
		marker = "✗"
	}
	fmt.Printf("%s %d %s\n", marker, result.StatusCode, result.FinalURL)
	fmt.Printf("  Title:    %s\n", result.Title)
	if result.Encoding != "" {
		fmt.Printf("  Encoding: %s\n", result.Encoding)
	}
	fmt.Printf("  Size:     %d bytes\n", result.Bytes)
	fmt.Printf("  Elapsed:  %s\n", result.Elapsed.Round(time.Millisecond))

	if verbose {
		keys := make([]string, 0, len(result.Headers))
		for k := range result.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, result.Headers[k])
		}
	}

	if result.StatusCode >= 400 {
		return fmt.Errorf("portal answered %d", result.StatusCode)
	}
	return nil
}
