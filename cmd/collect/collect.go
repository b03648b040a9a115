package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/timmy/helloreadme/internal/app"
	"github.com/timmy/helloreadme/internal/domain"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Collect repositories matching a search query",
	Long: `Walk the GitHub repository search results and store every match.

Examples:
  collect search                                  # Configured default query
  collect search --query "stars:>5000" --language Go
  collect search --sort updated --max-repos 200`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

var userCmd = &cobra.Command{
	Use:   "user <username>",
	Short: "Collect the public repositories of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUser,
}

var orgCmd = &cobra.Command{
	Use:   "org <organization>",
	Short: "Collect the public repositories of an organization",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrg,
}

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Show the current GitHub API rate limits",
	Args:  cobra.NoArgs,
	RunE:  runRateLimit,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(rateLimitCmd)

	searchCmd.Flags().String("query", "", "Search query (defaults to github.search_query)")
	searchCmd.Flags().String("language", "", "Restrict results to a language")
	searchCmd.Flags().String("sort", "stars", "Sort key: stars, forks or updated")
	searchCmd.Flags().String("order", "desc", "Sort order: asc or desc")
	searchCmd.Flags().Int("max-repos", 0, "Maximum repositories to collect (0 uses the configured default)")

	for _, c := range []*cobra.Command{userCmd, orgCmd} {
		c.Flags().Bool("include-forks", false, "Also collect forked repositories")
		c.Flags().Int("max-repos", 0, "Maximum repositories to collect (0 uses the configured default)")
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	language, _ := cmd.Flags().GetString("language")
	sortBy, _ := cmd.Flags().GetString("sort")
	order, _ := cmd.Flags().GetString("order")
	maxRepos, _ := cmd.Flags().GetInt("max-repos")

	return runCollection(cmd, domain.CollectRequest{
		Type:     domain.CollectionTypeSearch,
		Query:    query,
		Language: language,
		Sort:     sortBy,
		Order:    order,
		MaxRepos: maxRepos,
	})
}

func runUser(cmd *cobra.Command, args []string) error {
	forks, _ := cmd.Flags().GetBool("include-forks")
	maxRepos, _ := cmd.Flags().GetInt("max-repos")
	return runCollection(cmd, domain.CollectRequest{
		Type:         domain.CollectionTypeUser,
		Username:     args[0],
		IncludeForks: forks,
		MaxRepos:     maxRepos,
	})
}

func runOrg(cmd *cobra.Command, args []string) error {
	forks, _ := cmd.Flags().GetBool("include-forks")
	maxRepos, _ := cmd.Flags().GetInt("max-repos")
	return runCollection(cmd, domain.CollectRequest{
		Type:         domain.CollectionTypeOrg,
		Org:          args[0],
		IncludeForks: forks,
		MaxRepos:     maxRepos,
	})
}

// runCollection runs req until it finishes or the process is interrupted.
// An interrupted run still flushes what it collected.
func runCollection(cmd *cobra.Command, req domain.CollectRequest) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		start := time.Now()
		res := a.Collector.Collect(ctx, req)
		printCollectionResult(res, time.Since(start))
		if !res.Success {
			return fmt.Errorf("collection failed: %s", res.Message)
		}
		return nil
	})
}

func printCollectionResult(res domain.CollectionResult, elapsed time.Duration) {
	fmt.Printf("%s\n", res.Message)
	fmt.Printf("  Collected: %d\n", res.TotalCollected)
	fmt.Printf("  New:       %d\n", res.NewProjects)
	fmt.Printf("  Updated:   %d\n", res.UpdatedProjects)
	fmt.Printf("  Duration:  %s\n", elapsed.Round(time.Millisecond))
	if len(res.Errors) > 0 {
		fmt.Printf("  Errors (%d):\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}

func runRateLimit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		limits, err := a.Collector.RateLimits(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("core:   %d/%d (resets %s)\n", limits.Core.Remaining, limits.Core.Limit, limits.Core.Reset.Local().Format(time.Kitchen))
		fmt.Printf("search: %d/%d (resets %s)\n", limits.Search.Remaining, limits.Search.Limit, limits.Search.Reset.Local().Format(time.Kitchen))
		return nil
	})
}
