package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/timmy/helloreadme/internal/app"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/repository"
	"github.com/timmy/helloreadme/internal/storage"
)

var errStorageDisabled = errors.New("object storage is not enabled (storage.enabled)")

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show project store statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects by stars",
	Long: `List stored projects, most starred first.

Examples:
  collect list
  collect list --language Rust --min-stars 1000 --limit 50
  collect list --topic cli`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project and its vector",
	Args:  cobra.MatchAll(cobra.ExactArgs(1), projectIDArg),
	RunE:  runDelete,
}

var backupCmd = &cobra.Command{
	Use:   "backup <path>",
	Short: "Write a consistent copy of the sqlite database",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Replace the sqlite database with a backup",
	Long: `Replace the sqlite database with a backup file.

With --from-storage the backup is first downloaded from object storage to <path>.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export all projects as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import projects from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	listCmd.Flags().Int("limit", 20, "Maximum projects to list")
	listCmd.Flags().String("language", "", "Only list projects in this language")
	listCmd.Flags().Int("min-stars", 0, "Only list projects with at least this many stars")
	listCmd.Flags().String("topic", "", "Only list projects tagged with this topic")

	backupCmd.Flags().Bool("upload", false, "Upload the backup to object storage")
	exportCmd.Flags().Bool("upload", false, "Upload the export to object storage")
	restoreCmd.Flags().String("from-storage", "", "Object storage key to download before restoring")
}

func runStats(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		stats, err := a.Store.Stats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Projects:      %s\n", humanize.Comma(stats.TotalProjects))
		if stats.LatestCollection != nil {
			fmt.Printf("Last collect:  %s (%s)\n",
				stats.LatestCollection.Local().Format(time.DateTime), humanize.Time(*stats.LatestCollection))
		} else {
			fmt.Println("Last collect:  never")
		}
		fmt.Printf("Database size: %s\n", humanize.Bytes(uint64(stats.DatabaseSize)))

		if len(stats.Languages) > 0 {
			langs := make([]string, 0, len(stats.Languages))
			for l := range stats.Languages {
				langs = append(langs, l)
			}
			sort.Slice(langs, func(i, j int) bool {
				if stats.Languages[langs[i]] != stats.Languages[langs[j]] {
					return stats.Languages[langs[i]] > stats.Languages[langs[j]]
				}
				return langs[i] < langs[j]
			})

			fmt.Println("\nLanguages:")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, l := range langs {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", l, humanize.Comma(stats.Languages[l]))
			}
			_ = w.Flush()
		}

		topics, err := a.Store.TopicStats(ctx)
		if err != nil {
			return err
		}
		if top := domain.TopTopics(topics, 10); len(top) > 0 {
			fmt.Println("\nTop topics:")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, t := range top {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", t.Topic, humanize.Comma(t.Count))
			}
			_ = w.Flush()
		}
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	language, _ := cmd.Flags().GetString("language")
	minStars, _ := cmd.Flags().GetInt("min-stars")
	topic, _ := cmd.Flags().GetString("topic")
	if topic != "" && (language != "" || minStars > 0) {
		return errors.New("--topic cannot be combined with --language or --min-stars")
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		var (
			projects []domain.Project
			err      error
		)
		if topic != "" {
			projects, err = a.Store.ListByTopic(ctx, topic, limit)
		} else {
			projects, err = a.Store.List(ctx, domain.ListFilter{
				Limit:    limit,
				Language: language,
				MinStars: minStars,
			})
		}
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tLANGUAGE\tSTARS\tFORKS\tSTATUS\tUPDATED")
		for _, p := range projects {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				p.FullName, p.Language, humanize.Comma(int64(p.Stars)), humanize.Comma(int64(p.Forks)),
				p.Status(), humanize.Time(p.UpdatedAt))
		}
		return w.Flush()
	})
}

func projectIDArg(cmd *cobra.Command, args []string) error {
	if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
		return fmt.Errorf("project id must be an integer, got %q", args[0])
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, _ := strconv.ParseInt(args[0], 10, 64)

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		p, err := a.Store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := a.Vectorizer.Remove(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted %s (id %d)\n", p.FullName, id)
		return nil
	})
}

func runBackup(cmd *cobra.Command, args []string) error {
	upload, _ := cmd.Flags().GetBool("upload")
	path := args[0]

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if upload && a.Artifacts == nil {
			return errStorageDisabled
		}
		if err := a.Store.Backup(ctx, path); err != nil {
			return err
		}
		fmt.Printf("Backup written to %s\n", path)

		if upload {
			key, err := a.Artifacts.UploadFile(ctx, storage.KindBackup, path, "application/vnd.sqlite3")
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded to %s\n", a.Artifacts.Location(key))
		}
		return nil
	})
}

func runRestore(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("from-storage")
	path := args[0]

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if key != "" {
			if a.Artifacts == nil {
				return errStorageDisabled
			}
			if err := a.Artifacts.DownloadFile(ctx, key, path); err != nil {
				return err
			}
			fmt.Printf("Downloaded %s to %s\n", a.Artifacts.Location(key), path)
		}
		if err := a.Store.Restore(ctx, path); err != nil {
			return err
		}
		fmt.Printf("Database restored from %s\n", path)
		return nil
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	upload, _ := cmd.Flags().GetBool("upload")
	path := args[0]

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if upload && a.Artifacts == nil {
			return errStorageDisabled
		}

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		n, err := repository.ExportJSON(ctx, a.Store, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d projects to %s\n", n, path)

		if upload {
			key, err := a.Artifacts.UploadFile(ctx, storage.KindExport, path, "application/json")
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded to %s\n", a.Artifacts.Location(key))
		}
		return nil
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()

		res, err := repository.ImportJSON(ctx, a.Store, f)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %s: %d new, %d updated, %d failed\n", path, res.New, res.Updated, res.Failed)
		for _, e := range res.Errors {
			fmt.Printf("  - %s\n", e)
		}
		return nil
	})
}
