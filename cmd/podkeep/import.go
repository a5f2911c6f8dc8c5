// ABOUTME: Import command for bulk-subscribing a user from an OPML file
// ABOUTME: Runs the import job synchronously and prints a per-batch summary

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/importer"
	"github.com/harper/podkeep/internal/models"
	"github.com/harper/podkeep/internal/opml"
	"github.com/harper/podkeep/internal/store"
)

var importMarkListened bool

var importCmd = &cobra.Command{
	Use:   "import <email> <opml-file>",
	Short: "Import podcast subscriptions from an OPML file",
	Long: `Parse an OPML export and subscribe the user to every feed in it.
Feeds are fetched in small batches; a feed that fails to fetch is
recorded by title and skipped, it never aborts the rest of the import.

With --mark-listened the imported back catalog is marked listened and
archived, so only episodes published after the import show up in the
user's unlistened feed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, opmlPath := args[0], args[1]

		user, err := db.GetUserByEmail(dbConn, email)
		if err != nil {
			return fmt.Errorf("failed to look up user %s: %w", email, err)
		}

		feeds, err := opml.ParseFile(opmlPath)
		if err != nil {
			return fmt.Errorf("failed to parse OPML: %w", err)
		}
		if len(feeds) == 0 {
			fmt.Println("No feeds found in OPML file")
			return nil
		}

		refs := make([]importer.FeedRef, len(feeds))
		for i, feed := range feeds {
			refs[i] = importer.FeedRef{URL: feed.URL, Title: feed.Title}
		}

		fmt.Printf("Importing %d feeds for %s...\n", len(refs), email)

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		orch := importer.New(dbConn, store.New(dbConn), fetch.FetchPodcast, logger)
		orch.SetBatchSize(cfg.ImportBatchSize)

		job := models.NewImportJob(user.ID, len(refs))
		if err := db.CreateImportJob(dbConn, job); err != nil {
			return fmt.Errorf("failed to create import job: %w", err)
		}
		orch.Process(context.Background(), job, refs, importMarkListened)

		done, err := db.GetImportJob(dbConn, job.ID)
		if err != nil {
			return fmt.Errorf("failed to read import result: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Println()
		fmt.Printf("%s Imported %d of %d feeds\n", green("v"), done.Succeeded, done.Total)
		for _, title := range done.FailedTitles {
			fmt.Printf("  %s %s\n", red("x"), title)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importMarkListened, "mark-listened", false, "mark imported back catalog as listened")
	rootCmd.AddCommand(importCmd)
}
