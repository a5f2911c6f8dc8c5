// ABOUTME: Refresh command for a one-shot re-fetch of all podcast feeds
// ABOUTME: Prints per-feed results with colored progress output

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
	"github.com/harper/podkeep/internal/notify"
	"github.com/harper/podkeep/internal/refresh"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh all podcast feeds once",
	Long: `Re-fetch every known podcast feed, store new episodes, archive
episodes that vanished from their source feeds, and send notifications
to eligible subscribers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

		podcasts, err := db.ListPodcasts(dbConn)
		if err != nil {
			return fmt.Errorf("failed to list podcasts: %w", err)
		}
		if len(podcasts) == 0 {
			fmt.Println("No podcasts found. Add one with 'podkeep add <email> <url>'")
			return nil
		}

		sender := notify.NewSender(cfg.EmailProviderFactory(), logger)
		refresher := refresh.New(dbConn, fetch.FetchPodcast, sender, logger)

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		refreshed := 0
		failed := 0
		for _, podcast := range podcasts {
			fmt.Printf("Refreshing %s... ", podcast.Title)
			if err := refresher.RefreshPodcast(context.Background(), podcast); err != nil {
				fmt.Printf("%s %s\n", red("x"), err.Error())
				failed++
				continue
			}
			fmt.Printf("%s\n", green("v"))
			refreshed++
		}

		fmt.Println()
		fmt.Printf("Summary: %d refreshed", refreshed)
		if failed > 0 {
			fmt.Printf(", %s", red(fmt.Sprintf("%d failed", failed)))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
