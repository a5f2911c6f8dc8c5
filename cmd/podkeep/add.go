// ABOUTME: Add command subscribing a user to a feed URL
// ABOUTME: Falls back to feed discovery when the URL is not itself a feed

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/discover"
	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/reconcile"
	"github.com/harper/podkeep/internal/store"
)

var addCmd = &cobra.Command{
	Use:   "add <email> <url>",
	Short: "Subscribe a user to a podcast feed",
	Long: `Fetch the feed at the given URL, store its episodes, and subscribe
the user. If the URL is a web page rather than a feed, discovery is
attempted via <link rel="alternate"> headers and common feed paths.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, feedURL := args[0], args[1]
		ctx := context.Background()

		user, err := db.GetUserByEmail(dbConn, email)
		if err != nil {
			return fmt.Errorf("failed to look up user %s: %w", email, err)
		}

		feed, err := fetch.FetchPodcast(ctx, feedURL)
		if err != nil {
			// Maybe it's a web page; try to discover the feed behind it
			found, discoverErr := discover.Discover(ctx, feedURL)
			if discoverErr != nil {
				return fmt.Errorf("failed to fetch feed: %w", err)
			}
			feedURL = found.URL
			feed, err = fetch.FetchPodcast(ctx, feedURL)
			if err != nil {
				return fmt.Errorf("failed to fetch discovered feed: %w", err)
			}
		}

		result, err := reconcile.Reconcile(dbConn, feedURL, feed, false)
		if err != nil {
			return fmt.Errorf("failed to store feed: %w", err)
		}

		if err := store.New(dbConn).Subscribe(user.ID, result.Podcast.ID); err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Subscribed %s to %q (%d episodes)\n",
			green("v"), email, result.Podcast.Title, len(feed.Episodes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
