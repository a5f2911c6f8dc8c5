// ABOUTME: Export command writing a user's subscriptions as OPML
// ABOUTME: Writes to stdout or a file for use with other podcast apps

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/opml"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <email>",
	Short: "Export a user's subscriptions as OPML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]

		user, err := db.GetUserByEmail(dbConn, email)
		if err != nil {
			return fmt.Errorf("failed to look up user %s: %w", email, err)
		}

		podcasts, err := db.ListPodcastsForUser(dbConn, user.ID)
		if err != nil {
			return fmt.Errorf("failed to list subscriptions: %w", err)
		}

		feeds := make([]opml.Feed, len(podcasts))
		for i, podcast := range podcasts {
			feeds[i] = opml.Feed{URL: podcast.RSSURL, Title: podcast.Title}
		}

		out := os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		if err := opml.Write(out, "podkeep subscriptions", feeds); err != nil {
			return fmt.Errorf("failed to write OPML: %w", err)
		}

		if exportOutput != "" {
			fmt.Fprintf(os.Stderr, "Wrote %d feeds to %s\n", len(feeds), exportOutput)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}
