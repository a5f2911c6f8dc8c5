// ABOUTME: User management commands for creating accounts and printing API keys
// ABOUTME: Auth UI is out of scope; accounts are provisioned from the CLI

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/models"
)

var userName string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create a user account and print its API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := models.NewUser(args[0], userName)
		if err := db.CreateUser(dbConn, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created user %s\n", green("v"), user.Email)
		fmt.Printf("  API key: %s\n", user.APIKey)
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name for the user")
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}
