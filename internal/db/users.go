// ABOUTME: User database operations
// ABOUTME: Lookup by ID, email, or API key plus notification preference updates

package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/harper/podkeep/internal/models"
)

const userColumns = "id, email, name, api_key, notify_on_new_episodes, created_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.APIKey, &u.NotifyOnNewEpisodes, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func CreateUser(db *sql.DB, user *models.User) error {
	_, err := db.Exec(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.APIKey, user.NotifyOnNewEpisodes, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func GetUserByID(db *sql.DB, id string) (*models.User, error) {
	user, err := scanUser(db.QueryRow(`
		SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func GetUserByEmail(db *sql.DB, email string) (*models.User, error) {
	user, err := scanUser(db.QueryRow(`
		SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func GetUserByAPIKey(db *sql.DB, apiKey string) (*models.User, error) {
	user, err := scanUser(db.QueryRow(`
		SELECT `+userColumns+` FROM users WHERE api_key = ?`, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetUserNotifyPreference updates the account-level notification flag.
func SetUserNotifyPreference(db *sql.DB, userID string, enabled bool) error {
	_, err := db.Exec(`
		UPDATE users SET notify_on_new_episodes = ? WHERE id = ?`,
		enabled, userID)
	if err != nil {
		return fmt.Errorf("failed to update notify preference: %w", err)
	}
	return nil
}

func DeleteUser(db *sql.DB, id string) error {
	_, err := db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
