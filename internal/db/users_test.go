// ABOUTME: Tests for user database operations
// ABOUTME: Covers API key lookup and the account deletion cascade

package db

import (
	"errors"
	"testing"
	"time"

	"github.com/harper/podkeep/internal/models"
)

func TestCreateAndGetUser(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	user := models.NewUser("a@example.com", "Alice")
	if err := CreateUser(conn, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := GetUserByEmail(conn, "a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected ID %s, got %s", user.ID, got.ID)
	}
	if got.APIKey == "" {
		t.Error("expected a generated API key")
	}
	if got.NotifyOnNewEpisodes {
		t.Error("new user should have notifications off by default")
	}
}

func TestGetUserByAPIKey(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	user := createTestUser(t, conn, "a@example.com")

	got, err := GetUserByAPIKey(conn, user.APIKey)
	if err != nil {
		t.Fatalf("GetUserByAPIKey failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected ID %s, got %s", user.ID, got.ID)
	}

	if _, err := GetUserByAPIKey(conn, "bogus-key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for bogus key, got %v", err)
	}
}

func TestSetUserNotifyPreference(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	user := createTestUser(t, conn, "a@example.com")

	if err := SetUserNotifyPreference(conn, user.ID, true); err != nil {
		t.Fatalf("SetUserNotifyPreference failed: %v", err)
	}

	got, _ := GetUserByID(conn, user.ID)
	if !got.NotifyOnNewEpisodes {
		t.Error("expected notifications enabled")
	}
}

func TestDeleteUserCascades(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	user := createTestUser(t, conn, "a@example.com")
	podcast := createTestPodcast(t, conn, "https://example.com/feed.xml")
	_ = CreateSubscription(conn, models.NewSubscription(user.ID, podcast.ID))
	episode := models.NewEpisode(podcast.ID, "g", "Ep", "https://example.com/1.mp3", time.Now())
	_ = CreateEpisode(conn, episode)
	_ = CreateListenedMark(conn, models.NewListenedMark(user.ID, episode.ID))

	if err := DeleteUser(conn, user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	if _, err := GetSubscription(conn, user.ID, podcast.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected subscription deleted, got %v", err)
	}
	exists, _ := ListenedMarkExists(conn, user.ID, episode.ID)
	if exists {
		t.Error("expected listened marks deleted with user")
	}
	// The podcast row itself survives; orphan reaping is the store's job
	if _, err := GetPodcastByID(conn, podcast.ID); err != nil {
		t.Errorf("podcast should survive user deletion: %v", err)
	}
}
