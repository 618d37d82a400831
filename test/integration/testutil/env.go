package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"interviewdesk/pkg/client"
)

type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
	ServerPort   string
}

func NewTestEnv() *TestEnv {
	mongoURI := getEnv("TEST_MONGO_URI", DefaultMongoURI)
	dbName := getEnv("TEST_DB_NAME", DefaultDatabaseName)
	serverPort := getEnv("TEST_SERVER_PORT", "8080")
	serverURL := getEnv("TEST_SERVER_URL", fmt.Sprintf("http://localhost:%s", serverPort))

	return &TestEnv{
		MongoURI:     mongoURI,
		DatabaseName: dbName,
		ServerURL:    serverURL,
		ServerPort:   serverPort,
	}
}

// Setup waits for the service to come up and empties its ledger. The
// service holds the ledger in memory, so it is cleared through the API
// rather than in the database.
func (e *TestEnv) Setup(t *testing.T) *MongoHelper {
	t.Helper()

	e.WaitForReady(t, DefaultReadyTimeout)
	e.ReleaseAll(t)
	return NewMongoHelper(t, e.MongoURI, e.DatabaseName)
}

func (e *TestEnv) Cleanup(t *testing.T, mongo *MongoHelper) {
	t.Helper()

	e.ReleaseAll(t)
	if mongo != nil {
		mongo.Close(t)
	}
}

func (e *TestEnv) ReleaseAll(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	if _, err := client.NewBookingClient(e.ServerURL).ReleaseAll(ctx); err != nil {
		t.Fatalf("failed to clear ledger: %v", err)
	}
}

func (e *TestEnv) WaitForReady(t *testing.T, timeout time.Duration) {
	t.Helper()

	if err := client.NewHttpClient(e.ServerURL).WaitForHealthy(context.Background(), timeout); err != nil {
		t.Fatalf("service at %s: %v", e.ServerURL, err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

const (
	DefaultReadyTimeout = 3 * ConnectionTimeout
)
