//go:build integration

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("spokies"),
		tcpostgres.WithUsername("spokies"),
		tcpostgres.WithPassword("spokies"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	open := func(t *testing.T) *PostgresStore {
		// Each subtest gets its own schema so data never leaks between them.
		schema := "t_" + uuid.NewString()[:8]
		admin, err := sql.Open("postgres", dsn)
		require.NoError(t, err)
		_, err = admin.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
		require.NoError(t, err)
		require.NoError(t, admin.Close())

		db, err := sql.Open("postgres", dsn+"&search_path="+schema)
		require.NoError(t, err)
		s := NewPostgresStore(db)
		require.NoError(t, s.Migrate(ctx))
		t.Cleanup(func() { _ = s.Close(ctx) })
		return s
	}

	runStoreSuite(t, func(t *testing.T) Store { return open(t) })

	t.Run("deleting a user keeps its history", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateUser(ctx, newUser(1)))
		require.NoError(t, s.CreateUser(ctx, newUser(2)))
		appendInteraction(t, s, "i1", "user-01", "user-02", models.ActionLike, base)
		chat := &models.ChatRoom{
			ChatID:          "chat-1",
			Participants:    []string{"user-01", "user-02"},
			PairKey:         models.PairKey("user-01", "user-02"),
			CreatedAt:       base,
			LastMessageTime: base,
		}
		require.NoError(t, s.CreateChat(ctx, chat))

		_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, "user-01")
		require.NoError(t, err)

		received, err := s.InteractionsReceived(ctx, "user-02", models.PositiveActions)
		require.NoError(t, err)
		assert.Len(t, received, 1)
		_, err = s.GetChat(ctx, "chat-1")
		assert.NoError(t, err)
	})
}

// TestMongoStore runs against MONGO_TEST_URI, e.g. mongodb://localhost:27017.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	runStoreSuite(t, func(t *testing.T) Store {
		db := client.Database("spokies_test_" + uuid.NewString()[:8])
		t.Cleanup(func() { _ = db.Drop(ctx) })
		s := NewMongoStore(client, db)
		require.NoError(t, s.EnsureIndexes(ctx))
		return s
	})
}
