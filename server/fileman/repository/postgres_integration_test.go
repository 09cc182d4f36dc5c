package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"filevault/server/common/infra/db"
	"filevault/server/fileman/domain"
	"filevault/server/fileman/query"
)

// setupPostgres starts a disposable Postgres and applies the migrations.
// Runs only with TEST_INTEGRATION set.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("filevault_test"),
		postgres.WithUsername("filevault"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(dsn))

	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresFileRepository(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	files := NewFileRepository(pool)

	ann, err := users.CreateIfAbsent(ctx, domain.User{Email: "ann@example.com", FullName: "Ann Lee"})
	require.NoError(t, err)
	again, err := users.CreateIfAbsent(ctx, domain.User{Email: "ann@example.com", FullName: "Someone Else"})
	require.NoError(t, err)
	assert.Equal(t, ann.ID, again.ID)

	photo, err := files.Create(ctx, domain.FileRecord{
		Name: "50%_Trip.PNG", Extension: "png", Category: domain.CategoryImage,
		ObjectKey: "files/" + ann.ID + "/1.png", Size: 2048, OwnerID: ann.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, photo.Owner)
	assert.Equal(t, "Ann Lee", photo.Owner.FullName)

	_, err = files.Create(ctx, domain.FileRecord{
		Name: "notes.txt", Extension: "txt", Category: domain.CategoryDocument,
		ObjectKey: "files/other/2.txt", Size: 10, OwnerID: "someone-else",
		SharedWith: []string{"ann@example.com"},
	})
	require.NoError(t, err)
	_, err = files.Create(ctx, domain.FileRecord{
		Name: "secret.txt", Extension: "txt", Category: domain.CategoryDocument,
		ObjectKey: "files/other/3.txt", Size: 10, OwnerID: "someone-else",
	})
	require.NoError(t, err)

	caller := domain.Identity{UserID: ann.ID, Email: ann.Email}

	plan, err := query.Build(caller, query.Request{Sort: "name-asc"})
	require.NoError(t, err)
	visible, err := files.Query(ctx, plan)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "50%_Trip.PNG", visible[0].Name)
	assert.Equal(t, "notes.txt", visible[1].Name)

	plan, err = query.Build(caller, query.Request{SearchText: "%_t", Categories: []domain.Category{domain.CategoryImage}})
	require.NoError(t, err)
	found, err := files.Query(ctx, plan)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, photo.ID, found[0].ID)

	shared := []string{"bob@example.com"}
	updated, err := files.Update(ctx, photo.ID, domain.FilePatch{SharedWith: &shared})
	require.NoError(t, err)
	assert.Equal(t, shared, updated.SharedWith)
	assert.False(t, updated.UpdatedAt.Before(photo.UpdatedAt))

	_, err = files.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, files.Delete(ctx, photo.ID))
	assert.ErrorIs(t, files.Delete(ctx, photo.ID), domain.ErrNotFound)

	owned, err := files.ListByOwner(ctx, "someone-else")
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}
