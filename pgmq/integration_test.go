//go:build integration

package pgmq_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/bldxio/aimq"
	"github.com/bldxio/aimq/pgmq"
)

// startPGMQContainer boots a Postgres instance built from an image
// with the PGMQ extension preinstalled, in the style of
// lcgerke-schedCU's NewPostgresTestHelper but using
// testcontainers-go's dedicated postgres module (per rezkam-mono's
// container-per-test convention). The image is expected to run
// "CREATE EXTENSION pgmq;" on initialization (e.g. Tembo's
// pgmq-postgres image); this helper does not install the extension
// itself.
func startPGMQContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"quay.io/tembo/pgmq-pg:latest",
		postgres.WithDatabase("aimq"),
		postgres.WithUsername("aimq"),
		postgres.WithPassword("aimq"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestProvider_SendReadArchiveDelete(t *testing.T) {
	dsn := startPGMQContainer(t)
	provider, err := pgmq.Open(dsn, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const queue = "integration_jobs"
	_, err = provider.CreateQueue(ctx, queue, aimq.CreateQueueOptions{})
	require.NoError(t, err)

	id, err := provider.Send(ctx, queue, map[string]any{"hello": "world"}, nil)
	require.NoError(t, err)
	require.Positive(t, id)

	jobs, err := provider.Read(ctx, queue, 30, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, id, jobs[0].ID)
	require.Equal(t, 1, jobs[0].Attempt)

	ok, err := provider.Archive(ctx, queue, id)
	require.NoError(t, err)
	require.True(t, ok)

	jobs, err = provider.Read(ctx, queue, 30, 10)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestProvider_Pop(t *testing.T) {
	dsn := startPGMQContainer(t)
	provider, err := pgmq.Open(dsn, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const queue = "integration_pop"
	_, err = provider.CreateQueue(ctx, queue, aimq.CreateQueueOptions{})
	require.NoError(t, err)

	_, err = provider.Send(ctx, queue, map[string]any{"n": 1}, nil)
	require.NoError(t, err)

	j, err := provider.Pop(ctx, queue)
	require.NoError(t, err)
	require.NotNil(t, j)
	require.True(t, j.Popped)

	j, err = provider.Pop(ctx, queue)
	require.NoError(t, err)
	require.Nil(t, j)
}

func TestProvider_ListQueues(t *testing.T) {
	dsn := startPGMQContainer(t)
	provider, err := pgmq.Open(dsn, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const queue = "integration_metrics"
	_, err = provider.CreateQueue(ctx, queue, aimq.CreateQueueOptions{})
	require.NoError(t, err)

	infos, err := provider.ListQueues(ctx)
	require.NoError(t, err)

	var found bool
	for _, info := range infos {
		if info.Name == queue {
			found = true
		}
	}
	require.True(t, found)
}

func TestProvider_UnknownQueue(t *testing.T) {
	dsn := startPGMQContainer(t)
	provider, err := pgmq.Open(dsn, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = provider.Read(ctx, "does-not-exist", 30, 1)
	require.Error(t, err)
}
