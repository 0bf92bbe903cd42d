package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newQueueRepoMock(t *testing.T) (*QueueRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueueRepository(client), mr
}

func TestQueueRepositoryPublishOrder(t *testing.T) {
	repo, mr := newQueueRepoMock(t)
	ctx := context.Background()

	require.NoError(t, repo.Publish(ctx, TopicRegistrations, "Enrollment ID: enr-1, Student: Maria Silva, Section: 5A"))
	require.NoError(t, repo.Publish(ctx, TopicRegistrations, "Enrollment ID: enr-2, Student: Joao Santos, Section: 5A"))

	messages, err := mr.List(TopicRegistrations)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Contains(t, messages[0], "enr-1")
	require.Contains(t, messages[1], "enr-2")
}

func TestQueueRepositoryDepth(t *testing.T) {
	repo, _ := newQueueRepoMock(t)
	ctx := context.Background()

	depth, err := repo.Depth(ctx, TopicCancellations)
	require.NoError(t, err)
	require.Zero(t, depth)

	require.NoError(t, repo.Publish(ctx, TopicCancellations, "Cancellation ID: enr-1, Student: Maria Silva, Reason: moved"))
	require.NoError(t, repo.Publish(ctx, TopicCancellations, "Cancellation ID: enr-2, Student: Joao Santos, Reason: transfer"))

	depth, err = repo.Depth(ctx, TopicCancellations)
	require.NoError(t, err)
	require.Equal(t, int64(2), depth)
}

func TestQueueRepositoryTopicsAreIsolated(t *testing.T) {
	repo, _ := newQueueRepoMock(t)
	ctx := context.Background()

	require.NoError(t, repo.Publish(ctx, TopicRegistrations, "r-1"))
	require.NoError(t, repo.Publish(ctx, TopicCancellations, "c-1"))
	require.NoError(t, repo.Publish(ctx, TopicCancellations, "c-2"))

	registrations, err := repo.Depth(ctx, TopicRegistrations)
	require.NoError(t, err)
	cancellations, err := repo.Depth(ctx, TopicCancellations)
	require.NoError(t, err)
	require.Equal(t, int64(1), registrations)
	require.Equal(t, int64(2), cancellations)
}

func TestQueueRepositoryNilClient(t *testing.T) {
	repo := NewQueueRepository(nil)

	require.Error(t, repo.Publish(context.Background(), TopicRegistrations, "x"))
	_, err := repo.Depth(context.Background(), TopicRegistrations)
	require.Error(t, err)
}
