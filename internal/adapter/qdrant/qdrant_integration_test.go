//go:build integration

package qdrant

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ragqa/internal/port"
)

func TestIndex_AgainstQdrant(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "qdrant/qdrant:v1.12.4",
			ExposedPorts: []string{"6333/tcp"},
			WaitingFor:   wait.ForHTTP("/readyz").WithPort("6333/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "6333")
	require.NoError(t, err)

	idx := New(Config{URL: fmt.Sprintf("http://%s:%s", host, mapped.Port())})
	require.NoError(t, idx.CreateCollection(ctx, "it_docs", 3))

	require.NoError(t, idx.Upsert(ctx, "it_docs", []port.IndexEntry{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]string{port.PayloadText: "a"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Payload: map[string]string{port.PayloadText: "b"}},
	}))

	hits, err := idx.Search(ctx, "it_docs", []float32{0.9, 0.1, 0}, 4)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
}
