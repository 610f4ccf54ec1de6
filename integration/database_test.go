//go:build database

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/huangsam/perfscope/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startContainer starts a generic container and returns its host:port for the given port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) (string, string) {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host, mapped.Port()
}

func startRedis(t *testing.T) string {
	t.Helper()
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379")
	return fmt.Sprintf("redis://%s:%s/0", host, port)
}

// TestPerfscopeWithMySQL tests the perfscope CLI with a MySQL backend.
func TestPerfscopeWithMySQL(t *testing.T) {
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "perfscope",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}, "3306")

	exerciseCLI(t, map[string]string{
		"PERFSCOPE_BACKEND":    "mysql",
		"PERFSCOPE_DB_CONNECT": fmt.Sprintf("root:secret123@tcp(%s:%s)/perfscope?parseTime=true", host, port),
	})
}

// TestPerfscopeWithPostgres tests the perfscope CLI with a PostgreSQL backend and
// the redis key-value backend.
func TestPerfscopeWithPostgres(t *testing.T) {
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	exerciseCLI(t, map[string]string{
		"PERFSCOPE_BACKEND":    "postgresql",
		"PERFSCOPE_DB_CONNECT": fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port),
		"PERFSCOPE_KV_BACKEND": "redis",
		"PERFSCOPE_KV_CONNECT": startRedis(t),
	})
}

// TestRedisKVStore runs the shared counter semantics against a real redis.
func TestRedisKVStore(t *testing.T) {
	ctx := context.Background()
	kv, err := kvstore.NewRedis(startRedis(t))
	require.NoError(t, err)
	defer func() { _ = kv.Close() }()

	for want := int64(1); want <= 3; want++ {
		n, err := kv.Incr(ctx, "it:counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	v, ok, err := kv.Get(ctx, "it:counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", string(v))

	n, err := kv.Decr(ctx, "it:counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, kv.Set(ctx, "it:short", []byte("x"), time.Second))
	require.Eventually(t, func() bool {
		_, ok, err := kv.Get(ctx, "it:short")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}
