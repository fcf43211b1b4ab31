package database

import (
	"context"
	"net/http"
	"testing"
	"time"

	"loyalty-notify/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	opts := redisOptions(config.RedisConfig{
		Address:      "cache:6379",
		DB:           2,
		PoolSize:     40,
		MinIdleConns: 4,
		DialTimeout:  1500,
		IOTimeout:    250,
	})

	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 40, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, 1500*time.Millisecond, opts.DialTimeout)
	assert.Equal(t, 250*time.Millisecond, opts.ReadTimeout)
	assert.Equal(t, 250*time.Millisecond, opts.WriteTimeout)
}

func TestNewRedis(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	assert.NoError(t, client.Ping(context.Background()))
	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestConfigurePool(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	configurePool(db, config.PostgresConfig{MaxConnections: 7, MaxIdle: 3, ConnLifetime: 60000})
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)

	mock.ExpectPing()
	client := &PostgresClient{DB: db}
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestElasticsearchConfig(t *testing.T) {
	cfg := elasticsearchConfig(config.ElasticsearchConfig{
		Addresses:  []string{"http://es:9200"},
		Username:   "notify",
		Password:   "secret",
		MaxRetries: 4,
		Timeout:    3000,
	})

	assert.Equal(t, []string{"http://es:9200"}, cfg.Addresses)
	assert.Equal(t, "notify", cfg.Username)
	assert.Equal(t, 4, cfg.MaxRetries)
	transport, ok := cfg.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, transport.ResponseHeaderTimeout)

	_, err := NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)
}
