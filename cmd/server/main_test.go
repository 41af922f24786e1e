package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropchain/yield-exchange/internal/config"
	"github.com/cropchain/yield-exchange/internal/store"
)

func TestRun_ReturnsStoreError(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "postgres://%zz", DatabaseMaxConns: 5}

	err := run(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store initialization failed")
}

func TestOpenStore_DefaultsToMemory(t *testing.T) {
	st, cleanup, err := openStore(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.Empty(t, cleanup)
	assert.IsType(t, &store.MemoryStore{}, st)
}
