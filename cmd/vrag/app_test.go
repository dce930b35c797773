package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckVectorStoreType(t *testing.T) {
	require.Error(t, checkVectorStoreType("memory"))
	require.Error(t, checkVectorStoreType(" Memory "))
	require.NoError(t, checkVectorStoreType("opensearch"))
	require.NoError(t, checkVectorStoreType("pgvector"))
}
