package credentials_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiive-relay/internal/credentials"
	relay_errors "hiive-relay/pkg/errors"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	s := credentials.NewMemoryStore()
	ctx := context.Background()

	_, err := s.Token(ctx)
	assert.ErrorIs(t, err, relay_errors.ErrNoCredential)

	require.NoError(t, s.SetToken(ctx, "tok"))
	token, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	require.NoError(t, s.DeleteToken(ctx))
	_, err = s.Token(ctx)
	assert.ErrorIs(t, err, relay_errors.ErrNoCredential)

	// Deleting an absent token is not an error.
	assert.NoError(t, s.DeleteToken(ctx))
}
