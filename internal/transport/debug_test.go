package transport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiive-relay/internal/transport"
)

func TestDebugSinkAcceptsEverything(t *testing.T) {
	sink := transport.NewDebugSink(testLogger())
	events := makeEvents(3)

	result, err := sink.Deliver(context.Background(), events)
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 3)
	assert.Empty(t, result.Failed)
}
