package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knitfamily/knit/pkg/observability"
)

func TestExecuteVersion(t *testing.T) {
	isolate(t)
	require.NoError(t, Execute(context.Background(), []string{"--version"}))
}

func TestExecuteUnknownCommand(t *testing.T) {
	isolate(t)
	assert.Error(t, Execute(context.Background(), []string{"knot"}))
}

func TestVerboseRegistersLogHooks(t *testing.T) {
	isolate(t)
	observability.Reset()
	t.Cleanup(observability.Reset)

	_, err := run(t, "cache", "path")
	require.NoError(t, err)
	_, isLog := observability.Pipeline().(*observability.LogHooks)
	assert.False(t, isLog)

	_, err = run(t, "--verbose", "cache", "path")
	require.NoError(t, err)
	_, isLog = observability.Pipeline().(*observability.LogHooks)
	assert.True(t, isLog)
}
