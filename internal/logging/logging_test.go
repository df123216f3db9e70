package logging_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"axon/internal/logging"
)

func TestGetBeforeInitReturnsUsableLogger(t *testing.T) {
	l := logging.Get(logging.CategoryParse)
	require.NotNil(t, l)
}

func TestInitThenGetReturnsNamedLogger(t *testing.T) {
	_, err := logging.Init(true, false)
	require.NoError(t, err)

	a := logging.Get(logging.CategoryCheck)
	b := logging.Get(logging.CategoryCheck)
	require.Same(t, a, b)

	other := logging.Get(logging.CategoryExec)
	require.NotSame(t, a, other)

	logging.Sync()
}
