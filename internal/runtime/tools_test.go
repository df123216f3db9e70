package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"axon/internal/runtime"
)

// TestMain guards the whole package against goroutine leaks: Registry.Invoke
// spawns one goroutine per call to race a tool's own work against the
// mandatory timeout, and a leaked invocation goroutine after a timeout would
// be exactly the kind of bug this catches.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRegistryInvokeReturnsToolValue(t *testing.T) {
	r := runtime.NewRegistry()
	config := map[string]any{"provider": "web"}
	r.Register("Searcher", config, runtime.ModeStub, &runtime.StubTool{Value: "result"})

	res, err := r.Invoke(context.Background(), "Fetch", "Searcher", config, "query", time.Second)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, "result", res.Value)
}

func TestRegistryInvokeUnknownToolIsRuntimeError(t *testing.T) {
	r := runtime.NewRegistry()
	_, err := r.Invoke(context.Background(), "Fetch", "Searcher", map[string]any{}, "query", time.Second)
	require.Error(t, err)
	axonErr, ok := err.(*runtime.Error)
	require.True(t, ok)
	require.Equal(t, runtime.CodeRuntime, axonErr.Code)
}

func TestRegistryInvokeDistinguishesConfigs(t *testing.T) {
	r := runtime.NewRegistry()
	webConfig := map[string]any{"provider": "web"}
	dbConfig := map[string]any{"provider": "db"}
	r.Register("Searcher", webConfig, runtime.ModeStub, &runtime.StubTool{Value: "web-result"})
	r.Register("Searcher", dbConfig, runtime.ModeStub, &runtime.StubTool{Value: "db-result"})

	res, err := r.Invoke(context.Background(), "Fetch", "Searcher", dbConfig, "query", time.Second)
	require.NoError(t, err)
	require.Equal(t, "db-result", res.Value)

	_, _, ok := r.Lookup("Searcher", map[string]any{"provider": "cache"})
	require.False(t, ok)
}

func TestConfigHashStableAcrossKeyOrder(t *testing.T) {
	a := runtime.ConfigHash("Searcher", map[string]any{"provider": "web", "timeout": "10ms"})
	b := runtime.ConfigHash("Searcher", map[string]any{"timeout": "10ms", "provider": "web"})
	require.Equal(t, a, b)
}
