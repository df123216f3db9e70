package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"axon/internal/runtime"
)

func TestRegisterMCPToolSkipsWhenUnconfigured(t *testing.T) {
	r := runtime.NewRegistry()
	err := runtime.RegisterMCPTool(context.Background(), r, "web_search", nil, runtime.MCPServerConfig{
		Name: "search",
	})
	require.Error(t, err)

	_, _, ok := r.Lookup("web_search", nil)
	require.False(t, ok)
}

func TestRegisterMCPToolFailsOnUnknownTransport(t *testing.T) {
	r := runtime.NewRegistry()
	err := runtime.RegisterMCPTool(context.Background(), r, "web_search", nil, runtime.MCPServerConfig{
		Name:      "search",
		Transport: "carrier-pigeon",
		Command:   "does-not-matter",
	})
	require.Error(t, err)

	_, _, ok := r.Lookup("web_search", nil)
	require.False(t, ok)
}
