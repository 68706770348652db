package credentials

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGateIsNoOpWhenUnconfigured(t *testing.T) {
	require.False(t, AdminPasswordConfigured())
	require.True(t, CheckAdminPassword(""))
	require.True(t, CheckAdminPassword("anything"))
}
