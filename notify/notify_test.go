package notify

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatPayloadIncludesEventAndAttrs(t *testing.T) {
	payload := formatPayload("image:set-pending", map[string]string{"image": "0"})
	require.Contains(t, string(payload), "image:set-pending")
	require.Contains(t, string(payload), "image=0")
}

func TestRandomSuffixIsHexAndVaries(t *testing.T) {
	a := randomSuffix()
	b := randomSuffix()
	require.Len(t, a, 8)
	require.NotEqual(t, a, b)
}

// TestNotifyDoesNotBlockCaller dials a broker address nothing is
// listening on; the handler-facing Notify call must return immediately
// regardless of how long the doomed connection attempt takes.
func TestNotifyDoesNotBlockCaller(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close()) // nothing will accept connections here

	n := NewMQTTNotifier(Config{BrokerAddr: addr, DialTimeout: 200 * time.Millisecond}, nil)

	start := time.Now()
	n.Notify("upload:complete", map[string]string{"image": "0"})
	require.Less(t, time.Since(start), 50*time.Millisecond)
}
