package supervisor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/allenjsomb/changer/pkg/audit"
	"github.com/allenjsomb/changer/pkg/metrics"
	"github.com/allenjsomb/changer/pkg/rulestore"
	"github.com/allenjsomb/changer/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSupervisor(t *testing.T, rulesYAML string) (*Supervisor, *transport.Set) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(rulesYAML), 0o644))

	store := rulestore.New(path, zap.NewNop())
	ledger, err := audit.Open("")
	require.NoError(t, err)
	set := transport.NewFakeSet()

	sup := New(set, store, ledger, metrics.New(), path, zap.NewNop())
	return sup, set
}

func startSupervisor(t *testing.T, sup *Supervisor) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = sup.Start(ctx)
	}()
	return cancel
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestS1_EchoOfUntransformedMessage(t *testing.T) {
	sup, set := newTestSupervisor(t, `pull_rules: []`)
	cancel := startSupervisor(t, sup)
	defer cancel()

	fakePull := set.Pull.(*transport.FakeSocket)
	fakePub := set.Pub.(*transport.FakeSocket)

	fakePull.Deliver([]byte("sensor.a"), []byte("hello"))

	require.True(t, waitFor(t, time.Second, func() bool {
		return len(fakePub.Sent()) >= 1
	}))

	sent := fakePub.Sent()[0]
	assert.Equal(t, [][]byte{[]byte("sensor.a"), []byte("1"), []byte("hello")}, sent)
}

func TestS2_NamedCaptureExtraction(t *testing.T) {
	sup, set := newTestSupervisor(t, `pull_rules:
  - src: log.in
    regex: "user=(?P<user>\\w+) id=(?P<id>\\d+)"
    dst: log.out
`)
	cancel := startSupervisor(t, sup)
	defer cancel()

	fakePull := set.Pull.(*transport.FakeSocket)
	fakePush := set.Push.(*transport.FakeSocket)

	fakePull.Deliver([]byte("log.in"), []byte("x"), []byte("user=alice id=42"))

	require.True(t, waitFor(t, time.Second, func() bool {
		return len(fakePush.Sent()) >= 1
	}))

	sent := fakePush.Sent()[0]
	require.Len(t, sent, 3)

	var dst string
	require.NoError(t, json.Unmarshal(sent[0], &dst))
	assert.Equal(t, "log.out", dst)
	// The id frame the transform worker relays to PUSH is whatever SUB's
	// middle frame carried, which by the wire protocol (§3/§6) is the
	// ingress pump's assigned sequence number, not the producer's
	// original id frame — that id does not survive the PUB/SUB loopback.
	assert.Equal(t, []byte("1"), sent[1])

	var fields map[string]string
	require.NoError(t, json.Unmarshal(sent[2], &fields))
	assert.Equal(t, map[string]string{"user": "alice", "id": "42"}, fields)
}

// Sequence numbers are assigned serially, strictly increasing, before the
// ingress pump hands a message off to its worker pool — but pool workers
// publish to PUB concurrently, so arrival order at PUB is not guaranteed
// to match assignment order (see the runIngressPump doc comment in
// pump.go). This asserts what invariant 4 actually promises: the set of
// numbers assigned across n accepted messages is exactly {1, ..., n},
// with no duplicate or skipped value — not that they arrive at PUB in
// that order.
func TestInvariant4_AssignedSequenceNumbersAreDenseAndUnique(t *testing.T) {
	sup, set := newTestSupervisor(t, `pull_rules: []`)
	cancel := startSupervisor(t, sup)
	defer cancel()

	fakePull := set.Pull.(*transport.FakeSocket)
	fakePub := set.Pub.(*transport.FakeSocket)

	const n = 5
	for i := 0; i < n; i++ {
		fakePull.Deliver([]byte("sensor.a"), []byte("hello"))
	}

	require.True(t, waitFor(t, time.Second, func() bool {
		return len(fakePub.Sent()) >= n
	}))

	seen := make(map[uint64]bool)
	for _, msg := range fakePub.Sent() {
		require.Len(t, msg, 3)
		seq, err := strconv.ParseUint(string(msg[1]), 10, 64)
		require.NoError(t, err)
		assert.False(t, seen[seq], "sequence number %d assigned more than once", seq)
		seen[seq] = true
	}
	for i := uint64(1); i <= n; i++ {
		assert.True(t, seen[i], "sequence number %d was never assigned", i)
	}
}

func TestS5_HotReloadDropsRuleWithoutRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(`pull_rules:
  - src: log.in
    regex: "user=(?P<user>\\w+)"
    dst: log.out
`), 0o644))

	origInterval := watchInterval
	watchInterval = 20 * time.Millisecond
	defer func() { watchInterval = origInterval }()

	store := rulestore.New(path, zap.NewNop())
	ledger, err := audit.Open("")
	require.NoError(t, err)
	set := transport.NewFakeSet()

	sup := New(set, store, ledger, metrics.New(), path, zap.NewNop())
	cancel := startSupervisor(t, sup)
	defer cancel()

	fakePull := set.Pull.(*transport.FakeSocket)
	fakePush := set.Push.(*transport.FakeSocket)

	fakePull.Deliver([]byte("log.in"), []byte("x"), []byte("user=alice"))
	require.True(t, waitFor(t, time.Second, func() bool {
		return len(fakePush.Sent()) >= 1
	}))

	require.NoError(t, os.WriteFile(path, []byte(`pull_rules: []`), 0o644))
	require.True(t, waitFor(t, 2*time.Second, func() bool {
		return sup.store.Size() == 0
	}))

	fakePull.Deliver([]byte("log.in"), []byte("y"), []byte("user=bob"))
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, fakePush.Sent(), 1, "no further PUSH output once the rule is dropped via hot reload")
}

func TestS3_NonMatchIsNoOp(t *testing.T) {
	sup, set := newTestSupervisor(t, `pull_rules:
  - src: log.in
    regex: "user=(?P<user>\\w+) id=(?P<id>\\d+)"
    dst: log.out
`)
	cancel := startSupervisor(t, sup)
	defer cancel()

	fakePull := set.Pull.(*transport.FakeSocket)
	fakePush := set.Push.(*transport.FakeSocket)

	fakePull.Deliver([]byte("log.in"), []byte("x"), []byte("no match here"))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, fakePush.Sent())
}

func TestS4_FrameUnderflowDrop(t *testing.T) {
	sup, set := newTestSupervisor(t, `pull_rules: []`)
	cancel := startSupervisor(t, sup)
	defer cancel()

	fakePull := set.Pull.(*transport.FakeSocket)
	fakePub := set.Pub.(*transport.FakeSocket)

	fakePull.Deliver([]byte("only-one-frame"))

	require.True(t, waitFor(t, time.Second, func() bool {
		_, dropped := sup.IngressCounts()
		return dropped == 1
	}))
	assert.Empty(t, fakePub.Sent())
}

func TestS6_InvalidRuleRejected(t *testing.T) {
	sup, _ := newTestSupervisor(t, `pull_rules:
  - src: log.in
    regex: "user=\\w+"
`)
	cancel := startSupervisor(t, sup)
	defer cancel()

	require.True(t, waitFor(t, time.Second, func() bool {
		return sup.store.Size() == 0
	}))
}

func TestInvariant5_DropCountingExact(t *testing.T) {
	sup, set := newTestSupervisor(t, `pull_rules: []`)
	cancel := startSupervisor(t, sup)
	defer cancel()

	fakePull := set.Pull.(*transport.FakeSocket)
	fakePull.Deliver([]byte("only-one-frame"))
	fakePull.Deliver([]byte("still-one-frame"))

	require.True(t, waitFor(t, time.Second, func() bool {
		_, dropped := sup.IngressCounts()
		return dropped == 2
	}))
	count, dropped := sup.IngressCounts()
	assert.Equal(t, uint64(0), count)
	assert.Equal(t, uint64(2), dropped)
}

func TestInvariant6_ReservedTagNeverPublished(t *testing.T) {
	sup, set := newTestSupervisor(t, `pull_rules: []`)
	cancel := startSupervisor(t, sup)
	defer cancel()

	fakePull := set.Pull.(*transport.FakeSocket)
	fakePub := set.Pub.(*transport.FakeSocket)

	fakePull.Deliver([]byte("changer.ack"), []byte("msg-id-1"))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, fakePub.Sent())
}

func TestInvariant7_DestinationOmissionSuppressesPush(t *testing.T) {
	sup, set := newTestSupervisor(t, `pull_rules:
  - src: log.in
    regex: "user=(?P<user>\\w+)"
`)
	cancel := startSupervisor(t, sup)
	defer cancel()

	fakePull := set.Pull.(*transport.FakeSocket)
	fakePush := set.Push.(*transport.FakeSocket)

	fakePull.Deliver([]byte("log.in"), []byte("x"), []byte("user=alice"))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, fakePush.Sent())
}
