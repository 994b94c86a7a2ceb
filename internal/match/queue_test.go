// internal/match/queue_test.go
package match

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/events"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/models"
)

// mockPublisher records unicasts and lets tests mark identities dead.
type mockPublisher struct {
	mu       sync.Mutex
	unicasts map[string][]events.Event
	dead     map[string]bool
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{
		unicasts: make(map[string][]events.Event),
		dead:     make(map[string]bool),
	}
}

func (m *mockPublisher) Broadcast(roomID string, ev events.Event) {}

func (m *mockPublisher) Unicast(identity string, ev events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unicasts[identity] = append(m.unicasts[identity], ev)
}

func (m *mockPublisher) Probe(identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dead[identity] {
		return events.ErrSubscriberGone
	}
	return nil
}

func (m *mockPublisher) markDead(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead[identity] = true
}

func (m *mockPublisher) matchFor(identity string) (events.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.unicasts[identity] {
		if ev.Type == events.EventMatchFound {
			return ev, true
		}
	}
	return events.Event{}, false
}

type stubMembers struct{}

func (stubMembers) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	return &models.Member{Email: email, Name: "name-" + email}, nil
}

func (stubMembers) IncrementStreak(ctx context.Context, email string, amount int) error {
	return nil
}

func newTestQueue() (*Queue, *mockPublisher, *[][]string) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	pub := newMockPublisher()
	q := NewQueue(logger, pub, stubMembers{})

	matches := &[][]string{}
	q.OnMatch = func(roomID string, players []string) {
		*matches = append(*matches, players)
	}
	return q, pub, matches
}

func TestEnqueueRejectsDuplicates(t *testing.T) {
	q, _, _ := newTestQueue()

	require.NoError(t, q.Enqueue("x@x"))
	assert.ErrorIs(t, q.Enqueue("x@x"), ErrAlreadyQueued)
	assert.True(t, q.Queued("x@x"))
}

func TestEnqueuePairsOpportunistically(t *testing.T) {
	q, pub, matches := newTestQueue()

	require.NoError(t, q.Enqueue("x@x"))
	assert.Empty(t, *matches, "a lone entrant waits")

	require.NoError(t, q.Enqueue("y@x"))
	require.Len(t, *matches, 1, "the second enqueue completes the pair")
	assert.Equal(t, []string{"x@x", "y@x"}, (*matches)[0])
	assert.Equal(t, 0, q.Len())

	// Both sides get MATCH_FOUND with the same room and the other's profile.
	evX, ok := pub.matchFor("x@x")
	require.True(t, ok)
	evY, ok := pub.matchFor("y@x")
	require.True(t, ok)
	assert.Equal(t, evX.Payload["roomID"], evY.Payload["roomID"])

	opponent, ok := evX.Payload["opponent"].(*models.Member)
	require.True(t, ok)
	assert.Equal(t, "y@x", opponent.Email)
	assert.Equal(t, "name-y@x", opponent.Name)
}

func TestPairingIsFIFO(t *testing.T) {
	q, _, matches := newTestQueue()

	for _, id := range []string{"x@x", "y@x", "z@x", "w@x"} {
		require.NoError(t, q.Enqueue(id))
	}

	require.Len(t, *matches, 2)
	assert.Equal(t, []string{"x@x", "y@x"}, (*matches)[0], "oldest two pair first")
	assert.Equal(t, []string{"z@x", "w@x"}, (*matches)[1])
	assert.Equal(t, 0, q.Len())
}

func TestOddPlayerKeepsWaiting(t *testing.T) {
	q, _, matches := newTestQueue()

	require.NoError(t, q.Enqueue("x@x"))
	require.NoError(t, q.Enqueue("y@x"))
	require.NoError(t, q.Enqueue("z@x"))

	q.MatchingPass()

	require.Len(t, *matches, 1)
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Queued("z@x"), "the newest player waits for the next pair")

	require.NoError(t, q.Enqueue("w@x"))
	require.Len(t, *matches, 2)
	assert.Equal(t, []string{"z@x", "w@x"}, (*matches)[1])
}

func TestMatchingPassEvictsDeadEntrant(t *testing.T) {
	q, pub, matches := newTestQueue()

	require.NoError(t, q.Enqueue("x@x"))
	pub.markDead("x@x")
	require.NoError(t, q.Enqueue("y@x"))

	require.Len(t, *matches, 0, "the dead entrant is evicted, not matched")
	assert.False(t, q.Queued("x@x"))
	assert.True(t, q.Queued("y@x"), "survivor keeps their place at the front")

	require.NoError(t, q.Enqueue("z@x"))
	require.Len(t, *matches, 1)
	assert.Equal(t, []string{"y@x", "z@x"}, (*matches)[0])
}

func TestCancelledEntryCannotMatch(t *testing.T) {
	q, _, matches := newTestQueue()

	require.NoError(t, q.Enqueue("x@x"))
	q.Cancel("x@x")
	require.NoError(t, q.Enqueue("y@x"))

	assert.Empty(t, *matches, "a cancelled entry cannot be matched")
	assert.True(t, q.Queued("y@x"))

	require.NoError(t, q.Enqueue("z@x"))
	require.Len(t, *matches, 1)
	assert.Equal(t, []string{"y@x", "z@x"}, (*matches)[0])
}

func TestCancelThenReenqueueJoinsAtBack(t *testing.T) {
	q, _, matches := newTestQueue()

	require.NoError(t, q.Enqueue("x@x"))
	q.Cancel("x@x")
	require.NoError(t, q.Enqueue("y@x"))
	require.NoError(t, q.Enqueue("x@x"))

	require.Len(t, *matches, 1)
	assert.Equal(t, []string{"y@x", "x@x"}, (*matches)[0], "the re-entrant does not keep the old slot")
}

func TestCancelAllowsReenqueue(t *testing.T) {
	q, _, _ := newTestQueue()

	require.NoError(t, q.Enqueue("x@x"))
	q.Cancel("x@x")
	assert.False(t, q.Queued("x@x"))
	require.NoError(t, q.Enqueue("x@x"))
	assert.True(t, q.Queued("x@x"))
}

func TestLivenessSweepDropsDeadEntries(t *testing.T) {
	q, pub, _ := newTestQueue()

	require.NoError(t, q.Enqueue("x@x"))
	pub.markDead("x@x")

	q.LivenessSweep()

	assert.False(t, q.Queued("x@x"))
	assert.Equal(t, 0, q.Len())
}
