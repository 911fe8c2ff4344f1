package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"election-core/internal/domain"
	"election-core/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSweepInterval = 20 * time.Second
	testRetention     = 2 * time.Minute
)

func postAt(t *testing.T, chat *fakeChatRepo, classID string, createdAt time.Time) {
	t.Helper()
	err := chat.Insert(context.Background(), &domain.ChatMessage{
		ID:        fmt.Sprintf("msg-%d", createdAt.UnixNano()),
		ClassID:   classID,
		VoterID:   "voter-1",
		Kind:      domain.ChatKindMessage,
		Body:      "hello",
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
}

func TestSweeper_RetentionWindow(t *testing.T) {
	chat := &fakeChatRepo{}
	clock := newFixtureClock()
	ctx := context.Background()

	sweeper := NewSweeper(chat, clock, testSweepInterval, testRetention, logger.NewNop())
	sweeper.Watch("class-3a")

	t0 := clock.Now()
	postAt(t, chat, "class-3a", t0)

	// Half the retention window later the message survives a sweep
	clock.Advance(90 * time.Second)
	sweeper.SweepOnce(ctx)
	assert.Equal(t, 1, chat.count("class-3a"))

	// Past the retention window it is gone
	clock.Advance(40 * time.Second)
	sweeper.SweepOnce(ctx)
	assert.Equal(t, 0, chat.count("class-3a"))

	// Sweeping an already-clean class is a no-op
	sweeper.SweepOnce(ctx)
	assert.Equal(t, 0, chat.count("class-3a"))
}

func TestSweeper_OnlyWatchedClasses(t *testing.T) {
	chat := &fakeChatRepo{}
	clock := newFixtureClock()
	ctx := context.Background()

	sweeper := NewSweeper(chat, clock, testSweepInterval, testRetention, logger.NewNop())
	sweeper.Watch("class-3a")

	t0 := clock.Now()
	postAt(t, chat, "class-3a", t0)
	postAt(t, chat, "class-3b", t0)

	clock.Advance(testRetention + time.Second)
	sweeper.SweepOnce(ctx)

	assert.Equal(t, 0, chat.count("class-3a"))
	assert.Equal(t, 1, chat.count("class-3b"), "unwatched classes are left alone")
}

func TestSweeper_WipeClass(t *testing.T) {
	chat := &fakeChatRepo{}
	clock := newFixtureClock()
	ctx := context.Background()

	sweeper := NewSweeper(chat, clock, testSweepInterval, testRetention, logger.NewNop())

	// Fresh messages, well inside the retention window
	postAt(t, chat, "class-3a", clock.Now())
	postAt(t, chat, "class-3a", clock.Now())
	postAt(t, chat, "class-3b", clock.Now())

	require.NoError(t, sweeper.WipeClass(ctx, "class-3a"))

	assert.Equal(t, 0, chat.count("class-3a"), "wipe removes everything regardless of age")
	assert.Equal(t, 1, chat.count("class-3b"))
}

func TestSweeper_SweepFailureDoesNotStopOtherClasses(t *testing.T) {
	chat := &fakeChatRepo{}
	clock := newFixtureClock()
	ctx := context.Background()

	sweeper := NewSweeper(chat, clock, testSweepInterval, testRetention, logger.NewNop())
	sweeper.Watch("class-3a")

	postAt(t, chat, "class-3a", clock.Now())
	clock.Advance(testRetention + time.Second)

	chat.deleteErr = assert.AnError
	sweeper.SweepOnce(ctx)
	assert.Equal(t, 1, chat.count("class-3a"))

	// The next pass catches up once the store recovers
	chat.deleteErr = nil
	sweeper.SweepOnce(ctx)
	assert.Equal(t, 0, chat.count("class-3a"))
}

func TestSweeper_Loop(t *testing.T) {
	chat := &fakeChatRepo{}
	clock := newFixtureClock()
	ctx := context.Background()

	sweeper := NewSweeper(chat, clock, testSweepInterval, testRetention, logger.NewNop())
	sweeper.Watch("class-3a")

	postAt(t, chat, "class-3a", clock.Now().Add(-testRetention-time.Second))

	require.NoError(t, sweeper.Start(ctx))
	defer sweeper.Stop(ctx)

	clock.BlockUntil(1)
	clock.Advance(testSweepInterval)

	assert.Eventually(t, func() bool {
		return chat.count("class-3a") == 0
	}, 2*time.Second, 10*time.Millisecond, "the periodic pass should delete aged-out items")

	require.NoError(t, sweeper.Stop(ctx))
	require.NoError(t, sweeper.Stop(ctx))
}

func TestSweeper_Restart(t *testing.T) {
	chat := &fakeChatRepo{}
	clock := newFixtureClock()
	ctx := context.Background()

	sweeper := NewSweeper(chat, clock, testSweepInterval, testRetention, logger.NewNop())
	sweeper.Watch("class-3a")

	require.NoError(t, sweeper.Start(ctx))
	require.NoError(t, sweeper.Stop(ctx))

	postAt(t, chat, "class-3a", clock.Now().Add(-testRetention-time.Second))

	require.NoError(t, sweeper.Start(ctx))
	defer sweeper.Stop(ctx)

	assert.Eventually(t, func() bool {
		clock.Advance(testSweepInterval)
		return chat.count("class-3a") == 0
	}, 2*time.Second, 10*time.Millisecond, "a restarted sweeper must keep sweeping")
}
