package e2e_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DragonOfMath/discord.io/e2e"
	"github.com/DragonOfMath/discord.io/internal/datalayer"
	"github.com/DragonOfMath/discord.io/internal/opus"
	"github.com/DragonOfMath/discord.io/internal/worker"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSpeaker struct {
	mu     sync.Mutex
	frames map[snowflake.ID]int
}

func (s *recordingSpeaker) PlayFrames(_ context.Context, channelID snowflake.ID, src opus.FrameSource) error {
	n := 0
	for {
		_, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		n++
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[channelID] += n
	return nil
}

func (s *recordingSpeaker) played(channelID snowflake.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[channelID]
}

func TestRunner_PlaysQueuedJobsOverRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()
	client := e2e.UseRedis(t)

	queue, err := worker.NewRedisJobQueue(ctx, client, "jobs-playback", "workers", "consumer-1")
	require.NoError(t, err)
	cancels := worker.NewRedisCancelList(client, "cancelled-playback")

	clips := datalayer.NewMemoryStorage()
	var buf bytes.Buffer
	for range 3 {
		require.NoError(t, opus.WriteFrame(&buf, []byte{0xf8, 0xff, 0xfe}))
	}
	require.NoError(t, clips.Put(ctx, "clips/horn", &buf, datalayer.PutOptions{Size: int64(buf.Len())}))

	const played, skipped = snowflake.ID(300), snowflake.ID(301)
	runAt := time.Now().Add(200 * time.Millisecond)
	require.NoError(t, cancels.Cancel(ctx, "cancelled-series"))
	require.NoError(t, queue.Enqueue(ctx,
		worker.PlaybackJob{ID: "play", SeriesID: "live-series", ClipKey: "clips/horn", GuildID: 10, ChannelID: played, RunAt: runAt},
		worker.PlaybackJob{ID: "skip", SeriesID: "cancelled-series", ClipKey: "clips/horn", GuildID: 10, ChannelID: skipped, RunAt: runAt},
	))

	speaker := &recordingSpeaker{frames: make(map[snowflake.ID]int)}
	runner := worker.NewRunner(queue, cancels, clips, speaker, worker.WithPreload(100*time.Millisecond))

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- runner.Run(runCtx) }()

	require.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, "jobs-playback", "workers").Result()
		return err == nil && pending.Count == 0 && speaker.played(played) > 0
	}, 10*time.Second, 50*time.Millisecond)

	stop()
	require.NoError(t, <-done)
	assert.Equal(t, 3, speaker.played(played))
	assert.Zero(t, speaker.played(skipped))
}
