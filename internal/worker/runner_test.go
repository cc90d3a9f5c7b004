package worker_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DragonOfMath/discord.io/internal/datalayer"
	"github.com/DragonOfMath/discord.io/internal/opus"
	"github.com/DragonOfMath/discord.io/internal/worker"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type played struct {
	ChannelID snowflake.ID
	Frames    []string
}

type fakeSpeaker struct {
	mu     sync.Mutex
	played []played
	err    error
}

func (s *fakeSpeaker) PlayFrames(_ context.Context, channelID snowflake.ID, src opus.FrameSource) error {
	p := played{ChannelID: channelID}
	for {
		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		p.Frames = append(p.Frames, string(frame))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, p)
	return s.err
}

func (s *fakeSpeaker) got() []played {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]played(nil), s.played...)
}

func storeClip(t *testing.T, s *datalayer.MemoryStorage, key string, frames ...string) {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		require.NoError(t, opus.WriteFrame(&buf, []byte(f)))
	}
	require.NoError(t, s.Put(context.Background(), key, &buf, datalayer.PutOptions{Size: int64(buf.Len())}))
}

type runnerHarness struct {
	queue   *worker.MemoryJobQueue
	cancels *worker.MemoryCancelList
	clips   *datalayer.MemoryStorage
	speaker *fakeSpeaker
}

func (h runnerHarness) run(t *testing.T, jobs int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := worker.NewRunner(h.queue, h.cancels, h.clips, h.speaker, worker.WithPreload(time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	require.Eventually(t, func() bool { return len(h.queue.Acked()) == jobs }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func newRunnerHarness() runnerHarness {
	return runnerHarness{
		queue:   worker.NewMemoryJobQueue(),
		cancels: worker.NewMemoryCancelList(),
		clips:   datalayer.NewMemoryStorage(),
		speaker: &fakeSpeaker{},
	}
}

func TestRunner_PlaysDueJobs(t *testing.T) {
	h := newRunnerHarness()
	storeClip(t, h.clips, "clips/bell", "a", "b", "c")
	past := time.Now().Add(-time.Second)
	require.NoError(t, h.queue.Enqueue(context.Background(),
		worker.PlaybackJob{ID: "1", ClipKey: "clips/bell", ChannelID: 200, RunAt: past},
	))

	h.run(t, 1)

	want := []played{{ChannelID: 200, Frames: []string{"a", "b", "c"}}}
	if diff := cmp.Diff(want, h.speaker.got()); diff != "" {
		t.Errorf("played mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"1"}, h.queue.Acked())
}

func TestRunner_SkipsCancelled(t *testing.T) {
	h := newRunnerHarness()
	storeClip(t, h.clips, "clips/bell", "a")
	past := time.Now().Add(-time.Second)
	require.NoError(t, h.cancels.Cancel(context.Background(), "series"))
	require.NoError(t, h.queue.Enqueue(context.Background(),
		worker.PlaybackJob{ID: "1", SeriesID: "series", ClipKey: "clips/bell", ChannelID: 200, RunAt: past},
		worker.PlaybackJob{ID: "2", ClipKey: "clips/bell", ChannelID: 201, RunAt: past},
	))

	h.run(t, 2)

	want := []played{{ChannelID: 201, Frames: []string{"a"}}}
	if diff := cmp.Diff(want, h.speaker.got()); diff != "" {
		t.Errorf("played mismatch (-want +got):\n%s", diff)
	}
}

func TestRunner_MissingClipIsAcked(t *testing.T) {
	h := newRunnerHarness()
	require.NoError(t, h.queue.Enqueue(context.Background(),
		worker.PlaybackJob{ID: "1", ClipKey: "clips/gone", ChannelID: 200, RunAt: time.Now()},
	))

	h.run(t, 1)

	assert.Empty(t, h.speaker.got())
}

func TestRunner_StopsPendingJobs(t *testing.T) {
	h := newRunnerHarness()
	require.NoError(t, h.queue.Enqueue(context.Background(),
		worker.PlaybackJob{ID: "1", ClipKey: "clips/later", ChannelID: 200, RunAt: time.Now().Add(time.Hour)},
	))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := worker.NewRunner(h.queue, h.cancels, h.clips, h.speaker)
	require.NoError(t, r.Run(ctx))

	assert.Empty(t, h.queue.Acked())
	assert.Empty(t, h.speaker.got())
}
