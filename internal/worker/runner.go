package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/DragonOfMath/discord.io/internal/opus"
	"github.com/DragonOfMath/discord.io/internal/schedule"
	"github.com/disgoorg/snowflake/v2"
)

// DefaultPreload is how long before its run time a job's clip is fetched.
const DefaultPreload = 5 * time.Second

// Clips fetches stored clips.
type Clips interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Speaker plays encoded frames in a voice channel until src is exhausted.
type Speaker interface {
	PlayFrames(ctx context.Context, channelID snowflake.ID, src opus.FrameSource) error
}

type RunnerOption func(*Runner)

func WithPreload(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.preload = d
	}
}

func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Runner receives playback jobs and plays each one at its run time. Jobs
// run concurrently. A job is acked once it has been played, skipped or has
// failed.
type Runner struct {
	queue   JobQueue
	cancels CancelList
	clips   Clips
	speaker Speaker
	preload time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

func NewRunner(queue JobQueue, cancels CancelList, clips Clips, speaker Speaker, opts ...RunnerOption) *Runner {
	r := &Runner{
		queue:   queue,
		cancels: cancels,
		clips:   clips,
		speaker: speaker,
		preload: DefaultPreload,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run receives jobs until ctx is done, then waits for started jobs to stop.
func (r *Runner) Run(ctx context.Context) error {
	defer r.wg.Wait()
	for {
		jobs, err := r.queue.Receive(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive jobs: %w", err)
		}
		for _, job := range jobs {
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.handle(ctx, job)
			}()
		}
	}
}

// at reports whether t was reached before ctx was done.
func at(ctx context.Context, t time.Time) bool {
	fired := make(chan struct{})
	stop := schedule.RunAt(ctx, t, func(context.Context) { close(fired) })
	select {
	case <-fired:
		return true
	case <-ctx.Done():
		stop()
		return false
	}
}

func (r *Runner) handle(ctx context.Context, job PlaybackJob) {
	logger := r.logger.With(job.LogAttrs()...)
	if !at(ctx, job.RunAt.Add(-r.preload)) {
		return
	}

	clip, err := r.load(ctx, job)
	if err != nil {
		if !errors.Is(err, errSkipped) {
			logger.Error("failed to preload clip", "error", err)
		}
		r.ack(ctx, logger, job)
		return
	}
	defer clip.Close()

	if !at(ctx, job.RunAt) {
		return
	}
	logger.Info("playing clip")
	if err := r.speaker.PlayFrames(ctx, job.ChannelID, opus.NewFrameReader(clip)); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("failed to play clip", "error", err)
	}
	r.ack(ctx, logger, job)
}

var errSkipped = errors.New("job was cancelled")

func (r *Runner) load(ctx context.Context, job PlaybackJob) (io.ReadCloser, error) {
	cancelled, err := r.cancels.IsCancelled(ctx, job.ID, job.SeriesID)
	if err != nil {
		return nil, err
	}
	if cancelled {
		r.logger.Info("skipping cancelled job", job.LogAttrs()...)
		return nil, errSkipped
	}
	return r.clips.Get(ctx, job.ClipKey)
}

func (r *Runner) ack(ctx context.Context, logger *slog.Logger, job PlaybackJob) {
	if err := r.queue.Ack(ctx, job); err != nil {
		logger.Warn("failed to ack job", "error", err)
	}
}
