package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/DragonOfMath/discord.io/internal/generator"
	"github.com/DragonOfMath/discord.io/internal/schedule"
	"github.com/disgoorg/snowflake/v2"
)

// PlaybackJob asks a worker to play a stored clip in a voice channel at a
// given time.
type PlaybackJob struct {
	ID string `mapstructure:"jobID"`
	// SeriesID is shared by every job expanded from one recurrence.
	SeriesID   string       `mapstructure:"seriesID"`
	ClipKey    string       `mapstructure:"clipKey"`
	GuildID    snowflake.ID `mapstructure:"guildID"`
	ChannelID  snowflake.ID `mapstructure:"channelID"`
	RunAt      time.Time    `mapstructure:"runAt"`
	Recurrence string       `mapstructure:"recurrence"`

	// delivery is the stream entry the job was received from.
	delivery string
}

func (j PlaybackJob) LogAttrs() []any {
	return []any{
		"jobID", j.ID,
		"seriesID", j.SeriesID,
		"clipKey", j.ClipKey,
		"guildID", j.GuildID,
		"channelID", j.ChannelID,
		slog.Time("runAt", j.RunAt),
	}
}

// Expand turns a recurrence into its next n jobs after the given time. Each
// job copies template and gets its own ID. The series ID is generated when
// template has none.
func Expand(template PlaybackJob, cron string, after time.Time, n int, ids generator.Generator[string]) ([]PlaybackJob, error) {
	times, err := schedule.RunTimes(cron, after, n)
	if err != nil {
		return nil, err
	}
	if template.SeriesID == "" {
		if template.SeriesID, err = ids.Next(); err != nil {
			return nil, fmt.Errorf("failed to generate series ID: %w", err)
		}
	}

	jobs := make([]PlaybackJob, 0, len(times))
	for _, at := range times {
		job := template
		if job.ID, err = ids.Next(); err != nil {
			return nil, fmt.Errorf("failed to generate job ID: %w", err)
		}
		job.RunAt = at
		job.Recurrence = cron
		jobs = append(jobs, job)
	}
	return jobs, nil
}
