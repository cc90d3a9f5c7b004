package worker_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/DragonOfMath/discord.io/internal/worker"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequenceGenerator struct {
	n int
}

func (g *sequenceGenerator) Next() (string, error) {
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

func TestExpand(t *testing.T) {
	after := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	template := worker.PlaybackJob{ClipKey: "clips/airhorn", GuildID: 10, ChannelID: 200}

	got, err := worker.Expand(template, "0 18 * * *", after, 2, &sequenceGenerator{})
	require.NoError(t, err)

	want := []worker.PlaybackJob{
		{ID: "id-2", SeriesID: "id-1", ClipKey: "clips/airhorn", GuildID: 10, ChannelID: 200, RunAt: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC), Recurrence: "0 18 * * *"},
		{ID: "id-3", SeriesID: "id-1", ClipKey: "clips/airhorn", GuildID: 10, ChannelID: 200, RunAt: time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC), Recurrence: "0 18 * * *"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(worker.PlaybackJob{})); diff != "" {
		t.Errorf("Expand() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_KeepsSeries(t *testing.T) {
	template := worker.PlaybackJob{SeriesID: "weekly"}

	got, err := worker.Expand(template, "@weekly", time.Now(), 3, &sequenceGenerator{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, job := range got {
		assert.Equal(t, "weekly", job.SeriesID)
	}
}

func TestExpand_InvalidCron(t *testing.T) {
	_, err := worker.Expand(worker.PlaybackJob{}, "whenever", time.Now(), 1, &sequenceGenerator{})
	assert.Error(t, err)
}

func TestDecodeJob(t *testing.T) {
	job := worker.PlaybackJob{
		ID:         "job",
		SeriesID:   "series",
		ClipKey:    "clips/bell",
		GuildID:    81384788765712384,
		ChannelID:  81384788765712385,
		RunAt:      time.Date(2024, 3, 1, 18, 0, 0, 500, time.UTC),
		Recurrence: "* * * * *",
	}

	got, err := worker.DecodeJob(worker.EncodeJob(job))
	require.NoError(t, err)
	if diff := cmp.Diff(job, got, cmpopts.IgnoreUnexported(worker.PlaybackJob{})); diff != "" {
		t.Errorf("DecodeJob() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeJob_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
	}{
		{name: "no job id", values: map[string]any{"clipKey": "clips/bell"}},
		{name: "bad guild id", values: map[string]any{"jobID": "j", "guildID": "guild"}},
		{name: "bad run time", values: map[string]any{"jobID": "j", "runAt": "tomorrow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := worker.DecodeJob(tt.values)
			assert.Error(t, err)
		})
	}
}
