// Package schedule expands cron recurrences into playback run times and
// defers work until a run time arrives.
package schedule
