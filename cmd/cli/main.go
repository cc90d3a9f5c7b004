package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DragonOfMath/discord.io/internal/config"
	"github.com/DragonOfMath/discord.io/internal/datalayer"
	"github.com/DragonOfMath/discord.io/internal/generator"
	"github.com/DragonOfMath/discord.io/internal/opus"
	"github.com/DragonOfMath/discord.io/internal/permissions"
	"github.com/DragonOfMath/discord.io/internal/worker"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

var stdinReader = bufio.NewReader(os.Stdin)

var uuidGenerator = generator.UUIDV4Generator{}

func prompt(label string) string {
	fmt.Printf("%s: ", label)
	input, _ := stdinReader.ReadString('\n')
	return strings.TrimSpace(input)
}

func redisFromEnv() (*redis.Client, *config.RedisConfig, error) {
	cfg, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load redis config: %w", err)
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), cfg, nil
}

func parseID(s string) (snowflake.ID, error) {
	id, err := snowflake.Parse(s)
	if err != nil {
		return 0, cli.Exit(fmt.Sprintf("Invalid ID %q: %v", s, err), 1)
	}
	return id, nil
}

var idCommand = &cli.Command{
	Name:      "id",
	Usage:     "Show when snowflake IDs were created",
	ArgsUsage: "<id>...",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("Please provide at least one ID", 1)
		}
		for _, arg := range c.Args().Slice() {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", id, id.Time().UTC().Format(time.RFC3339Nano))
		}
		return nil
	},
}

var permsCommand = &cli.Command{
	Name:      "perms",
	Usage:     "Decode a permission mask, optionally adding or removing permissions",
	ArgsUsage: "[mask]",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "add", Usage: "Permission name to grant, e.g. VOICE_CONNECT"},
		&cli.StringSliceFlag{Name: "remove", Usage: "Permission name to revoke"},
	},
	Action: func(c *cli.Context) error {
		var mask int64
		if c.NArg() > 0 {
			var err error
			if mask, err = strconv.ParseInt(c.Args().First(), 10, 64); err != nil {
				return cli.Exit("Invalid mask: "+err.Error(), 1)
			}
		}
		apply := func(names []string, op func(permissions.Bit, int64) int64) error {
			for _, name := range names {
				bit, ok := permissions.Parse(name)
				if !ok {
					return cli.Exit("Unknown permission: "+name, 1)
				}
				mask = op(bit, mask)
			}
			return nil
		}
		if err := apply(c.StringSlice("add"), permissions.Give); err != nil {
			return err
		}
		if err := apply(c.StringSlice("remove"), permissions.Remove); err != nil {
			return err
		}

		fmt.Println(mask)
		for _, bit := range permissions.Bits(mask) {
			fmt.Printf("  %2d %s\n", uint(bit), bit)
		}
		return nil
	},
}

var uploadCommand = &cli.Command{
	Name:      "upload",
	Usage:     "Encode an audio file into Opus frames and store it as a clip",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "Clip name, defaults to the file name"},
		&cli.BoolFlag{Name: "mono", Usage: "Encode a single channel"},
		&cli.IntFlag{Name: "bitrate", Value: opus.DefaultBitrate},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.Exit("Please provide a file to upload", 1)
		}
		name := c.String("name")
		if name == "" {
			name = path[strings.LastIndex(path, "/")+1:]
		}

		binary, err := opus.LookupEncoder(opus.DefaultEncoders...)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		channels := opus.DefaultChannels
		if c.Bool("mono") {
			channels = 1
		}

		f, err := os.Open(path)
		if err != nil {
			return cli.Exit("Failed to open file: "+err.Error(), 1)
		}
		defer f.Close()

		storage, err := datalayer.NewMinioStorageFromEnv()
		if err != nil {
			return cli.Exit("Failed to create minio storage: "+err.Error(), 1)
		}
		if err := storage.EnsureBucket(c.Context); err != nil {
			return cli.Exit("Failed to ensure minio bucket: "+err.Error(), 1)
		}

		frames, err := opus.Transcode(c.Context, opus.CommandFactory(binary, channels, c.Int("bitrate")), f)
		if err != nil {
			return cli.Exit("Failed to start encoder: "+err.Error(), 1)
		}
		defer frames.Close()

		key := datalayer.ClipKey(name)
		err = storage.Put(c.Context, key, frames, datalayer.PutOptions{Size: -1, ContentType: datalayer.ClipContentType})
		if err != nil {
			return cli.Exit("Failed to upload clip: "+err.Error(), 1)
		}
		log.Printf("Uploaded %s as %s", path, key)
		return nil
	},
}

var enqueueCommand = &cli.Command{
	Name:  "enqueue",
	Usage: "Queue playback of a clip for the next run times of a cron expression",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "clip", Usage: "Clip name", Required: true},
		&cli.StringFlag{Name: "guild-id", Required: true},
		&cli.StringFlag{Name: "channel-id", Usage: "Voice channel to play in", Required: true},
		&cli.StringFlag{Name: "cron", Usage: "Cron expression, prompted for when missing"},
		&cli.IntFlag{Name: "count", Value: 5, Usage: "Number of run times to queue"},
		&cli.StringFlag{Name: "series", Usage: "Series ID to share with earlier jobs"},
	},
	Action: func(c *cli.Context) error {
		guildID, err := parseID(c.String("guild-id"))
		if err != nil {
			return err
		}
		channelID, err := parseID(c.String("channel-id"))
		if err != nil {
			return err
		}
		cron := c.String("cron")
		if cron == "" {
			cron = prompt("Enter cron expression (e.g., '0 0 * * *')")
		}

		template := worker.PlaybackJob{
			SeriesID:  c.String("series"),
			ClipKey:   datalayer.ClipKey(c.String("clip")),
			GuildID:   guildID,
			ChannelID: channelID,
		}
		jobs, err := worker.Expand(template, cron, time.Now(), c.Int("count"), &uuidGenerator)
		if err != nil {
			return cli.Exit("Failed to expand schedule: "+err.Error(), 1)
		}

		rdb, cfg, err := redisFromEnv()
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer rdb.Close()
		queue, err := worker.NewRedisJobQueue(c.Context, rdb, cfg.Stream, cfg.Group, "cli")
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if err := queue.Enqueue(c.Context, jobs...); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		log.Printf("Queued series %s", jobs[0].SeriesID)
		for _, job := range jobs {
			log.Printf("  %s at %s", job.ID, job.RunAt.Format(time.RFC3339))
		}
		return nil
	},
}

var cancelCommand = &cli.Command{
	Name:      "cancel",
	Usage:     "Cancel queued jobs by job or series ID",
	ArgsUsage: "<id>...",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("Please provide a job or series ID", 1)
		}
		rdb, cfg, err := redisFromEnv()
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer rdb.Close()

		cancels := worker.NewRedisCancelList(rdb, cfg.CancelSet)
		for _, id := range c.Args().Slice() {
			if err := cancels.Cancel(c.Context, id); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			log.Printf("Cancelled %s", id)
		}
		return nil
	},
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	app := &cli.App{
		Name:        "discordio-cli",
		Description: "A development CLI for inspecting IDs and permissions and for scheduling clip playback",
		Commands:    []*cli.Command{idCommand, permsCommand, uploadCommand, enqueueCommand, cancelCommand},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
