package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Amund211/thingcache/internal/adapters/cache"
	"github.com/Amund211/thingcache/internal/adapters/database"
	"github.com/Amund211/thingcache/internal/adapters/thingrepository"
	"github.com/Amund211/thingcache/internal/config"
	"github.com/Amund211/thingcache/internal/domain"
	"github.com/urfave/cli/v3"
)

type thingStore interface {
	TryRead(ctx context.Context, id string) (cache.Outcome[domain.Thing], error)
	StoreThing(ctx context.Context, thing domain.Thing) error
	RemoveThing(ctx context.Context, id string) error
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "thingctl")

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	db, err := database.NewPostgresDatabaseFromConfig(conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer db.Close()

	schema := database.GetSchemaName(!conf.IsProduction())
	err = database.NewDatabaseMigrator(db, logger).Migrate(ctx, schema)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	app := newApp(thingrepository.NewPostgres(db, schema), os.Stdout, os.ReadFile, time.Now)
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

type printedThing struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func newApp(
	store thingStore,
	out io.Writer,
	readFile func(name string) ([]byte, error),
	nowFunc func() time.Time,
) *cli.Command {
	requireID := func(cmd *cli.Command) (string, error) {
		id := cmd.Args().First()
		if id == "" || len(id) > 100 {
			return "", errors.New("thing id must be 1 to 100 characters")
		}
		return id, nil
	}

	return &cli.Command{
		Name:   "thingctl",
		Usage:  "manage things in the thingcache database",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print a stored thing",
				UsageText: "thingctl get <id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireID(cmd)
					if err != nil {
						return err
					}

					outcome, err := store.TryRead(ctx, id)
					if err != nil {
						return fmt.Errorf("failed to read thing: %w", err)
					}
					thing, ok := outcome.Value()
					if !ok {
						return fmt.Errorf("%w: %s", domain.ErrThingNotFound, id)
					}

					printed := printedThing{ID: thing.ID, Name: thing.Name, UpdatedAt: thing.UpdatedAt}
					if json.Valid(thing.Payload) {
						printed.Payload = thing.Payload
					}
					encoder := json.NewEncoder(out)
					encoder.SetIndent("", "  ")
					return encoder.Encode(printed)
				},
			},
			{
				Name:      "put",
				Usage:     "create or replace a thing",
				UsageText: "thingctl put <id> --name <name> [--payload-file <path>]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "display name of the thing",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "payload-file",
						Aliases: []string{"p"},
						Usage:   "file whose contents become the payload",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireID(cmd)
					if err != nil {
						return err
					}

					var payload []byte
					if path := cmd.String("payload-file"); path != "" {
						payload, err = readFile(path)
						if err != nil {
							return fmt.Errorf("failed to read payload: %w", err)
						}
					}

					err = store.StoreThing(ctx, domain.Thing{
						ID:        id,
						Name:      cmd.String("name"),
						Payload:   payload,
						UpdatedAt: nowFunc().UTC(),
					})
					if err != nil {
						return fmt.Errorf("failed to store thing: %w", err)
					}

					fmt.Fprintf(out, "stored %s\n", id)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "remove a thing",
				UsageText: "thingctl delete <id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireID(cmd)
					if err != nil {
						return err
					}

					if err := store.RemoveThing(ctx, id); err != nil {
						return fmt.Errorf("failed to remove thing: %w", err)
					}

					fmt.Fprintf(out, "removed %s\n", id)
					return nil
				},
			},
		},
	}
}
