package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/persist"
	"github.com/flatplan/flatplan.go/pkg/persist/sqlitestore"
)

// withStore opens the database named by --db for the duration of fn.
func withStore(cmd *cli.Command, fn func(persist.Store) error) (err error) {
	s, err := sqlitestore.Open(cmd.String("db"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close())
	}()
	return fn(s)
}

func magazinesCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "magazines",
		Usage: "Manages the magazines saved on this machine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "flatplan.db",
				Usage:   "SQLite database `FILE`",
				Sources: cli.EnvVars("FLATPLAN_DB"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Lists saved magazines",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withStore(cmd, func(s persist.Store) error {
						ms, err := s.List(ctx)
						if err != nil {
							return err
						}
						tw := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
						fmt.Fprintln(tw, "ID\tTITLE\tISSUE\tARTICLES\tUPDATED")
						for _, m := range ms {
							fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", m.ID, m.Title, m.IssueNumber,
								len(m.State.Document.Articles), m.UpdatedAt.Format(time.DateTime))
						}
						return tw.Flush()
					})
				},
			},
			{
				Name:  "create",
				Usage: "Creates an empty magazine and prints its id",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "magazine title"},
					&cli.StringFlag{Name: "issue", Usage: "issue number"},
					&cli.StringFlag{Name: "date", Usage: "publication date"},
					&cli.StringFlag{Name: "ratio", Usage: "page `RATIO`, e.g. 1/1.4142"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withStore(cmd, func(s persist.Store) error {
						m, err := s.Create(ctx, models.Settings{
							Title:           cmd.String("title"),
							IssueNumber:     cmd.String("issue"),
							PublicationDate: cmd.String("date"),
							PageRatio:       cmd.String("ratio"),
						})
						if err != nil {
							return err
						}
						e.logger().Info("magazine created", "magazine_id", m.ID, "title", m.Title)
						_, err = fmt.Fprintln(cmd.Root().Writer, m.ID)
						return err
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Deletes a magazine",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return errors.New("no magazine id has been specified")
					}
					return withStore(cmd, func(s persist.Store) error {
						if err := s.Delete(ctx, id); err != nil {
							return err
						}
						e.logger().Info("magazine deleted", "magazine_id", id)
						return nil
					})
				},
			},
		},
	}
}
