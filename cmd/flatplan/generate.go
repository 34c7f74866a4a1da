package main

import (
	"context"

	cli "github.com/urfave/cli/v3"

	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/document"
	"github.com/flatplan/flatplan.go/pkg/layout"
)

func generateCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Prints a sample article with its layout",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Value: string(document.Regular), Usage: "article `KIND`: regular, cover or full-page"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed, 0 for a random article"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			kind, err := document.ParseKind(cmd.String("kind"))
			if err != nil {
				return err
			}
			rnd := rand.Default()
			if seed := cmd.Uint64("seed"); seed != 0 {
				rnd = rand.NewSeeded(seed)
			}

			a := document.Generate(kind, nil, rnd)
			a.ID = "generated"
			a.StartPage = 1
			layout.SetLogger(e.logger())
			return writeJSON(cmd.Root().Writer, layout.Recompute(a, nil))
		},
	}
}
