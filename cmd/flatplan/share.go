package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	cli "github.com/urfave/cli/v3"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/share"
)

func shareCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "share",
		Usage: "Encodes and decodes inline share links",
		Commands: []*cli.Command{
			{
				Name:      "encode",
				Usage:     "Builds an inline share link for a magazine JSON file",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base", Value: constants.DefaultShareBase, Usage: "link `ORIGIN`"},
					&cli.BoolFlag{Name: "edit", Usage: "let the recipient edit"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return errors.New("no magazine file has been specified")
					}
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					doc := models.NewDocument()
					if err := json.Unmarshal(data, &doc); err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}

					inline, err := share.Encode(share.FromDocument(doc))
					if err != nil {
						return err
					}
					e.logger().Debug("inline share encoded", "articles", len(doc.Articles), "size", len(inline))
					link := share.Build(share.Link{Base: cmd.String("base"), Inline: inline, AllowEdit: cmd.Bool("edit")})
					_, err = fmt.Fprintln(cmd.Root().Writer, link)
					return err
				},
			},
			{
				Name:      "decode",
				Usage:     "Prints the magazine carried by an inline share link",
				ArgsUsage: "URL",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					l, err := share.Parse(cmd.Args().First())
					if err != nil {
						return err
					}
					if !l.IsInline() {
						return fmt.Errorf("%w: %s is a relay share, not an inline link", constants.ErrInvalidShareURL, l.ShareID)
					}
					state, err := share.Decode(l.Inline)
					if err != nil {
						return err
					}
					return writeJSON(cmd.Root().Writer, struct {
						AllowEdit bool        `json:"allowEdit"`
						State     share.State `json:"state"`
					}{l.AllowEdit, state})
				},
			},
		},
	}
}
