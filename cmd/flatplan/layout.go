package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	cli "github.com/urfave/cli/v3"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/layout"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/ratio"
)

func layoutCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "layout",
		Usage: "Prints how an article's words and visuals fall across its pages",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "words", Usage: "article word `COUNT`"},
			&cli.IntFlag{Name: "columns", Value: constants.DefaultColumns, Usage: "text columns (1 to 3)"},
			&cli.StringFlag{Name: "line-height", Value: constants.DefaultLineHeight, Usage: "line height `RATIO`, e.g. 1/50"},
			&cli.IntFlag{Name: "start-page", Value: constants.DefaultStartPage, Usage: "magazine page the article starts on"},
			&cli.FloatFlag{Name: "margin", Value: constants.DefaultMargin, Usage: "page margin on every side, in percent"},
			&cli.StringSliceFlag{Name: "visual", Usage: "visual as `PAGE:W:H:X:Y`, e.g. 1:1/2:1/3:0:0 (repeatable)"},
			&cli.BoolFlag{Name: "json", Usage: "print the computed article as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			layout.SetLogger(e.logger())
			ratio.SetLogger(e.logger())

			a := models.Article{
				ID:         "cli",
				WordCount:  cmd.Int("words"),
				Columns:    cmd.Int("columns"),
				LineHeight: cmd.String("line-height"),
				StartPage:  cmd.Int("start-page"),
			}
			for i, raw := range cmd.StringSlice("visual") {
				v, err := parseVisual(raw)
				if err != nil {
					return err
				}
				v.ID = "visual-" + strconv.Itoa(i+1)
				a.Visuals = append(a.Visuals, v)
			}

			m := cmd.Float("margin")
			margins := models.Margins{Top: m, Right: m, Bottom: m, Left: m}
			a = layout.Recompute(a, func(int) models.Margins { return margins })

			out := cmd.Root().Writer
			if cmd.Bool("json") {
				return writeJSON(out, a)
			}
			return printLayout(out, a)
		},
	}
}

// parseVisual reads PAGE:W:H:X:Y. W and H are ratios such as 1/2.
func parseVisual(raw string) (models.Visual, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 5 {
		return models.Visual{}, fmt.Errorf("visual %q: want PAGE:W:H:X:Y", raw)
	}
	page, err := strconv.Atoi(parts[0])
	if err != nil || page < 1 {
		return models.Visual{}, fmt.Errorf("visual %q: bad page %q", raw, parts[0])
	}
	for _, r := range parts[1:3] {
		if _, ok := ratio.Fraction(r); !ok {
			return models.Visual{}, fmt.Errorf("visual %q: bad ratio %q", raw, r)
		}
	}
	x, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return models.Visual{}, fmt.Errorf("visual %q: bad x: %w", raw, err)
	}
	y, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return models.Visual{}, fmt.Errorf("visual %q: bad y: %w", raw, err)
	}
	return models.Visual{Page: page, Width: parts[1], Height: parts[2], X: x, Y: y}, nil
}

func printLayout(out io.Writer, a models.Article) error {
	fmt.Fprintf(out, "words per page: %d\n", a.WordsPerPage)
	fmt.Fprintf(out, "pages: %d (magazine pages %d-%d)\n", a.PageCount, a.StartPage, a.EndPage())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tWORDS\tAVAILABLE\tVISUALS")
	for _, p := range a.Pages {
		fmt.Fprintf(tw, "%d\t%d\t%.1f%%\t%d\n", p.PageNumber, p.WordCount, p.AvailableSpace, len(p.Visuals))
	}
	return tw.Flush()
}
