package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	cli "github.com/urfave/cli/v3"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/flip"
	"github.com/flatplan/flatplan.go/pkg/flip/preview"
)

func frameFlags() []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{Name: "width", Value: 400, Usage: "page width in pixels"},
		&cli.FloatFlag{Name: "height", Value: 566, Usage: "page height in pixels"},
		&cli.IntFlag{Name: "page", Value: 2, Usage: "left page of the open spread"},
		&cli.IntFlag{Name: "total", Value: constants.DefaultPages, Usage: "total pages"},
		&cli.StringFlag{Name: "dir", Value: string(flip.Right), Usage: "turn `DIRECTION`, left or right"},
		&cli.FloatFlag{Name: "progress", Value: 0.5, Usage: "turn progress from 0 to 1"},
		&cli.IntFlag{Name: "strips", Value: constants.FlipStrips, Usage: "strips per face"},
	}
}

func frameFromFlags(cmd *cli.Command) (flip.Frame, error) {
	dir := flip.Direction(cmd.String("dir"))
	if dir != flip.Left && dir != flip.Right {
		return flip.Frame{}, fmt.Errorf("unknown direction %q", cmd.String("dir"))
	}
	progress := cmd.Float("progress")
	if progress < 0 || progress > 1 {
		return flip.Frame{}, fmt.Errorf("progress %v out of [0,1]", progress)
	}

	view := flip.View{Width: cmd.Float("width"), Height: cmd.Float("height")}
	opts := flip.DefaultOptions()
	opts.Strips = cmd.Int("strips")

	return flip.Frame{
		State: flip.State{
			Phase:       flip.Animating,
			CurrentPage: cmd.Int("page"),
			TotalPages:  cmd.Int("total"),
			Direction:   dir,
			Progress:    progress,
			Opacity:     flip.Opacity(progress),
		},
		View:     view,
		Polygons: flip.Polygons(view, opts, cmd.Int("page"), dir, progress),
	}, nil
}

func flipCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "flip",
		Usage: "Computes page-turn frames",
		Commands: []*cli.Command{
			{
				Name:  "frame",
				Usage: "Prints the strip transforms and lighting of one frame",
				Flags: frameFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					frame, err := frameFromFlags(cmd)
					if err != nil {
						return err
					}
					return printFrame(cmd.Root().Writer, frame)
				},
			},
			{
				Name:  "preview",
				Usage: "Renders one frame to a PNG file",
				Flags: append(frameFlags(),
					&cli.StringFlag{Name: "out", Value: "frame.png", Usage: "output `FILE`"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					frame, err := frameFromFlags(cmd)
					if err != nil {
						return err
					}
					path := cmd.String("out")
					f, err := os.Create(path)
					if err != nil {
						return err
					}
					if err := preview.Render(f, frame, preview.DefaultOptions()); err != nil {
						f.Close()
						return err
					}
					if err := f.Close(); err != nil {
						return err
					}
					w, h := preview.Size(frame.View, preview.DefaultOptions())
					e.logger().Info("preview written", "path", path, "width", w, "height", h)
					fmt.Fprintln(cmd.Root().Writer, path)
					return nil
				},
			},
		},
	}
}

func printFrame(out io.Writer, frame flip.Frame) error {
	fmt.Fprintf(out, "direction: %s progress: %.3f opacity: %.3f\n",
		frame.State.Direction, frame.State.Progress, frame.State.Opacity)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tZ\tBACKGROUND\tDIFFUSE\tSPECULAR\tTRANSFORM")
	for _, p := range frame.Polygons {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.3f\t%.3f\t%s\n",
			p.Key, p.ZIndex, p.BackgroundPositionCSS(),
			p.Lighting.Diffuse[2], p.Lighting.Specular[2], p.Transform())
	}
	return tw.Flush()
}
