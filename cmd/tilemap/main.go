package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"backend-geomine/internal/grid"
	"backend-geomine/internal/tiles"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type mapOptions struct {
	mode    string
	density float64
	x, y    int
	span    int
	mined   []string
}

func newRootCmd() *cobra.Command {
	opts := mapOptions{}
	root := &cobra.Command{
		Use:          "tilemap",
		Short:        "Print the procedural tile field around a cell",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen, err := opts.generator()
			if err != nil {
				return err
			}
			mined := tiles.NewMinedSet()
			for _, id := range opts.mined {
				c, err := grid.ParseCell(id)
				if err != nil {
					return fmt.Errorf("mined tile %q: %w", id, err)
				}
				mined.Add(c)
			}
			return renderMap(cmd.OutOrStdout(), gen, mined, grid.Cell{X: opts.x, Y: opts.y}, opts.span)
		},
	}
	root.Flags().StringVar(&opts.mode, "mode", string(tiles.HashLegacy), "hash mode: legacy or uniform")
	root.Flags().Float64Var(&opts.density, "density", tiles.DefaultDensity, "tile density threshold")
	root.Flags().IntVar(&opts.x, "x", 0, "center cell x")
	root.Flags().IntVar(&opts.y, "y", 0, "center cell y")
	root.Flags().IntVar(&opts.span, "span", 7, "cells drawn in each direction")
	root.Flags().StringArrayVar(&opts.mined, "mined", nil, "tile id to draw as mined, repeatable, e.g. 3,-2")

	root.AddCommand(newSeedCmd())
	return root
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <x,y>...",
		Short: "Print the hash seed and existence of cells",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			legacy := tiles.Generator{Mode: tiles.HashLegacy, Density: tiles.DefaultDensity}
			uniform := tiles.Generator{Mode: tiles.HashUniform, Density: tiles.DefaultDensity}
			for _, id := range args {
				c, err := grid.ParseCell(id)
				if err != nil {
					return fmt.Errorf("%q: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s seed=%d legacy=%t uniform=%t\n",
					c.ID(), tiles.Seed(c), legacy.Exists(c), uniform.Exists(c))
			}
			return nil
		},
	}
}

func (o mapOptions) generator() (tiles.Generator, error) {
	mode, err := tiles.ParseHashMode(o.mode)
	if err != nil {
		return tiles.Generator{}, err
	}
	if o.density <= 0 || o.density > 1 {
		return tiles.Generator{}, fmt.Errorf("density must be in (0, 1], got %v", o.density)
	}
	return tiles.Generator{Mode: mode, Density: o.density}, nil
}

// renderMap draws one row per y, north at the top. '#' is an active tile,
// 'x' a mined one, '@' marks the center.
func renderMap(w io.Writer, gen tiles.Generator, mined *tiles.MinedSet, center grid.Cell, span int) error {
	if span < 0 {
		span = 0
	}
	present, total := 0, 0
	var b strings.Builder
	for y := center.Y - span; y <= center.Y+span; y++ {
		for x := center.X - span; x <= center.X+span; x++ {
			c := grid.Cell{X: x, Y: y}
			total++
			ch := byte('.')
			if gen.Exists(c) {
				present++
				ch = '#'
				if mined.Has(c) {
					ch = 'x'
				}
			}
			if c == center {
				ch = '@'
			}
			b.WriteByte(ch)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "mode=%s fill=%d/%d (%.1f%%)\n", gen.Mode, present, total, 100*float64(present)/float64(total))
	_, err := io.WriteString(w, b.String())
	return err
}
