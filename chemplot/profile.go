/*
 * profile.go, part of gostring
 *
 * Copyright 2024 Raul Mera Adasme <rauldotmeraatusachdotcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

// Package chemplot draws energy profiles of strings.
package chemplot

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/rmera/gostring/gsm"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no energies to plot")

// Profile returns the energies of a snapshot as plot points, with the node
// index as X.
func Profile(s *gsm.Snapshot) plotter.XYs {
	pts := make(plotter.XYs, len(s.Energies))
	for i, e := range s.Energies {
		pts[i].X = float64(i)
		pts[i].Y = e
	}
	return pts
}

// ProfilePlot returns a plot with the energy profile of each snapshot in snaps,
// colored from red (first) to blue (last). The peak of the last profile is
// marked.
func ProfilePlot(snaps []*gsm.Snapshot, title string) (*plot.Plot, error) {
	var valid []*gsm.Snapshot
	for _, s := range snaps {
		if s != nil && len(s.Energies) > 0 {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.Title.Padding = 3 * vg.Millimeter
	p.X.Label.Text = "Node"
	p.Y.Label.Text = "Energy (kcal/mol)"
	p.Add(plotter.NewGrid())
	for key, s := range valid {
		l, err := plotter.NewLine(Profile(s))
		if err != nil {
			return nil, err
		}
		r, g, b := colors(key, len(valid))
		l.LineStyle.Color = color.RGBA{R: r, G: g, B: b, A: 255}
		l.LineStyle.Width = vg.Points(1)
		if key == len(valid)-1 {
			l.LineStyle.Width = vg.Points(2)
		}
		p.Add(l)
	}
	last := valid[len(valid)-1]
	if ts := last.TSNode; ts >= 0 && ts < len(last.Energies) {
		sc, err := plotter.NewScatter(plotter.XYs{{X: float64(ts), Y: last.Energies[ts]}})
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Shape = draw.PyramidGlyph{}
		sc.GlyphStyle.Radius = vg.Points(4)
		sc.GlyphStyle.Color = color.Black
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("peak (node %d, %.2f kcal/mol)", ts, last.Energies[ts]), sc)
	}
	p.Legend.Top = true
	return p, nil
}

// SaveProfile writes the plot of ProfilePlot to filename. The format is taken
// from the extension (for instance, png or svg).
func SaveProfile(snaps []*gsm.Snapshot, title, filename string) error {
	p, err := ProfilePlot(snaps, title)
	if err != nil {
		return err
	}
	return p.Save(5*vg.Inch, 4*vg.Inch, filename)
}

// colors returns a color for item key out of steps, going from red to blue.
func colors(key, steps int) (r, g, b uint8) {
	norm := 240.0
	if steps > 1 {
		norm = 240.0 / float64(steps-1)
	}
	h := math.Min(float64(key)*norm, 240)
	return iHVS2RGB(h, 1, 1)
}

// takes hue (0-360), v and s (0-1), returns r,g,b (0-255)
func iHVS2RGB(h, v, s float64) (uint8, uint8, uint8) {
	conversion := 255.0 * v
	if s == 0.0 {
		return uint8(conversion), uint8(conversion), uint8(conversion)
	}
	h = h / 60
	i := math.Floor(h)
	f := h - i
	p := 1 - s
	q := 1 - s*f
	t := 1 - s*(1-f)
	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = 1, t, p
	case 1:
		r, g, b = q, 1, p
	case 2:
		r, g, b = p, 1, t
	case 3:
		r, g, b = p, q, 1
	case 4:
		r, g, b = t, p, 1
	default:
		r, g, b = 1, p, q
	}
	return uint8(r * conversion), uint8(g * conversion), uint8(b * conversion)
}
