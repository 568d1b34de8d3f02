// Command attitude-plot renders recorded gimbal attitude as a PNG (or SVG,
// PDF by extension) time series.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/gimbal/internal/db"
)

var (
	dbPath  = flag.String("db", db.DefaultPath, "SQLite database written by the gimbal daemon")
	outFile = flag.String("out", "attitude.png", "Output image")
	minutes = flag.Int("minutes", 0, "Only plot the last N minutes (0 for everything)")
	limit   = flag.Int("limit", 20000, "Maximum number of samples")
)

var seriesColors = map[string]color.RGBA{
	"yaw":   {R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	"pitch": {R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	"roll":  {R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
}

func main() {
	flag.Parse()

	store, err := db.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	var since time.Time
	if *minutes > 0 {
		since = time.Now().Add(-time.Duration(*minutes) * time.Minute)
	}
	samples, err := store.AttitudeSince(since, *limit)
	if err != nil {
		log.Fatalf("Failed to query attitude: %v", err)
	}
	if err := renderAttitude(samples, *outFile); err != nil {
		log.Fatalf("Failed to render plot: %v", err)
	}
	log.Printf("wrote %d samples to %s", len(samples), *outFile)
}

// renderAttitude plots yaw, pitch and roll against wall-clock time.
func renderAttitude(samples []db.AttitudeSample, path string) error {
	if len(samples) == 0 {
		return errors.New("no attitude samples")
	}

	series := map[string]plotter.XYs{
		"yaw":   make(plotter.XYs, len(samples)),
		"pitch": make(plotter.XYs, len(samples)),
		"roll":  make(plotter.XYs, len(samples)),
	}
	for i, s := range samples {
		x := float64(s.ReceivedAt.UnixNano()) / 1e9
		series["yaw"][i] = plotter.XY{X: x, Y: s.Yaw}
		series["pitch"][i] = plotter.XY{X: x, Y: s.Pitch}
		series["roll"][i] = plotter.XY{X: x, Y: s.Roll}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Gimbal attitude (%d samples)", len(samples))
	p.X.Label.Text = "time"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
	p.Y.Label.Text = "degrees"
	p.Add(plotter.NewGrid())

	for _, name := range []string{"yaw", "pitch", "roll"} {
		line, err := plotter.NewLine(series[name])
		if err != nil {
			return err
		}
		line.Color = seriesColors[name]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save attitude plot: %w", err)
	}
	return nil
}
