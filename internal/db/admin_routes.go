package db

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/gimbal/internal/httputil"
	"github.com/banshee-data/gimbal/internal/monitoring"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// AttachAdminRoutes mounts the SQL console, backup download, command log and
// attitude chart under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://gimbal.db", db.DB, &tailsql.DBOptions{
		Label: "Gimbal DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.handleBackup))
	debug.Handle("command-log", "Recent dispatch outcomes (JSON, ?limit=)", http.HandlerFunc(db.handleCommandLog))
	debug.Handle("attitude-chart", "Attitude history chart (?minutes=, ?limit=)", http.HandlerFunc(db.handleAttitudeChart))
	return nil
}

func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("gimbal-backup-%d.db", time.Now().UnixNano()))
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			monitoring.Logf("Failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		monitoring.Logf("backup: write failed: %v", err)
	}
}

func (db *DB) handleCommandLog(w http.ResponseWriter, r *http.Request) {
	entries, err := db.RecentCommands(httputil.QueryInt(r, "limit", 100, 10000))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := db.OutcomeCounts()
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []CommandLogEntry{}
	}
	httputil.WriteJSONOK(w, struct {
		Outcomes map[string]int64  `json:"outcomes"`
		Entries  []CommandLogEntry `json:"entries"`
	}{counts, entries})
}

func (db *DB) handleAttitudeChart(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if m := httputil.QueryInt(r, "minutes", 0, 7*24*60); m > 0 {
		since = time.Now().Add(-time.Duration(m) * time.Minute)
	}
	samples, err := db.AttitudeSince(since, httputil.QueryInt(r, "limit", 2000, 50000))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(samples) == 0 {
		http.Error(w, "no attitude samples recorded", http.StatusNotFound)
		return
	}

	x := make([]string, len(samples))
	yaw := make([]opts.LineData, len(samples))
	pitch := make([]opts.LineData, len(samples))
	roll := make([]opts.LineData, len(samples))
	for i, s := range samples {
		x[i] = s.ReceivedAt.Format("15:04:05.000")
		yaw[i] = opts.LineData{Value: s.Yaw}
		pitch[i] = opts.LineData{Value: s.Pitch}
		roll[i] = opts.LineData{Value: s.Roll}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Gimbal Attitude", Width: "100%", Height: "640px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Gimbal Attitude",
			Subtitle: fmt.Sprintf("%d samples, %s to %s", len(samples), x[0], x[len(x)-1]),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "degrees"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).
		AddSeries("yaw", yaw).
		AddSeries("pitch", pitch).
		AddSeries("roll", roll)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
