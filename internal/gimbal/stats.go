package gimbal

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gimbal/internal/gimbal/dispatch"
	"github.com/banshee-data/gimbal/internal/gimbal/telemetry"
)

// DefaultLatencyWindow is the number of response latencies kept for stats.
const DefaultLatencyWindow = 256

type ingestCounters struct {
	datagrams, bytes, decoded     atomic.Uint64
	checksumErrors, framingErrors atomic.Uint64
	claimed, published            atomic.Uint64
}

// IngestStats counts what the ingestion loop has seen.
type IngestStats struct {
	Datagrams      uint64 `json:"datagrams"`
	Bytes          uint64 `json:"bytes"`
	Decoded        uint64 `json:"decoded"`
	ChecksumErrors uint64 `json:"checksum_errors"`
	FramingErrors  uint64 `json:"framing_errors"`
	Claimed        uint64 `json:"claimed"`
	Published      uint64 `json:"published"`
}

// LatencySummary describes recent request/response round trips in
// milliseconds.
type LatencySummary struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	StdMs  float64 `json:"std_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// Stats is a snapshot of session activity.
type Stats struct {
	Ingest    IngestStats     `json:"ingest"`
	Dispatch  dispatch.Stats  `json:"dispatch"`
	Telemetry telemetry.Stats `json:"telemetry"`
	Latency   LatencySummary  `json:"latency"`
}

// Stats returns a snapshot of session activity.
func (s *Session) Stats() Stats {
	return Stats{
		Ingest: IngestStats{
			Datagrams:      s.ingest.datagrams.Load(),
			Bytes:          s.ingest.bytes.Load(),
			Decoded:        s.ingest.decoded.Load(),
			ChecksumErrors: s.ingest.checksumErrors.Load(),
			FramingErrors:  s.ingest.framingErrors.Load(),
			Claimed:        s.ingest.claimed.Load(),
			Published:      s.ingest.published.Load(),
		},
		Dispatch:  s.dispatcher.Stats(),
		Telemetry: s.listener.Stats(),
		Latency:   s.latency.summary(),
	}
}

// latencyWindow is a fixed-size ring of recent latencies.
type latencyWindow struct {
	mu   sync.Mutex
	ring []float64
	next int
	full bool
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = DefaultLatencyWindow
	}
	return &latencyWindow{ring: make([]float64, size)}
}

func (w *latencyWindow) add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ring[w.next] = float64(d) / float64(time.Millisecond)
	w.next++
	if w.next == len(w.ring) {
		w.next = 0
		w.full = true
	}
}

func (w *latencyWindow) summary() LatencySummary {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.ring)
	}
	xs := append([]float64(nil), w.ring[:n]...)
	w.mu.Unlock()
	return Summarize(xs)
}

// Summarize computes a LatencySummary over samples in milliseconds.
func Summarize(ms []float64) LatencySummary {
	if len(ms) == 0 {
		return LatencySummary{}
	}
	xs := append([]float64(nil), ms...)
	sort.Float64s(xs)
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		std = 0
	}
	return LatencySummary{
		Count:  len(xs),
		MeanMs: mean,
		StdMs:  std,
		P50Ms:  stat.Quantile(0.5, stat.Empirical, xs, nil),
		P95Ms:  stat.Quantile(0.95, stat.Empirical, xs, nil),
		MaxMs:  xs[len(xs)-1],
	}
}
