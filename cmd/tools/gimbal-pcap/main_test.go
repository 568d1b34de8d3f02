package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/gimbal/internal/gimbal"
	"github.com/banshee-data/gimbal/internal/gimbal/capture"
)

func TestPrintReport(t *testing.T) {
	r := &capture.Report{
		Packets:   12,
		Requests:  3,
		Responses: 2,
		First:     time.Unix(0, 0),
		Last:      time.Unix(2, 0),
		Latency:   gimbal.LatencySummary{Count: 2, MeanMs: 30, MaxMs: 40},
		Cadence:   []capture.Cadence{{Identifier: "GAC", Count: 10, MeanIntervalMs: 100, RateHz: 10}},
	}
	var buf bytes.Buffer
	printReport(&buf, r)
	out := buf.String()

	for _, want := range []string{"packets", "12", "span", "2s", "mean 30.0", "GAC", "10.00 Hz"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReportWithoutResponses(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &capture.Report{})
	if strings.Contains(buf.String(), "latency") {
		t.Errorf("latency line printed without samples:\n%s", buf.String())
	}
}
