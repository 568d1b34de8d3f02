// Command gimbal-pcap summarises gimbal traffic in a packet capture:
// request/response latency, retransmissions and unsolicited frame cadence.
//
//	tcpdump -i eth0 -w gimbal.pcap udp port 9003 or udp port 9004
//	gimbal-pcap -pcap gimbal.pcap
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/banshee-data/gimbal/internal/gimbal/capture"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

var (
	pcapFile    = flag.String("pcap", "", "Capture file (classic pcap format)")
	controlPort = flag.Uint("control-port", 9003, "Camera command port")
	listenPort  = flag.Uint("listen-port", 9004, "Host response port")
	checksum    = flag.String("checksum", "hex", "Checksum rendering: hex or byte")
	jsonOut     = flag.Bool("json", false, "Print the report as JSON")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}

	style, err := frame.ParseChecksumStyle(*checksum)
	if err != nil {
		log.Fatalf("invalid -checksum: %v", err)
	}
	opts := capture.Options{
		Codec:       frame.Codec{Checksum: style},
		ControlPort: uint16(*controlPort),
		ListenPort:  uint16(*listenPort),
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer f.Close()

	report, err := capture.Analyze(f, opts)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("failed to encode report: %v", err)
		}
		return
	}
	printReport(os.Stdout, report)
}

func printReport(w io.Writer, r *capture.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "packets\t%d\t(ignored %d, undecodable %d)\n", r.Packets, r.Ignored, r.DecodeErrors)
	fmt.Fprintf(tw, "span\t%v\n", r.Duration())
	fmt.Fprintf(tw, "requests\t%d\t(retransmits %d, unanswered %d)\n", r.Requests, r.Retransmits, r.Unanswered)
	fmt.Fprintf(tw, "responses\t%d\n", r.Responses)
	if r.Latency.Count > 0 {
		fmt.Fprintf(tw, "latency ms\tmean %.1f\tstd %.1f\tp50 %.1f\tp95 %.1f\tmax %.1f\n",
			r.Latency.MeanMs, r.Latency.StdMs, r.Latency.P50Ms, r.Latency.P95Ms, r.Latency.MaxMs)
	}
	fmt.Fprintf(tw, "unsolicited\t%d\n", r.Unsolicited)
	for _, c := range r.Cadence {
		fmt.Fprintf(tw, "  %s\t%d frames\tevery %.1f ms (std %.1f)\t%.2f Hz\n",
			c.Identifier, c.Count, c.MeanIntervalMs, c.StdIntervalMs, c.RateHz)
	}
	tw.Flush()
}
