package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/banshee-data/gimbal/internal/config"
	"github.com/banshee-data/gimbal/internal/gimbal"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/gimbal/sim"
	"github.com/banshee-data/gimbal/internal/monitoring"
	"github.com/banshee-data/gimbal/internal/transport"
	"github.com/banshee-data/gimbal/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file (built-in defaults when empty)")
	devMode     = flag.Bool("dev", false, "Talk to a simulated gimbal")
	historyFile = flag.String("history", defaultHistoryPath(), "Command history file")
	cmdTimeout  = flag.Duration("timeout", 10*time.Second, "Upper bound for one command including retries")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gimbal_history")
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("gimbal-console"))
		return
	}

	cfg := &config.GimbalConfig{}
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadGimbalConfig(*configFile); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if err := monitoring.Configure(os.Stderr, "warn", "gimbal-console"); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var link transport.Transport
	if *devMode {
		host, device := transport.Pipe(256)
		g := sim.New(device, sim.Options{Codec: frame.Codec{Checksum: cfg.GetChecksum()}})
		go g.Run(ctx)
		link = host
	} else {
		var err error
		if link, err = gimbal.OpenLink(cfg); err != nil {
			log.Fatalf("failed to open gimbal link: %v", err)
		}
	}

	session := gimbal.NewSession(link, gimbal.ConfigFrom(cfg))
	defer session.Close()
	go func() {
		if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ingestion stopped: %v", err)
		}
	}()

	con := newConsole(gimbal.NewClient(session), os.Stdout)
	defer con.stopWatch()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(con.complete)
	loadHistory(line, *historyFile)
	defer saveHistory(line, *historyFile)

	fmt.Printf("gimbal console on %s. Type help for commands.\n", link)
	for {
		input, err := line.Prompt("gimbal> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				log.Printf("prompt: %v", err)
			}
			return
		}
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		cmdCtx, cancel := context.WithTimeout(ctx, *cmdTimeout)
		quit, err := con.execute(cmdCtx, input)
		cancel()
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
		if quit {
			return
		}
	}
}

func loadHistory(l *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := l.ReadHistory(f); err != nil {
		log.Printf("failed to read history: %v", err)
	}
}

func saveHistory(l *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		log.Printf("failed to write history: %v", err)
		return
	}
	defer f.Close()
	if _, err := l.WriteHistory(f); err != nil {
		log.Printf("failed to write history: %v", err)
	}
}
