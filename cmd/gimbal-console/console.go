package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/gimbal/internal/gimbal"
	"github.com/banshee-data/gimbal/internal/gimbal/command"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

// builtins are console commands that do not produce a frame.
var builtins = []string{"help", "quit", "exit", "stats", "pending", "watch", "catalog"}

// console executes operator lines against a session.
type console struct {
	client *gimbal.Client
	out    io.Writer

	outMu sync.Mutex

	mu      sync.Mutex
	watchID string
}

func (c *console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) println(args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, args...)
}

func newConsole(c *gimbal.Client, out io.Writer) *console {
	return &console{client: c, out: out}
}

// complete returns every command or identifier that extends the last word
// of line.
func (c *console) complete(line string) []string {
	fields := strings.Fields(line)
	trailingSpace := strings.HasSuffix(line, " ")

	var candidates []string
	var prefix, head string
	switch {
	case len(fields) == 0 || (len(fields) == 1 && !trailingSpace):
		candidates = append(append([]string{}, builtins...), command.Shortcuts()...)
		if len(fields) == 1 {
			prefix = fields[0]
		}
	case len(fields) <= 2 && isIdentifierCommand(fields[0]):
		for _, d := range command.All() {
			candidates = append(candidates, string(d.Identifier))
		}
		head = fields[0] + " "
		if len(fields) == 2 && !trailingSpace {
			prefix = strings.ToUpper(fields[1])
		}
	default:
		return nil
	}

	var out []string
	for _, cand := range candidates {
		if strings.HasPrefix(cand, prefix) {
			out = append(out, head+cand)
		}
	}
	sort.Strings(out)
	return out
}

func isIdentifierCommand(name string) bool {
	switch strings.ToLower(name) {
	case "read", "write", "watch":
		return true
	}
	return false
}

// execute runs one line. It reports quit=true when the operator asked to
// leave.
func (c *console) execute(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true, nil
	case "help":
		c.help(fields[1:])
		return false, nil
	case "catalog":
		for _, d := range command.All() {
			c.printf("%s  %-8s %-10s %s\n", d.Identifier, d.Kind, d.Destination, d.Description)
		}
		return false, nil
	case "stats":
		return false, c.printJSON(c.client.Session().Stats())
	case "pending":
		return false, c.printJSON(c.client.Session().Pending())
	case "watch":
		return false, c.watch(fields[1:])
	}

	f, err := command.ParseLine(line, c.client.Session().Builder(), c.client.Session().Codec())
	if err != nil {
		return false, err
	}
	start := time.Now()
	resp, err := c.client.Do(ctx, f)
	if err != nil {
		return false, err
	}
	if f.Control != frame.Read {
		c.printf("sent %s\n", f)
		return false, nil
	}
	c.printf("%s (%v)\n", resp, time.Since(start).Round(time.Millisecond))
	if reading, err := command.Interpret(resp); err == nil {
		c.printf("  %+v\n", reading)
	}
	return false, nil
}

func (c *console) help(args []string) {
	if len(args) == 1 {
		if u := command.Usage(strings.ToLower(args[0])); u != "" {
			c.println(u)
			return
		}
		c.printf("no help for %q\n", args[0])
		return
	}
	c.println("console: help [cmd], catalog, stats, pending, watch [ID...|off], quit")
	c.println("frames:  read <ID>, write <ID> <payload>, raw <frame>")
	c.printf("shortcuts: %s\n", strings.Join(command.Shortcuts(), " "))
}

// watch prints telemetry for the given identifiers (all when none) until
// "watch off".
func (c *console) watch(args []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watchID != "" {
		c.client.Session().Unsubscribe(c.watchID)
		c.watchID = ""
	}
	if len(args) == 1 && strings.EqualFold(args[0], "off") {
		c.println("watch off")
		return nil
	}

	ids := make([]frame.Identifier, 0, len(args))
	for _, a := range args {
		id := frame.Identifier(strings.ToUpper(a))
		if !id.Valid() {
			return fmt.Errorf("watch: invalid identifier %q", a)
		}
		ids = append(ids, id)
	}
	subID, events := c.client.Session().Subscribe(ids...)
	c.watchID = subID
	go func() {
		for ev := range events {
			line := fmt.Sprintf("[%d] %s", ev.Seq, ev.Frame)
			if reading, err := command.Interpret(ev.Frame); err == nil {
				line += fmt.Sprintf(" %+v", reading)
			}
			c.println(line)
		}
	}()
	c.printf("watching %v\n", args)
	return nil
}

func (c *console) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	c.println(string(b))
	return nil
}

// stopWatch ends any active watch subscription.
func (c *console) stopWatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watchID != "" {
		c.client.Session().Unsubscribe(c.watchID)
		c.watchID = ""
	}
}
