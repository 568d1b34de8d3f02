package gimbal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/gimbal/internal/gimbal/command"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/gimbal/telemetry"
	"github.com/banshee-data/gimbal/internal/httputil"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// tailEvent is the JSON shape of one telemetry event on the tail stream.
type tailEvent struct {
	Seq        uint64    `json:"seq"`
	ReceivedAt time.Time `json:"received_at"`
	Identifier string    `json:"identifier"`
	Frame      string    `json:"frame"`
	Reading    any       `json:"reading,omitempty"`
}

func newTailEvent(ev telemetry.Event) tailEvent {
	out := tailEvent{
		Seq:        ev.Seq,
		ReceivedAt: ev.ReceivedAt,
		Identifier: string(ev.Frame.Identifier),
		Frame:      ev.Frame.String(),
	}
	if v, err := command.Interpret(ev.Frame); err == nil {
		out.Reading = v
	}
	return out
}

// AttachAdminRoutes attaches gimbal debugging endpoints to mux under
// /debug/. They are reachable only over localhost or Tailscale.
func (s *Session) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "send a command to the gimbal and tail telemetry", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		data := struct {
			Shortcuts []string
			Catalog   []command.Definition
		}{command.Shortcuts(), command.All()}
		if err := sendCommandTemplate.Execute(buf, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodPost) {
			return
		}
		line := strings.TrimSpace(r.FormValue("command"))
		if line == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		f, err := command.ParseLine(line, s.Builder(), s.Codec())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.Control != frame.Read {
			if err := s.Post(r.Context(), f); err != nil {
				http.Error(w, "Failed to send command: "+err.Error(), http.StatusBadGateway)
				return
			}
			io.WriteString(w, fmt.Sprintf("Posted %s", f))
			return
		}
		resp, err := s.Send(r.Context(), f)
		if err != nil {
			http.Error(w, fmt.Sprintf("%s: %v", f, err), http.StatusGatewayTimeout)
			return
		}
		out := fmt.Sprintf("Sent %s\nReply %s", f, resp)
		if v, err := command.Interpret(resp); err == nil {
			out += fmt.Sprintf("\nReading %+v", v)
		}
		io.WriteString(w, out)
	})

	// Server-Sent Events stream of telemetry, optionally filtered with
	// ?id=GAC&id=LRF.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodGet) {
			return
		}
		var ids []frame.Identifier
		for _, id := range r.URL.Query()["id"] {
			ids = append(ids, frame.Identifier(strings.ToUpper(id)))
		}
		id, c := s.Subscribe(ids...)
		defer s.Unsubscribe(id)

		stream, err := httputil.NewEventStream(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for {
			select {
			case ev, ok := <-c:
				if !ok {
					return
				}
				if err := stream.Send(newTailEvent(ev)); err != nil {
					return
				}
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})

	debug.HandleFunc("gimbal-stats", "ingestion, dispatch and telemetry counters", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.Stats())
	})

	debug.HandleFunc("gimbal-pending", "requests awaiting a response", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.Pending())
	})
}
