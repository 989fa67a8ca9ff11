package fiberstack

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
)

// HTTPHandler returns a handler that lists the stored snapshots as an HTML
// page. A GET with a path query parameter returns that snapshot's JSON.
func (s *Server) HTTPHandler() http.Handler {
	return httpHandler{s: s}
}

type httpHandler struct {
	s *Server
}

func (h httpHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if p := req.URL.Query().Get("path"); p != "" {
		h.handleDocument(w, p)
		return
	}
	h.handleIndex(w, req.URL.Query().Get("identifier"))
}

func (h httpHandler) handleDocument(w http.ResponseWriter, rel string) {
	p, err := persist.Resolve(h.s.cfg.snapshotDir, rel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := persist.ReadRaw(p)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "snapshot not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.s.cfg.errorLogger(err)
		http.Error(w, "failed to read snapshot", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		h.s.cfg.errorLogger(fmt.Errorf("failed to write response: %w", err))
	}
}

func (h httpHandler) handleIndex(w http.ResponseWriter, identifier string) {
	entries, err := persist.List(h.s.cfg.snapshotDir, identifier)
	if err != nil {
		h.s.cfg.errorLogger(err)
		http.Error(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}

	sb := strings.Builder{}
	sb.WriteString(`<html>
<head>
	<title>Fiber stack snapshots</title>
	<style>
	td { padding: 2px 10px; }
	</style>
</head>
<body>
<h1>Fiber stack snapshots</h1>
`)
	sb.WriteString(fmt.Sprintf("<p>Server %s is %s, serving %s.</p>\n",
		h.s.fingerprint, h.s.Status(), html.EscapeString(h.s.cfg.snapshotDir)))
	if len(entries) == 0 {
		sb.WriteString("<p>No snapshots.</p>\n")
	} else {
		sb.WriteString("<table>\n<tr><th>Date</th><th>Identifier</th><th>File</th><th>Size</th><th>Written</th></tr>\n")
		for _, e := range entries {
			name := e.Path[strings.LastIndex(e.Path, "/")+1:]
			sb.WriteString(fmt.Sprintf(
				`<tr><td>%s</td><td>%s</td><td><a href="?path=%s">%s</a></td><td>%s</td><td>%s</td></tr>`+"\n",
				e.Date,
				html.EscapeString(e.Identifier),
				html.EscapeString(url.QueryEscape(e.Path)),
				html.EscapeString(name),
				humanize.Bytes(uint64(e.Size)),
				humanize.Time(e.ModTime),
			))
		}
		sb.WriteString("</table>\n")
	}
	sb.WriteString("</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(sb.String())); err != nil {
		h.s.cfg.errorLogger(fmt.Errorf("failed to write response: %w", err))
	}
}
