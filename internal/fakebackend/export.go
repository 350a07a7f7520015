package fakebackend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/echosmith/echosmith/backend"
)

// exportTask renders a task's transcription as plain text, JSON or SRT
// subtitles, selected by the ?format= query parameter (default txt).
func (s *Server) exportTask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	task, ok := s.store.get(params.ByName("id"))
	if !ok {
		http.Error(w, "no such task", http.StatusNotFound)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "txt"
	}

	switch format {
	case "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, task.ResultText)
	case "json":
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":       task.ID,
			"text":     task.ResultText,
			"segments": task.Segments,
		})
	case "srt":
		w.Header().Set("Content-Type", "application/x-subrip")
		fmt.Fprint(w, segmentsToSRT(exportSegments(task)))
	default:
		http.Error(w, "unsupported export format", http.StatusBadRequest)
	}
}

// exportSegments returns the task's segments, synthesizing a single segment
// from the result text when the engine produced none.
func exportSegments(task backend.Task) []backend.Segment {
	if len(task.Segments) > 0 {
		return task.Segments
	}
	text := strings.TrimSpace(task.ResultText)
	if text == "" {
		return nil
	}
	endMS := len(strings.Fields(text)) * 500
	if endMS < 2000 {
		endMS = 2000
	}
	return []backend.Segment{{Index: 0, StartMS: 0, EndMS: endMS, Text: text}}
}

func segmentsToSRT(segments []backend.Segment) string {
	blocks := make([]string, 0, len(segments))
	for i, seg := range segments {
		blocks = append(blocks, fmt.Sprintf("%d\n%s --> %s\n%s\n",
			i+1, msToTimestamp(seg.StartMS), msToTimestamp(seg.EndMS), seg.Text))
	}
	return strings.Join(blocks, "\n")
}

func msToTimestamp(ms int) string {
	seconds, millis := ms/1000, ms%1000
	minutes, seconds := seconds/60, seconds%60
	hours, minutes := minutes/60, minutes%60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
