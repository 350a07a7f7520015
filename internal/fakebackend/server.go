// Package fakebackend is an in-memory stand-in for the real transcription
// backend. It implements the same HTTP and WebSocket surface and the same
// bearer-token contract, with simulated task progress, so the shell and its
// client can be exercised without the real engine.
package fakebackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/echosmith/echosmith/backend"
)

// progressSteps is the number of simulated progress updates per task.
const progressSteps = 20

// statusUnauthorizedToken is the WebSocket close code the real backend sends
// on a bad token.
const statusUnauthorizedToken = websocket.StatusCode(4401)

type Server struct {
	logger           *zap.SugaredLogger
	token            string
	listenAddr       string
	progressInterval time.Duration

	store      *store
	listener   net.Listener
	httpServer *http.Server
}

type Option func(s *Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l.Named("fakebackend").Sugar()
	}
}

// WithToken sets the bearer token required on the API surface. An empty
// token disables auth, as in the real backend.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

// WithProgressInterval sets the delay between simulated progress updates.
func WithProgressInterval(d time.Duration) Option {
	return func(s *Server) {
		s.progressInterval = d
	}
}

// NewServer constructs a fake backend and binds its listener, so Addr is
// valid immediately; call Run to start serving.
func NewServer(opts ...Option) (*Server, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	s := &Server{
		logger:           logger.Named("fakebackend").Sugar(),
		listenAddr:       "127.0.0.1:0",
		progressInterval: 50 * time.Millisecond,
		store:            newStore(),
	}
	for _, o := range opts {
		o(s)
	}

	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.listenAddr, err)
	}
	s.listener = listener

	router := httprouter.New()
	router.GET("/api/health", s.health)
	router.GET("/api/tasks", s.auth(s.listTasks))
	router.GET("/api/tasks/:id", s.auth(s.getTask))
	router.POST("/api/tasks", s.auth(s.createTask))
	router.DELETE("/api/tasks/:id", s.auth(s.deleteTask))
	router.GET("/api/tasks/:id/export", s.auth(s.exportTask))
	router.POST("/api/tasks/:id/pause", s.auth(s.pauseTask))
	router.POST("/api/tasks/:id/resume", s.auth(s.resumeTask))
	router.GET("/ws/tasks/:id", s.taskUpdates)

	s.httpServer = &http.Server{Handler: router}
	return s, nil
}

// Addr is the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// URL is the server's loopback base URL.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// Run serves until Stop is called.
func (s *Server) Run() error {
	s.logger.Infof("fake backend listening on %s", s.Addr())
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop() error {
	return s.httpServer.Close()
}

func (s *Server) tokenOK(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.token
}

func (s *Server) auth(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		if !s.tokenOK(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r, params)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugf("error writing response: %s", err)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, backend.Health{FFmpeg: true, Models: true, Status: "ok"})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, s.store.list())
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	task, ok := s.store.get(params.ByName("id"))
	if !ok {
		http.Error(w, "no such task", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()
	// Consume the upload; the fake never transcribes it.
	size, err := io.Copy(io.Discard, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = "zh"
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	now := unixNow()
	s.store.create(backend.Task{
		ID:       id,
		Status:   backend.TaskQueued,
		Progress: 0,
		Source: map[string]interface{}{
			"type":     "upload",
			"name":     header.Filename,
			"language": language,
			"size":     size,
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	s.logger.Debugf("created task %s for upload %q (%d bytes)", id, header.Filename, size)

	go s.runTask(id)

	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("id")
	if !s.store.delete(id) {
		http.Error(w, "no such task", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) pauseTask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("id")
	ok := s.store.update(id, func(ts *taskState) {
		ts.paused = true
		ts.task.Status = backend.TaskPaused
		ts.task.Message = "paused"
	})
	if !ok {
		http.Error(w, "no such task", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "paused"})
}

func (s *Server) resumeTask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("id")
	ok := s.store.update(id, func(ts *taskState) {
		ts.paused = false
		ts.task.Status = backend.TaskRunning
		ts.task.Message = "resumed"
	})
	if !ok {
		http.Error(w, "no such task", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "resumed"})
}

// taskUpdates streams task snapshots over a WebSocket. The real backend
// accepts the token either as a bearer header or a ?token= query parameter,
// and closes with code 4401 on a bad token.
func (s *Server) taskUpdates(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debugf("WebSocket accept error: %s", err)
		return
	}

	if !s.tokenOK(r) && r.URL.Query().Get("token") != s.token {
		conn.Close(statusUnauthorizedToken, "invalid token")
		return
	}

	id := params.ByName("id")
	events, cancel, ok := s.store.subscribe(id)
	if !ok {
		conn.Close(websocket.StatusPolicyViolation, "no such task")
		return
	}
	defer cancel()
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				s.logger.Debugf("error writing task event: %s", err)
				return
			}
		}
	}
}

// runTask drives a task through the simulated transcription lifecycle,
// honoring pause and cancellation flags the same way the real engine checks
// its pause event and cancellation callback between decode windows.
func (s *Server) runTask(id string) {
	s.store.update(id, func(ts *taskState) {
		ts.task.Status = backend.TaskRunning
		ts.task.Message = "preparing"
		ts.task.Progress = 0.01
	})

	for step := 1; step <= progressSteps; step++ {
		time.Sleep(s.progressInterval)

		for {
			paused, cancelled, ok := s.flagsOrCancel(id)
			if !ok || cancelled {
				return
			}
			if !paused {
				break
			}
			// Reassert paused status in case a progress update raced the
			// pause request.
			s.store.update(id, func(ts *taskState) {
				ts.task.Status = backend.TaskPaused
			})
			time.Sleep(s.progressInterval)
		}

		progress := float64(step) / float64(progressSteps+1)
		s.store.update(id, func(ts *taskState) {
			ts.task.Status = backend.TaskRunning
			ts.task.Progress = progress
			ts.task.Message = "transcribing"
			ts.task.Logs = append(ts.task.Logs, backend.LogEntry{
				Timestamp: unixNow(),
				Type:      "progress",
				Message:   "transcribing",
				Progress:  progress,
			})
		})
	}

	s.store.update(id, func(ts *taskState) {
		ts.task.Status = backend.TaskCompleted
		ts.task.Progress = 1.0
		ts.task.Message = "done"
		ts.task.ResultText = "simulated transcription"
		ts.task.Segments = []backend.Segment{
			{Index: 0, StartMS: 0, EndMS: 1000, Text: "simulated transcription"},
		}
	})
}

func (s *Server) flagsOrCancel(id string) (paused, cancelled, ok bool) {
	paused, cancelled, ok = s.store.flags(id)
	if ok && cancelled {
		s.store.update(id, func(ts *taskState) {
			ts.task.Status = backend.TaskCancelled
			ts.task.Message = "cancelled"
		})
	}
	return paused, cancelled, ok
}
