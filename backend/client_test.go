package backend_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/echosmith/echosmith/backend"
	"github.com/echosmith/echosmith/internal/fakebackend"
)

var log *zap.SugaredLogger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	log = l.Sugar()
}

func startFakeBackend(t *testing.T, token string, progressInterval time.Duration) *fakebackend.Server {
	t.Helper()
	server, err := fakebackend.NewServer(
		fakebackend.WithToken(token),
		fakebackend.WithProgressInterval(progressInterval),
	)
	require.NoError(t, err)
	go server.Run()
	t.Cleanup(func() {
		require.NoError(t, server.Stop())
	})
	return server
}

func TestHealth(t *testing.T) {
	server := startFakeBackend(t, "sekrit", 5*time.Millisecond)
	client := backend.NewClient(log, server.URL(), "sekrit")

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.True(t, health.FFmpeg)
	require.True(t, health.Models)
}

func TestUnauthorized(t *testing.T) {
	server := startFakeBackend(t, "sekrit", 5*time.Millisecond)
	client := backend.NewClient(log, server.URL(), "wrong",
		backend.WithCustomizeRetryableClient(func(r *retryablehttp.Client) {
			r.RetryMax = 0
		}))

	_, err := client.Tasks(context.Background())
	require.ErrorIs(t, err, backend.ErrUnauthorized)
}

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	server := startFakeBackend(t, "sekrit", time.Millisecond)
	client := backend.NewClient(log, server.URL(), "sekrit")

	id, err := client.CreateTask(ctx, "clip.wav", bytes.NewReader([]byte("fake-audio-bytes")), "en")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	tasks, err := client.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, id, tasks[0].ID)

	require.Eventually(t, func() bool {
		task, err := client.Task(ctx, id)
		return err == nil && task.Done()
	}, 5*time.Second, 10*time.Millisecond)

	task, err := client.Task(ctx, id)
	require.NoError(t, err)
	require.Equal(t, backend.TaskCompleted, task.Status)
	require.Equal(t, 1.0, task.Progress)
	require.NotEmpty(t, task.ResultText)
	require.NotEmpty(t, task.Segments)
	require.NotEmpty(t, task.Logs)

	require.NoError(t, client.DeleteTask(ctx, id))
	_, err = client.Task(ctx, id)
	require.ErrorIs(t, err, backend.ErrTaskNotFound)
}

func TestTaskNotFound(t *testing.T) {
	server := startFakeBackend(t, "", 5*time.Millisecond)
	client := backend.NewClient(log, server.URL(), "")

	_, err := client.Task(context.Background(), "nope")
	require.ErrorIs(t, err, backend.ErrTaskNotFound)
	require.ErrorIs(t, client.PauseTask(context.Background(), "nope"), backend.ErrTaskNotFound)
}

func TestPauseResume(t *testing.T) {
	ctx := context.Background()
	server := startFakeBackend(t, "sekrit", 20*time.Millisecond)
	client := backend.NewClient(log, server.URL(), "sekrit")

	id, err := client.CreateTask(ctx, "clip.wav", bytes.NewReader([]byte("fake-audio")), "")
	require.NoError(t, err)

	require.NoError(t, client.PauseTask(ctx, id))
	require.Eventually(t, func() bool {
		task, err := client.Task(ctx, id)
		return err == nil && task.Status == backend.TaskPaused
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, client.ResumeTask(ctx, id))
	require.Eventually(t, func() bool {
		task, err := client.Task(ctx, id)
		return err == nil && task.Status == backend.TaskCompleted
	}, 10*time.Second, 20*time.Millisecond)
}

func TestExportTask(t *testing.T) {
	ctx := context.Background()
	server := startFakeBackend(t, "sekrit", time.Millisecond)
	client := backend.NewClient(log, server.URL(), "sekrit")

	id, err := client.CreateTask(ctx, "clip.wav", bytes.NewReader([]byte("fake-audio")), "en")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, err := client.Task(ctx, id)
		return err == nil && task.Done()
	}, 5*time.Second, 10*time.Millisecond)

	task, err := client.Task(ctx, id)
	require.NoError(t, err)

	txt, err := client.ExportTask(ctx, id, "txt")
	require.NoError(t, err)
	require.Equal(t, task.ResultText, string(txt))

	raw, err := client.ExportTask(ctx, id, "json")
	require.NoError(t, err)
	var exported struct {
		ID       string            `json:"id"`
		Text     string            `json:"text"`
		Segments []backend.Segment `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(raw, &exported))
	require.Equal(t, id, exported.ID)
	require.Equal(t, task.ResultText, exported.Text)
	require.Equal(t, task.Segments, exported.Segments)

	srt, err := client.ExportTask(ctx, id, "srt")
	require.NoError(t, err)
	require.Contains(t, string(srt), "1\n00:00:00,000 --> 00:00:01,000\n"+task.Segments[0].Text)

	_, err = client.ExportTask(ctx, id, "docx")
	require.ErrorIs(t, err, backend.ErrUnsupportedFormat)

	_, err = client.ExportTask(ctx, "nope", "txt")
	require.ErrorIs(t, err, backend.ErrTaskNotFound)
}

func TestWatchTask(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server := startFakeBackend(t, "sekrit", time.Millisecond)
	client := backend.NewClient(log, server.URL(), "sekrit")

	id, err := client.CreateTask(ctx, "clip.wav", bytes.NewReader([]byte("fake-audio")), "en")
	require.NoError(t, err)

	events, err := client.WatchTask(ctx, id)
	require.NoError(t, err)

	var last backend.Task
	count := 0
	for event := range events {
		require.Equal(t, id, event.ID)
		last = event
		count++
	}
	// The stream may start mid-task, but it always ends on the terminal
	// snapshot.
	require.Greater(t, count, 0)
	require.Equal(t, backend.TaskCompleted, last.Status)
	require.Equal(t, 1.0, last.Progress)
}
