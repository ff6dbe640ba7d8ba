package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockSource struct {
	mu    sync.Mutex
	calls int
	path  string
	err   error
}

func (m *mockSource) Snapshot(ctx context.Context, dir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.path, nil
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (m *mockUploader) Upload(ctx context.Context, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, filePath)
	return m.err
}

func (m *mockUploader) uploaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

func TestBackupCoordinatorRunsImmediately(t *testing.T) {
	source := &mockSource{path: "/backups/daybook-20240311-120000.db"}
	uploader := &mockUploader{}
	c := NewBackupCoordinator(source, uploader, time.Hour, "/backups")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return source.callCount() >= 1 })
	cancel()
	<-done

	got := uploader.uploaded()
	if len(got) != 1 || got[0] != "/backups/daybook-20240311-120000.db" {
		t.Errorf("unexpected uploads %v", got)
	}
}

func TestBackupCoordinatorTicks(t *testing.T) {
	source := &mockSource{path: "/backups/b.db"}
	c := NewBackupCoordinator(source, &mockUploader{}, 10*time.Millisecond, "/backups")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return source.callCount() >= 3 })
	cancel()
	<-done
}

func TestBackupCoordinatorSnapshotFailureSkipsUpload(t *testing.T) {
	source := &mockSource{err: errors.New("disk full")}
	uploader := &mockUploader{}
	c := NewBackupCoordinator(source, uploader, time.Hour, "/backups")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return source.callCount() >= 1 })
	cancel()
	<-done

	if len(uploader.uploaded()) != 0 {
		t.Error("expected no uploads after snapshot failure")
	}
}

func TestBackupCoordinatorNilUploader(t *testing.T) {
	source := &mockSource{path: "/backups/b.db"}
	c := NewBackupCoordinator(source, nil, time.Hour, "/backups")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return source.callCount() >= 1 })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("coordinator did not stop on cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
