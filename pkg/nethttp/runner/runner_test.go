package runner

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

type fakeServer struct {
	mu        sync.Mutex
	served    chan struct{}
	stop      chan struct{}
	shutdowns int
	serveErr  error
}

func newFakeServer() *fakeServer {
	return &fakeServer{served: make(chan struct{}), stop: make(chan struct{})}
}

func (s *fakeServer) Serve(l net.Listener) error {
	defer l.Close()
	close(s.served)
	if s.serveErr != nil {
		return s.serveErr
	}
	<-s.stop
	return nil
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns++
	close(s.stop)
	return nil
}

func TestRunServer_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := newFakeServer()
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	if err := RunServer(ctx, srv, "0", errCh, &wg, time.Second); err != nil {
		t.Fatalf("RunServer: %v", err)
	}
	<-srv.served
	cancel()
	wg.Wait()

	if srv.shutdowns != 1 {
		t.Fatalf("shutdowns=%d", srv.shutdowns)
	}
	select {
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	default:
	}
}

func TestRunServer_ReportsServeError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := newFakeServer()
	srv.serveErr = errors.New("boom")
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	if err := RunServer(ctx, srv, "0", errCh, &wg, time.Second); err != nil {
		t.Fatalf("RunServer: %v", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, srv.serveErr) {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve error not reported")
	}
	cancel()
	wg.Wait()
}

func TestRunServer_ListenError(t *testing.T) {
	listen := func(string, string) (net.Listener, error) { return nil, errors.New("in use") }
	var wg sync.WaitGroup
	err := runServer(context.Background(), newFakeServer(), "8080", make(chan error), &wg, listen, 0)
	if err == nil {
		t.Fatalf("expected listen error")
	}
}
