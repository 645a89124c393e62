package session

import (
	"context"
	"io"
	"sync"

	"github.com/fmueller/voxtype/internal/record"
)

// pipeBackend is a record.Backend whose streams the test writes into.
type pipeBackend struct {
	mu      sync.Mutex
	writers []*io.PipeWriter
}

func (p *pipeBackend) Name() string    { return "pipe" }
func (p *pipeBackend) Available() bool { return true }

func (p *pipeBackend) Open(context.Context, record.Config) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	p.mu.Lock()
	p.writers = append(p.writers, pw)
	p.mu.Unlock()
	return pr, nil
}

func (p *pipeBackend) ListDevices(context.Context) (string, error) { return "pipe", nil }

func (p *pipeBackend) writer(i int) *io.PipeWriter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writers[i]
}

func (p *pipeBackend) opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writers)
}
