package viz

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goutils "go.viam.com/utils"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/planning"
)

// ImagePublisher writes every published planning state as a numbered PNG
// frame. Writes happen on background goroutines so the planning loop is not
// paced by disk; failures are logged and dropped.
type ImagePublisher struct {
	dir    string
	cfg    DrawConfig
	logger logging.Logger

	frame                   int
	activeBackgroundWorkers sync.WaitGroup
}

// NewImagePublisher creates the output directory and returns a publisher
// writing frames into it.
func NewImagePublisher(dir string, cfg DrawConfig, logger logging.Logger) (*ImagePublisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ImagePublisher{dir: dir, cfg: cfg, logger: logger}, nil
}

// Publish renders the state to the next numbered frame. It is meant to be
// called from a single planning loop and is not safe for concurrent use.
func (p *ImagePublisher) Publish(state planning.State) {
	path := filepath.Join(p.dir, fmt.Sprintf("frame_%04d.png", p.frame))
	p.frame++
	p.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer p.activeBackgroundWorkers.Done()
		if err := DrawChain2D(state, p.cfg, path); err != nil {
			p.logger.Warnw("failed to write planning frame", "path", path, "error", err)
		}
	})
}

// Flush blocks until all pending frame writes have finished.
func (p *ImagePublisher) Flush() {
	p.activeBackgroundWorkers.Wait()
}
