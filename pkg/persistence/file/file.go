// Package file provides file-based persistence for flows, executions, and
// execution logs. Intended for development and tests; everything is stored
// as JSON documents under a root directory.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/zapflow/zapflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root          string
	flowRepo      *FlowRepository
	executionRepo *ExecutionRepository
	logRepo       *LogRepository
}

// NewPersistence creates a new file persistence layer rooted at root.
// Accepts either a plain path or a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	// One lock shared by all repositories: executions and their logs are
	// written from the same engine step and must not interleave.
	mu := &sync.Mutex{}

	return &Persistence{
		root:          cleanRoot,
		flowRepo:      NewFlowRepository(cleanRoot, mu),
		executionRepo: NewExecutionRepository(cleanRoot, mu),
		logRepo:       NewLogRepository(cleanRoot, mu),
	}
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) LogRepository() persistence.LogRepository {
	return p.logRepo
}
