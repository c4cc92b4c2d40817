// Package resources sizes the page load pool and the resident page budget
// from the host's CPU count and available memory.
package resources

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tagview/tagview/internal/constants"
)

// fallbackAvailableMemory is assumed when the host cannot be queried (2 GB).
const fallbackAvailableMemory = 2 * 1024 * 1024 * 1024

// Config holds user overrides for the resource manager.
type Config struct {
	LoadWorkers      int // 0 = auto-detect
	MaxResidentPages int // 0 = auto-detect
}

// Manager holds the computed pool and memory budgets.
type Manager struct {
	loadWorkers     int
	residentPages   int
	cores           int
	availableMemory uint64
}

// Stats is a snapshot of the manager's sizing decisions.
type Stats struct {
	LoadWorkers      int
	ResidentPages    int
	Cores            int
	AvailableMemory  uint64
	WorkersOverride  bool
	ResidentOverride bool
}

// Host queries, replaceable in tests.
var (
	coresFn  = detectCores
	memoryFn = detectAvailableMemory
)

// NewManager creates a resource manager.
func NewManager(config Config) *Manager {
	cores := coresFn()
	available := memoryFn()

	// Page loads are I/O bound but decode dimensions on the same goroutine,
	// so one worker per core up to the cap.
	workers := clamp(cores, constants.MinLoadWorkers, constants.MaxLoadWorkers)
	if config.LoadWorkers > 0 {
		workers = clamp(config.LoadWorkers, constants.MinLoadWorkers, constants.MaxLoadWorkers)
	}

	// Spend at most a quarter of available memory on resident pages.
	budget := int(available / 4 / (constants.MemoryPerPageMB * 1024 * 1024))
	pages := clamp(budget, constants.MinResidentPages, constants.MaxResidentPages)
	if config.MaxResidentPages > 0 {
		pages = clamp(config.MaxResidentPages, constants.MinResidentPages, constants.MaxResidentPages)
	}

	return &Manager{
		loadWorkers:     workers,
		residentPages:   pages,
		cores:           cores,
		availableMemory: available,
	}
}

// LoadWorkers returns the page load pool size.
func (m *Manager) LoadWorkers() int {
	return m.loadWorkers
}

// ResidentPages returns the maximum number of loaded pages to keep.
func (m *Manager) ResidentPages() int {
	return m.residentPages
}

// GetStats returns the manager's sizing decisions.
func (m *Manager) GetStats(config Config) Stats {
	return Stats{
		LoadWorkers:      m.loadWorkers,
		ResidentPages:    m.residentPages,
		Cores:            m.cores,
		AvailableMemory:  m.availableMemory,
		WorkersOverride:  config.LoadWorkers > 0,
		ResidentOverride: config.MaxResidentPages > 0,
	}
}

func detectCores() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func detectAvailableMemory() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Available == 0 {
		return fallbackAvailableMemory
	}
	return vm.Available
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
