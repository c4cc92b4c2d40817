package constants

import (
	"time"
)

// Paging
const (
	// DefaultPageSize - number of items per page (the unit of I/O and eviction)
	DefaultPageSize = 1000

	// DefaultBufferRadius - pages kept loaded on each side of the current page
	DefaultBufferRadius = 3

	// MinBufferRadius / MaxBufferRadius - allowed range for the buffer radius
	MinBufferRadius = 1
	MaxBufferRadius = 6

	// DefaultLoadTimeout - per-attempt timeout for a single page load
	DefaultLoadTimeout = 10 * time.Second

	// DefaultLoadMaxRetries - attempts per page before the page returns to Unloaded
	DefaultLoadMaxRetries = 4

	// LoadRetryInitialDelay - base delay for page load backoff
	LoadRetryInitialDelay = 100 * time.Millisecond

	// LoadRetryMaxDelay - cap on page load backoff
	LoadRetryMaxDelay = 2 * time.Second

	// FailedPageRetryDelay - wait before re-planning a window page whose retries ran out
	FailedPageRetryDelay = 250 * time.Millisecond

	// FailedPageRetryMaxDelay - cap on the re-plan delay after repeated failures
	FailedPageRetryMaxDelay = 10 * time.Second
)

// Load pool sizing
const (
	// MinLoadWorkers - smallest page load pool
	MinLoadWorkers = 1

	// MaxLoadWorkers - largest page load pool, regardless of core count
	MaxLoadWorkers = 8

	// MemoryPerPageMB - rough resident cost of one loaded page (rows plus decode buffers)
	MemoryPerPageMB = 8

	// MinResidentPages - never cap resident pages below one full window at the minimum radius
	MinResidentPages = 2*MinBufferRadius + 1

	// MaxResidentPages - upper bound on resident pages when memory is plentiful
	MaxResidentPages = 64
)

// Layout
const (
	// DefaultColumnWidth - thumbnail column width in pixels
	DefaultColumnWidth = 200

	// DefaultSpacing - gap between columns and between stacked items
	DefaultSpacing = 2

	// DomainFloor - minimum scroll domain so the scrollbar never collapses
	DomainFloor = 10000

	// MinDomainRowHeight - row height floor used when estimating the scroll domain
	MinDomainRowHeight = 10

	// FallbackSpacerRowHeight - row height for an empty window spacer when no average is known
	FallbackSpacerRowHeight = 100

	// MinSeedRowHeight - floor for the seed average row height
	MinSeedRowHeight = 32

	// MinAverageSample / MaxAverageSample - accepted range for a measured average row height
	MinAverageSample = 10
	MaxAverageSample = 5000

	// AverageSmoothing - weight of a new sample in the running average
	AverageSmoothing = 0.1

	// DefaultFullLayoutMaxItems - datasets above this size always use windowed layout
	DefaultFullLayoutMaxItems = 50000

	// DefaultFullLayoutMinCoverage - fraction of measured aspect ratios required for full layout
	DefaultFullLayoutMinCoverage = 0.95
)

// Recalculation scheduling
const (
	// DefaultRecalcDelayMin - debounce for a single filter edit
	DefaultRecalcDelayMin = 500 * time.Millisecond

	// DefaultRecalcDelayMax - debounce while the user is typing quickly
	DefaultRecalcDelayMax = 2000 * time.Millisecond

	// RecalcDelayFast - debounce for explicit actions (click, resize, zoom, drag release)
	RecalcDelayFast = 100 * time.Millisecond

	// RecalcDelayRetry - delay before retrying a pass whose window had no loaded items
	RecalcDelayRetry = 120 * time.Millisecond

	// RecalcDelayScroll - debounce for scroll driven page changes
	RecalcDelayScroll = 150 * time.Millisecond

	// FilterTypingBurst - edits closer together than this count as fast typing
	FilterTypingBurst = 300 * time.Millisecond

	// DefaultRecalcWatchdog - a pass running longer than this is abandoned
	DefaultRecalcWatchdog = 5 * time.Second
)

// Drag
const (
	// DefaultReleaseLock - how long the released page owns the viewport
	DefaultReleaseLock = 6 * time.Second

	// MinReleaseLock / MaxReleaseLock - allowed range for the release lock
	MinReleaseLock = 4 * time.Second
	MaxReleaseLock = 8 * time.Second

	// EdgeSnapFraction - slider fractions within this distance of 0 or 1 snap to the edge
	EdgeSnapFraction = 0.02

	// DefaultPreviewThreshold - datasets at least this large show a uniform grid while dragging
	DefaultPreviewThreshold = 10000
)

// Layout cache
const (
	// LayoutCacheVersion - bump to invalidate every on-disk layout cache entry
	LayoutCacheVersion = 2

	// AspectRatioTolerance - max per-item aspect ratio drift for a disk cache hit
	AspectRatioTolerance = 0.001

	// DefaultMemoryCacheEntries - in-memory layout results kept
	DefaultMemoryCacheEntries = 16

	// DiskSafetyMargin - multiplier applied to bytes about to be written
	DiskSafetyMargin = 1.1
)

// Dataset index
const (
	// IndexDBName - SQLite index file created inside the indexed directory
	IndexDBName = ".tagview_index.db"

	// IndexSchemaVersion - bump to clear cached dimensions on open
	IndexSchemaVersion = 1

	// IndexCommitBatch - rows written per transaction during a scan
	IndexCommitBatch = 500

	// IndexRowEstimate - approximate on-disk bytes per indexed file
	IndexRowEstimate = 256
)

// Event bus buffer sizing
const (
	// EventBusDefaultBuffer - per-subscriber channel buffer
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - cap on per-subscriber channel buffer
	EventBusMaxBuffer = 10000
)

// Remote page source
const (
	// RemoteDialTimeout - TCP connect timeout
	RemoteDialTimeout = 10 * time.Second

	// RemoteKeepAlive - TCP keep-alive period
	RemoteKeepAlive = 30 * time.Second

	// RemoteIdleConnTimeout - idle connections are closed after this
	RemoteIdleConnTimeout = 90 * time.Second

	// RemoteTLSHandshakeTimeout - TLS handshake timeout
	RemoteTLSHandshakeTimeout = 10 * time.Second

	// RemoteMaxConnsPerHost - page loads run in parallel against one host
	RemoteMaxConnsPerHost = 16

	// RemoteRetryMax - retries inside one HTTP request (on top of page load retries)
	RemoteRetryMax = 2

	// RemoteRetryWaitMin / RemoteRetryWaitMax - backoff bounds between HTTP retries
	RemoteRetryWaitMin = 100 * time.Millisecond
	RemoteRetryWaitMax = 1 * time.Second

	// RemoteRatePerSec / RemoteBurst - client side request budget (0 rate = unlimited)
	RemoteRatePerSec = 20.0
	RemoteBurst      = 40.0
)
