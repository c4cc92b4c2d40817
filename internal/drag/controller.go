// Package drag tracks scrollbar thumb drags and the release lock that pins
// the landing page while it loads.
package drag

import (
	"math"
	"sync"
	"time"

	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/events"
	"github.com/tagview/tagview/internal/logging"
	"github.com/tagview/tagview/internal/scroll"
)

// State is the controller phase.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateReleaseLock
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateReleaseLock:
		return "release_lock"
	default:
		return "unknown"
	}
}

// Config configures a Controller.
type Config struct {
	ReleaseLock time.Duration

	// PreviewThreshold enables the preview grid for datasets at least
	// this large. Zero disables it.
	PreviewThreshold int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Resolution is the landing position computed on release.
type Resolution struct {
	AnchorIndex int
	Page        int
	Edge        scroll.Edge
	Fraction    float64
}

// Controller is the drag state machine. Methods are safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	cfg    Config
	bus    *events.EventBus
	logger *logging.Logger

	state      State
	totalItems int
	pageSize   int

	baselineMax int
	fraction    float64
	targetPage  int
	preview     bool

	lock      Resolution
	lockUntil time.Time
}

// New creates an idle controller.
func New(cfg Config, bus *events.EventBus, logger *logging.Logger) *Controller {
	if cfg.ReleaseLock <= 0 {
		cfg.ReleaseLock = constants.DefaultReleaseLock
	}
	if cfg.ReleaseLock < constants.MinReleaseLock {
		cfg.ReleaseLock = constants.MinReleaseLock
	}
	if cfg.ReleaseLock > constants.MaxReleaseLock {
		cfg.ReleaseLock = constants.MaxReleaseLock
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		cfg:      cfg,
		bus:      bus,
		logger:   logging.OrNop(logger).Component("drag"),
		pageSize: constants.DefaultPageSize,
	}
}

// SetDataset updates the dataset the fractions map onto.
func (c *Controller) SetDataset(totalItems, pageSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalItems = totalItems
	if pageSize > 0 {
		c.pageSize = pageSize
	}
}

func (c *Controller) lastPage() int {
	if c.totalItems <= 0 {
		return 0
	}
	return (c.totalItems - 1) / c.pageSize
}

func (c *Controller) fractionOf(pos int) float64 {
	return scroll.Fraction(pos, c.baselineMax)
}

// Press starts a drag. The domain maximum is frozen until release so the
// thumb maps onto a stable range.
func (c *Controller) Press(baselineDomainMax int, currentFraction float64) {
	c.mu.Lock()
	c.state = StateDragging
	c.baselineMax = baselineDomainMax
	c.fraction = math.Max(0, math.Min(1, currentFraction))
	c.targetPage = int(c.fraction * float64(c.lastPage()))
	c.preview = c.cfg.PreviewThreshold > 0 && c.totalItems >= c.cfg.PreviewThreshold
	c.lock = Resolution{}
	c.lockUntil = time.Time{}
	ev := c.eventLocked(-1)
	c.mu.Unlock()

	c.logger.Debug().Int("baseline_max", baselineDomainMax).Float64("fraction", currentFraction).Msg("drag started")
	c.bus.Publish(ev)
}

// Move tracks the thumb and reports whether the target page changed.
func (c *Controller) Move(sliderPos int) bool {
	c.mu.Lock()
	if c.state != StateDragging {
		c.mu.Unlock()
		return false
	}
	c.fraction = c.fractionOf(sliderPos)
	page := int(c.fraction * float64(c.lastPage()))
	changed := page != c.targetPage
	c.targetPage = page
	var ev *events.DragEvent
	if changed {
		ev = c.eventLocked(-1)
	}
	c.mu.Unlock()

	if ev != nil {
		c.bus.Publish(ev)
	}
	return changed
}

// Release ends the drag and starts the release lock. Positions within the
// edge band snap to the first or last item.
func (c *Controller) Release(sliderPos int) Resolution {
	c.mu.Lock()
	if c.state == StateDragging {
		c.fraction = c.fractionOf(sliderPos)
	}
	frac := c.fraction

	res := Resolution{Fraction: frac}
	switch {
	case c.totalItems <= 0:
		res.Edge = scroll.EdgeTop
	case frac <= constants.EdgeSnapFraction:
		res.Edge = scroll.EdgeTop
		res.Fraction = 0
	case frac >= 1-constants.EdgeSnapFraction:
		res.Edge = scroll.EdgeBottom
		res.Fraction = 1
		res.AnchorIndex = c.totalItems - 1
		res.Page = c.lastPage()
	default:
		res.Page = int(frac * float64(c.lastPage()))
		res.AnchorIndex = res.Page * c.pageSize
	}

	c.state = StateReleaseLock
	c.targetPage = res.Page
	c.preview = false
	c.lock = res
	c.lockUntil = c.cfg.Now().Add(c.cfg.ReleaseLock)
	ev := c.eventLocked(res.AnchorIndex)
	c.mu.Unlock()

	c.logger.Debug().
		Int("page", res.Page).
		Int("anchor", res.AnchorIndex).
		Str("edge", res.Edge.String()).
		Msg("drag released")
	c.bus.Publish(ev)
	return res
}

// expireLocked drops a release lock whose deadline has passed.
func (c *Controller) expireLocked(now time.Time) {
	if c.state == StateReleaseLock && !now.Before(c.lockUntil) {
		c.state = StateIdle
	}
}

// OwnerPage returns the page pinned by a live release lock.
func (c *Controller) OwnerPage(now time.Time) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(now)
	if c.state != StateReleaseLock {
		return 0, false
	}
	return c.lock.Page, true
}

// Lock returns the release resolution while the lock is live.
func (c *Controller) Lock() (Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.cfg.Now())
	if c.state != StateReleaseLock {
		return Resolution{}, false
	}
	return c.lock, true
}

// ConfirmLoaded clears the lock early once a pass against the locked page
// placed real items from it. Other pages leave the lock alone.
func (c *Controller) ConfirmLoaded(page int) bool {
	c.mu.Lock()
	if c.state != StateReleaseLock || page != c.lock.Page {
		c.mu.Unlock()
		return false
	}
	c.state = StateIdle
	ev := c.eventLocked(-1)
	c.mu.Unlock()

	c.logger.Debug().Int("page", page).Msg("release lock confirmed")
	c.bus.Publish(ev)
	return true
}

// Cancel drops any drag or lock.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.state = StateIdle
	c.preview = false
	c.mu.Unlock()
}

// State returns the current phase, expiring a stale lock first.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.cfg.Now())
	return c.state
}

// Dragging reports whether the thumb is held.
func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateDragging
}

// TargetPage returns the page under the thumb.
func (c *Controller) TargetPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetPage
}

// Fraction returns the last thumb fraction.
func (c *Controller) Fraction() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fraction
}

// BaselineMax returns the domain maximum frozen at press.
func (c *Controller) BaselineMax() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baselineMax
}

// Preview reports whether the drag renders a uniform preview grid.
func (c *Controller) Preview() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateDragging && c.preview
}

func (c *Controller) eventLocked(anchor int) *events.DragEvent {
	return &events.DragEvent{
		BaseEvent:  events.BaseEvent{EventType: events.EventDragState, Time: c.cfg.Now()},
		State:      c.state.String(),
		TargetPage: c.targetPage,
		Fraction:   c.fraction,
		Anchor:     anchor,
	}
}
