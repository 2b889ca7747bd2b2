package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"option-screener-go/internal/database"
	"option-screener-go/internal/models"
)

// Slot names in the durable store.
const (
	SlotTrades           = "os_trades"
	SlotTradeDisplay     = "os_tradeDisplay"
	SlotTolerances       = "os_tolerances"
	SlotToleranceDisplay = "os_displayTolerances"
)

const writeTimeout = 5 * time.Second

// Snapshot is what was found in the store at startup. A slot that was absent or
// could not be decoded is left at its zero value and reported false in Loaded.
type Snapshot struct {
	Trades           []models.TradeInput
	TradeDisplay     []models.TradeDisplay
	Tolerances       models.Tolerances
	ToleranceDisplay models.ToleranceDisplay
	Loaded           map[string]bool
}

// Lifecycle reads the four slots once and writes each slot whenever its entity changes.
// Saves only queue the latest value of a slot; a background writer started by Start
// drains the queue, and the scheduled flush retries whatever failed. Callers never
// wait on the store and never see its errors.
type Lifecycle struct {
	store  database.KeyValueStore
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]string
	kick    chan struct{}
	done    chan struct{}

	// flushMu keeps flushes in order so an older value never overwrites a newer one.
	flushMu sync.Mutex

	cron *cron.Cron
}

// New creates a Lifecycle over store.
func New(store database.KeyValueStore, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		store:   store,
		logger:  logger.Named("persistence"),
		pending: make(map[string]string),
	}
}

// Load reads every slot. It never fails: read and decode errors are logged and the slot is skipped.
func (l *Lifecycle) Load(ctx context.Context) Snapshot {
	snap := Snapshot{Loaded: make(map[string]bool, 4)}
	snap.Loaded[SlotTrades] = l.load(ctx, SlotTrades, &snap.Trades)
	snap.Loaded[SlotTradeDisplay] = l.load(ctx, SlotTradeDisplay, &snap.TradeDisplay)
	snap.Loaded[SlotTolerances] = l.load(ctx, SlotTolerances, &snap.Tolerances)
	snap.Loaded[SlotToleranceDisplay] = l.load(ctx, SlotToleranceDisplay, &snap.ToleranceDisplay)
	return snap
}

func (l *Lifecycle) load(ctx context.Context, name string, into any) bool {
	raw, ok, err := l.store.Get(ctx, name)
	if err != nil {
		l.logger.Warn("Failed to read slot, ignoring", zap.String("slot", name), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		l.logger.Warn("Malformed slot, ignoring", zap.String("slot", name), zap.Error(err))
		return false
	}
	return true
}

// SaveTrades writes the canonical roster.
func (l *Lifecycle) SaveTrades(trades []models.TradeInput) {
	l.save(SlotTrades, trades)
}

// SaveTradeDisplay writes the roster's display text.
func (l *Lifecycle) SaveTradeDisplay(displays []models.TradeDisplay) {
	l.save(SlotTradeDisplay, displays)
}

// SaveTolerances writes the canonical thresholds.
func (l *Lifecycle) SaveTolerances(t models.Tolerances) {
	l.save(SlotTolerances, t)
}

// SaveToleranceDisplay writes the thresholds' display text.
func (l *Lifecycle) SaveToleranceDisplay(d models.ToleranceDisplay) {
	l.save(SlotToleranceDisplay, d)
}

func (l *Lifecycle) save(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.logger.Debug("Failed to encode slot", zap.String("slot", name), zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[name] = string(data)
	if l.kick != nil {
		select {
		case l.kick <- struct{}{}:
		default:
		}
	}
}

func (l *Lifecycle) put(name, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return l.store.Put(ctx, name, value)
}

// Flush writes every queued slot. A slot that fails stays queued unless a newer
// value was saved while the write was in flight.
func (l *Lifecycle) Flush() {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	l.mu.Lock()
	batch := l.pending
	l.pending = make(map[string]string, len(batch))
	l.mu.Unlock()

	for name, value := range batch {
		if err := l.put(name, value); err != nil {
			l.logger.Debug("Failed to write slot, will retry on next flush", zap.String("slot", name), zap.Error(err))
			l.mu.Lock()
			if _, newer := l.pending[name]; !newer {
				l.pending[name] = value
			}
			l.mu.Unlock()
		}
	}
}

// Pending returns the number of slots waiting to be written.
func (l *Lifecycle) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Start launches the background writer and schedules Flush with a cron spec such as "@every 30s".
func (l *Lifecycle) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, l.Flush); err != nil {
		return fmt.Errorf("register flush schedule: %w", err)
	}

	l.mu.Lock()
	if l.kick == nil {
		l.kick = make(chan struct{}, 1)
		l.done = make(chan struct{})
		go l.writeLoop(l.kick, l.done)
	}
	if l.cron != nil {
		l.cron.Stop()
	}
	l.cron = c
	l.mu.Unlock()

	c.Start()
	l.logger.Info("Persistence flush scheduled", zap.String("schedule", schedule))
	return nil
}

func (l *Lifecycle) writeLoop(kick <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for range kick {
		l.Flush()
	}
}

// Stop halts the schedule and the writer, waits for them, and flushes once more.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	c, kick, done := l.cron, l.kick, l.done
	l.cron, l.kick, l.done = nil, nil, nil
	l.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if kick != nil {
		close(kick)
		<-done
	}
	l.Flush()
}
