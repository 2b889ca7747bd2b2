package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"option-screener-go/internal/evaluator"
	"option-screener-go/internal/form"
	"option-screener-go/internal/models"
	"option-screener-go/internal/persistence"
	"option-screener-go/internal/ranking"
)

// Persister receives every changed entity. Implementations must not fail or block the caller.
type Persister interface {
	SaveTrades([]models.TradeInput)
	SaveTradeDisplay([]models.TradeDisplay)
	SaveTolerances(models.Tolerances)
	SaveToleranceDisplay(models.ToleranceDisplay)
}

var _ Persister = (*persistence.Lifecycle)(nil)

// Session is the state behind one screener form: the roster being edited,
// the thresholds, the last evaluation's results and how they are displayed.
// Every method is atomic with respect to the others.
type Session struct {
	ID string

	logger    *zap.Logger
	evaluator evaluator.Client
	persist   Persister

	mu         sync.Mutex
	roster     *form.Roster
	tolerances *form.Tolerances
	results    []models.ResultRow
	expanded   map[int]bool
	sort       ranking.SortState
}

// New creates an empty session.
func New(logger *zap.Logger, client evaluator.Client, persist Persister) *Session {
	id := uuid.NewString()
	return &Session{
		ID:         id,
		logger:     logger.Named("session").With(zap.String("session_id", id)),
		evaluator:  client,
		persist:    persist,
		roster:     form.NewRoster(),
		tolerances: form.NewTolerances(),
		expanded:   make(map[int]bool),
		sort:       ranking.DefaultSortState(),
	}
}

// Restore creates a session hydrated from a persisted snapshot.
func Restore(logger *zap.Logger, client evaluator.Client, persist Persister, snap persistence.Snapshot) *Session {
	s := New(logger, client, persist)
	s.roster = form.LoadRoster(snap.Trades, snap.TradeDisplay)
	s.tolerances = form.LoadTolerances(snap.Tolerances, snap.ToleranceDisplay)
	s.logger.Info("Session restored",
		zap.Int("trades", s.roster.Len()),
		zap.Bool("trades_slot", snap.Loaded[persistence.SlotTrades]),
		zap.Bool("display_slot", snap.Loaded[persistence.SlotTradeDisplay]),
		zap.Bool("tolerance_slots", snap.Loaded[persistence.SlotTolerances] && snap.Loaded[persistence.SlotToleranceDisplay]),
	)
	return s
}

func (s *Session) saveRoster() {
	s.persist.SaveTrades(s.roster.Trades())
	s.persist.SaveTradeDisplay(s.roster.Displays())
}

func (s *Session) saveTolerances() {
	s.persist.SaveTolerances(s.tolerances.Values())
	s.persist.SaveToleranceDisplay(s.tolerances.DisplayValues())
}

// AddTrade appends an empty trade row.
func (s *Session) AddTrade() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster.Add()
	s.saveRoster()
}

// DuplicateTrade copies row i to i+1. Out-of-range indexes are ignored.
func (s *Session) DuplicateTrade(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roster.Duplicate(i) {
		s.saveRoster()
	}
}

// RemoveTrade deletes row i. Out-of-range indexes are ignored.
func (s *Session) RemoveTrade(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roster.Remove(i) {
		s.saveRoster()
	}
}

// ResetTrades empties the roster and discards results and their expansion state.
func (s *Session) ResetTrades() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster.Reset()
	s.results = nil
	s.expanded = make(map[int]bool)
	s.saveRoster()
}

// EditTrade applies a keystroke to one field of row i.
func (s *Session) EditTrade(i int, field form.FieldName, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.roster.OnChange(i, field, raw); err != nil {
		return err
	}
	s.saveRoster()
	return nil
}

// CommitTrade normalizes the display text of one field of row i.
func (s *Session) CommitTrade(i int, field form.FieldName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.roster.OnCommit(i, field); err != nil {
		return err
	}
	s.persist.SaveTradeDisplay(s.roster.Displays())
	return nil
}

// EditTolerance applies a keystroke to one threshold. Rejected input leaves the threshold unchanged.
func (s *Session) EditTolerance(key form.ToleranceKey, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.tolerances.OnChange(key, raw)
	if err != nil {
		return err
	}
	if changed {
		s.saveTolerances()
	}
	return nil
}

// CommitTolerance clamps one threshold once editing finishes.
func (s *Session) CommitTolerance(key form.ToleranceKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.tolerances.OnCommit(key)
	if err != nil {
		return err
	}
	if changed {
		s.saveTolerances()
	}
	return nil
}

// ClearTolerances unsets every threshold.
func (s *Session) ClearTolerances() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tolerances.Clear()
	s.saveTolerances()
}

// Evaluate sends the roster and thresholds to the evaluator and replaces the results
// with its answer. On failure the previous results are kept and the error is returned.
// The lock is not held during the call; if two evaluations overlap, the one that
// completes last wins.
func (s *Session) Evaluate(ctx context.Context) error {
	s.mu.Lock()
	req := evaluator.Request{
		Tolerances: s.tolerances.Values(),
		Trades:     s.roster.Trades(),
	}
	s.mu.Unlock()

	rows, err := s.evaluator.Evaluate(ctx, req)
	if err != nil {
		s.logger.Warn("Evaluation failed, keeping previous results", zap.Error(err))
		return fmt.Errorf("evaluation failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = rows
	s.expanded = make(map[int]bool)
	s.logger.Info("Results replaced", zap.Int("results", len(rows)))
	return nil
}

// ClearResults discards the results and their expansion state.
func (s *Session) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
	s.expanded = make(map[int]bool)
}

// SelectSort handles a click on a results column header.
func (s *Session) SelectSort(key ranking.SortKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sort.Select(key)
}

// ToggleExpanded opens or closes the breakdown of the result shown at position i.
// It reports false when i is not a displayed position.
func (s *Session) ToggleExpanded(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.results) {
		return false
	}
	if s.expanded[i] {
		delete(s.expanded, i)
	} else {
		s.expanded[i] = true
	}
	return true
}

// Results returns the results in the order the evaluator returned them.
func (s *Session) Results() []models.ResultRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

// RankedResults returns the results in display order.
func (s *Session) RankedResults() []models.ResultRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ranking.Rank(s.results, s.sort.Key, s.sort.Direction)
}

// View is a consistent snapshot of everything the form shows.
type View struct {
	Trades           []models.TradeInput     `json:"trades"`
	TradeDisplay     []models.TradeDisplay   `json:"tradeDisplay"`
	Tolerances       models.Tolerances       `json:"tolerances"`
	ToleranceDisplay models.ToleranceDisplay `json:"toleranceDisplay"`
	Results          []models.ResultRow      `json:"results"`
	Expanded         []int                   `json:"expanded"`
	Sort             ranking.SortState       `json:"sort"`
}

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	expanded := make([]int, 0, len(s.expanded))
	for i := range s.results {
		if s.expanded[i] {
			expanded = append(expanded, i)
		}
	}

	results := ranking.Rank(s.results, s.sort.Key, s.sort.Direction)
	if results == nil {
		results = []models.ResultRow{}
	}

	return View{
		Trades:           s.roster.Trades(),
		TradeDisplay:     s.roster.Displays(),
		Tolerances:       s.tolerances.Values(),
		ToleranceDisplay: s.tolerances.DisplayValues(),
		Results:          results,
		Expanded:         expanded,
		Sort:             s.sort,
	}
}
