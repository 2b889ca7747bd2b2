package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"option-screener-go/internal/database"
	"option-screener-go/internal/evaluator"
	"option-screener-go/internal/form"
	"option-screener-go/internal/models"
	"option-screener-go/internal/persistence"
	"option-screener-go/internal/ranking"
)

// MockClient is a mock implementation of evaluator.Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Evaluate(ctx context.Context, req evaluator.Request) ([]models.ResultRow, error) {
	args := m.Called(req)
	rows, _ := args.Get(0).([]models.ResultRow)
	return rows, args.Error(1)
}

// gatedClient answers each Evaluate call only when the test releases it.
type gatedClient struct {
	calls chan chan []models.ResultRow
}

func (g *gatedClient) Evaluate(ctx context.Context, req evaluator.Request) ([]models.ResultRow, error) {
	reply := make(chan []models.ResultRow)
	g.calls <- reply
	select {
	case rows := <-reply:
		return rows, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type testStore struct {
	*database.MemoryStore
	lifecycle *persistence.Lifecycle
}

// setupTest creates a session backed by an in-memory store.
func setupTest(t *testing.T) (*Session, *MockClient, testStore) {
	store := testStore{MemoryStore: database.NewMemoryStore()}
	store.lifecycle = persistence.New(store.MemoryStore, zap.NewNop())
	client := new(MockClient)
	s := New(zap.NewNop(), client, store.lifecycle)
	return s, client, store
}

// slot flushes queued writes and decodes one stored slot.
func slot(t *testing.T, store testStore, name string, into any) {
	store.lifecycle.Flush()
	raw, ok, err := store.Get(context.Background(), name)
	require.NoError(t, err)
	require.True(t, ok, "slot %s was never written", name)
	require.NoError(t, json.Unmarshal([]byte(raw), into))
}

func TestSession_EditsArePersisted(t *testing.T) {
	// Arrange
	s, _, store := setupTest(t)

	// Act
	s.AddTrade()
	require.NoError(t, s.EditTrade(0, form.FieldBid, "1.5"))
	require.NoError(t, s.CommitTrade(0, form.FieldBid))
	require.NoError(t, s.EditTolerance(form.MinROI, "12"))

	// Assert
	var trades []models.TradeInput
	var displays []models.TradeDisplay
	var tol models.Tolerances
	var tolDisplay models.ToleranceDisplay
	slot(t, store, persistence.SlotTrades, &trades)
	slot(t, store, persistence.SlotTradeDisplay, &displays)
	slot(t, store, persistence.SlotTolerances, &tol)
	slot(t, store, persistence.SlotToleranceDisplay, &tolDisplay)

	require.Len(t, trades, 1)
	assert.Equal(t, 1.5, trades[0].Bid)
	assert.Equal(t, "$1.50", displays[0].Bid)
	require.NotNil(t, tol.MinROI)
	assert.InDelta(t, 0.12, *tol.MinROI, 1e-12)
	assert.Equal(t, "12", tolDisplay.MinROI)
}

func TestSession_RestoreRoundTrip(t *testing.T) {
	s, client, store := setupTest(t)
	s.AddTrade()
	require.NoError(t, s.EditTrade(0, form.FieldSymbol, "AAPL"))
	require.NoError(t, s.EditTolerance(form.MaxDTE, "45"))

	store.lifecycle.Flush()
	snap := persistence.New(store, zap.NewNop()).Load(context.Background())
	restored := Restore(zap.NewNop(), client, persistence.New(store, zap.NewNop()), snap)

	view := restored.Snapshot()
	require.Len(t, view.Trades, 1)
	assert.Equal(t, "AAPL", view.Trades[0].Symbol)
	assert.Equal(t, "AAPL", view.TradeDisplay[0].Symbol)
	assert.Equal(t, "45", view.ToleranceDisplay.MaxDTE)
	assert.NotEqual(t, s.ID, restored.ID)
}

func TestSession_Evaluate(t *testing.T) {
	s, client, _ := setupTest(t)
	s.AddTrade()
	require.NoError(t, s.EditTrade(0, form.FieldSymbol, "AAPL"))
	require.NoError(t, s.EditTolerance(form.MaxDelta, "30"))

	rows := []models.ResultRow{
		{Symbol: "AAPL", Score: 40, Suggestion: models.SuggestionAggressive},
		{Symbol: "AAPL", Score: 90, Suggestion: models.SuggestionConservative},
	}
	client.On("Evaluate", mock.MatchedBy(func(req evaluator.Request) bool {
		return len(req.Trades) == 1 && req.Trades[0].Symbol == "AAPL" &&
			req.Tolerances.MaxDelta != nil && *req.Tolerances.MaxDelta == 0.3 &&
			req.Tolerances.MinROI == nil
	})).Return(rows, nil)

	require.NoError(t, s.Evaluate(context.Background()))

	ranked := s.RankedResults()
	require.Len(t, ranked, 2)
	assert.Equal(t, 90.0, ranked[0].Score, "default order is score descending")
	client.AssertExpectations(t)
}

func TestSession_FailedEvaluationKeepsResults(t *testing.T) {
	s, client, _ := setupTest(t)
	previous := []models.ResultRow{{Symbol: "MSFT", Score: 55}}
	client.On("Evaluate", mock.Anything).Return(previous, nil).Once()
	require.NoError(t, s.Evaluate(context.Background()))
	require.True(t, s.ToggleExpanded(0))

	client.On("Evaluate", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	err := s.Evaluate(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	view := s.Snapshot()
	assert.Equal(t, previous, view.Results)
	assert.Equal(t, []int{0}, view.Expanded)
	client.AssertExpectations(t)
}

func TestSession_NewResultsCollapseRows(t *testing.T) {
	s, client, _ := setupTest(t)
	client.On("Evaluate", mock.Anything).Return([]models.ResultRow{{Symbol: "A"}, {Symbol: "B"}}, nil)
	require.NoError(t, s.Evaluate(context.Background()))

	assert.True(t, s.ToggleExpanded(1))
	assert.False(t, s.ToggleExpanded(2))
	assert.Equal(t, []int{1}, s.Snapshot().Expanded)

	require.NoError(t, s.Evaluate(context.Background()))
	assert.Empty(t, s.Snapshot().Expanded)
}

func TestSession_ResetClearsEverythingButTolerances(t *testing.T) {
	s, client, _ := setupTest(t)
	s.AddTrade()
	require.NoError(t, s.EditTolerance(form.MaxBeta, "1.2"))
	client.On("Evaluate", mock.Anything).Return([]models.ResultRow{{Symbol: "A"}}, nil)
	require.NoError(t, s.Evaluate(context.Background()))
	s.ToggleExpanded(0)

	s.ResetTrades()

	view := s.Snapshot()
	assert.Empty(t, view.Trades)
	assert.Empty(t, view.TradeDisplay)
	assert.Empty(t, view.Results)
	assert.Empty(t, view.Expanded)
	assert.Equal(t, "1.2", view.ToleranceDisplay.MaxBeta)
}

func TestSession_ClearResultsAndTolerances(t *testing.T) {
	s, client, store := setupTest(t)
	require.NoError(t, s.EditTolerance(form.MaxDTE, "30"))
	client.On("Evaluate", mock.Anything).Return([]models.ResultRow{{Symbol: "A"}}, nil)
	require.NoError(t, s.Evaluate(context.Background()))

	s.ClearResults()
	s.ClearTolerances()

	view := s.Snapshot()
	assert.Empty(t, view.Results)
	assert.Equal(t, models.Tolerances{}, view.Tolerances)
	var tol models.Tolerances
	slot(t, store, persistence.SlotTolerances, &tol)
	assert.Nil(t, tol.MaxDTE)
}

func TestSession_DuplicateAndRemove(t *testing.T) {
	s, _, _ := setupTest(t)
	s.AddTrade()
	require.NoError(t, s.EditTrade(0, form.FieldSymbol, "AAPL"))

	s.DuplicateTrade(0)
	s.DuplicateTrade(7)
	assert.Len(t, s.Snapshot().Trades, 2)

	s.RemoveTrade(1)
	s.RemoveTrade(-1)
	view := s.Snapshot()
	assert.Len(t, view.Trades, 1)
	assert.Len(t, view.TradeDisplay, 1)
}

func TestSession_SelectSort(t *testing.T) {
	s, client, _ := setupTest(t)
	client.On("Evaluate", mock.Anything).Return([]models.ResultRow{
		{Symbol: "B", TradeDate: "2024-03-01"},
		{Symbol: "A", TradeDate: "2023-12-15"},
	}, nil)
	require.NoError(t, s.Evaluate(context.Background()))

	s.SelectSort(ranking.KeyTradeDate)
	assert.Equal(t, "2024-03-01", s.RankedResults()[0].TradeDate)

	s.SelectSort(ranking.KeyTradeDate)
	assert.Equal(t, ranking.SortState{Key: ranking.KeyTradeDate, Direction: ranking.Asc}, s.Snapshot().Sort)
	assert.Equal(t, "2023-12-15", s.RankedResults()[0].TradeDate)
}

func TestSession_InvalidEdits(t *testing.T) {
	s, _, _ := setupTest(t)

	assert.ErrorIs(t, s.EditTrade(0, form.FieldBid, "1"), form.ErrRowOutOfRange)
	assert.ErrorIs(t, s.CommitTrade(0, form.FieldBid), form.ErrRowOutOfRange)
	assert.ErrorIs(t, s.EditTolerance("minGamma", "1"), form.ErrUnknownTolerance)
	assert.ErrorIs(t, s.CommitTolerance("minGamma"), form.ErrUnknownTolerance)
}

func TestSession_OverlappingEvaluationsLastCompletedWins(t *testing.T) {
	client := &gatedClient{calls: make(chan chan []models.ResultRow)}
	s := New(zap.NewNop(), client, persistence.New(database.NewMemoryStore(), zap.NewNop()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	evaluate := func() <-chan error {
		done := make(chan error, 1)
		go func() { done <- s.Evaluate(ctx) }()
		return done
	}

	firstDone := evaluate()
	first := <-client.calls
	secondDone := evaluate()
	second := <-client.calls

	// Both calls are in flight and the form is still editable.
	s.AddTrade()
	assert.Len(t, s.Snapshot().Trades, 1)

	second <- []models.ResultRow{{Symbol: "SECOND"}}
	require.NoError(t, <-secondDone)
	assert.Equal(t, "SECOND", s.Results()[0].Symbol)

	first <- []models.ResultRow{{Symbol: "FIRST"}}
	require.NoError(t, <-firstDone)

	results := s.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "FIRST", results[0].Symbol)
	assert.Len(t, s.Snapshot().Trades, 1)
}

func TestSession_ResultsKeepEvaluatorOrder(t *testing.T) {
	s, client, _ := setupTest(t)
	client.On("Evaluate", mock.Anything).Return([]models.ResultRow{
		{Symbol: "LOW", Score: 10},
		{Symbol: "HIGH", Score: 90},
	}, nil)
	require.NoError(t, s.Evaluate(context.Background()))

	assert.Equal(t, "LOW", s.Results()[0].Symbol)
	assert.Equal(t, "HIGH", s.RankedResults()[0].Symbol)

	s.Results()[0].Symbol = "MUTATED"
	assert.Equal(t, "LOW", s.Results()[0].Symbol)
}
