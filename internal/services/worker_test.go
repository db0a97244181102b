package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/interview-evaluator/internal/models"
)

type recordingOrchestrator struct {
	mu    sync.Mutex
	seen  map[uuid.UUID]bool
	force map[uuid.UUID]bool
	done  chan uuid.UUID
}

func newRecordingOrchestrator() *recordingOrchestrator {
	return &recordingOrchestrator{
		seen:  make(map[uuid.UUID]bool),
		force: make(map[uuid.UUID]bool),
		done:  make(chan uuid.UUID, 16),
	}
}

func (r *recordingOrchestrator) Evaluate(_ context.Context, answerID uuid.UUID, force bool) *EvaluationResult {
	r.mu.Lock()
	r.seen[answerID] = true
	r.force[answerID] = force
	r.mu.Unlock()
	select {
	case r.done <- answerID:
	default:
	}
	return &EvaluationResult{AnswerID: answerID.String(), Status: models.StatusCompleted}
}

func (r *recordingOrchestrator) EvaluateBulk(context.Context, uuid.UUID, []uuid.UUID, bool) (*BulkResult, error) {
	return nil, errors.New("not used")
}

func (r *recordingOrchestrator) Metrics() MetricsSnapshot { return MetricsSnapshot{} }

func waitForJob(t *testing.T, done <-chan uuid.UUID) uuid.UUID {
	t.Helper()
	select {
	case id := <-done:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
		return uuid.Nil
	}
}

func TestWorker_ProcessesQueuedJobs(t *testing.T) {
	orch := newRecordingOrchestrator()
	w := NewWorker(newMemoryStore(), orch, NewChannelQueue(4), 2, 0)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	answerID := uuid.New()
	require.NoError(t, w.EnqueueJob(context.Background(), EvaluationJob{AnswerID: answerID, Force: true}))

	assert.Equal(t, answerID, waitForJob(t, orch.done))
	orch.mu.Lock()
	assert.True(t, orch.force[answerID])
	orch.mu.Unlock()
}

func TestWorker_PollsAwaitingAnswers(t *testing.T) {
	store := newMemoryStore()
	ready := store.addAnswer(&models.AnswerContext{Answer: models.Answer{Status: models.AnswerReadyForEvaluation}})
	store.addAnswer(&models.AnswerContext{Answer: models.Answer{Status: models.AnswerUploaded}})

	orch := newRecordingOrchestrator()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(store, orch, NewChannelQueue(4), 1, 10*time.Millisecond)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	defer cancel()

	assert.Equal(t, ready, waitForJob(t, orch.done))
}

func TestWorker_EnqueueAfterStop(t *testing.T) {
	w := NewWorker(newMemoryStore(), newRecordingOrchestrator(), NewChannelQueue(1), 1, 0)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()

	err := w.EnqueueJob(context.Background(), EvaluationJob{AnswerID: uuid.New()})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestChannelQueue_Close(t *testing.T) {
	q := NewChannelQueue(1)
	require.NoError(t, q.Publish(context.Background(), EvaluationJob{AnswerID: uuid.New()}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Publish(ctx, EvaluationJob{AnswerID: uuid.New()}), context.Canceled)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Publish(context.Background(), EvaluationJob{AnswerID: uuid.New()}), ErrQueueClosed)
}
