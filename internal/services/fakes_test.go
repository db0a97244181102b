package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/interview-evaluator/internal/models"
	"alfredoptarigan/interview-evaluator/internal/repositories"
)

// memoryStore mirrors the gorm EvaluationStore semantics in memory.
type memoryStore struct {
	mu        sync.Mutex
	answers   map[uuid.UUID]*models.AnswerContext
	evals     map[uuid.UUID]*models.Evaluation
	upserts   int
	upsertErr error

	transitionErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		answers: make(map[uuid.UUID]*models.AnswerContext),
		evals:   make(map[uuid.UUID]*models.Evaluation),
	}
}

func (s *memoryStore) addAnswer(ac *models.AnswerContext) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ac.Answer.ID == uuid.Nil {
		ac.Answer.ID = uuid.New()
	}
	s.answers[ac.Answer.ID] = ac
	return ac.Answer.ID
}

func (s *memoryStore) evaluation(answerID uuid.UUID) *models.Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()
	eval, ok := s.evals[answerID]
	if !ok {
		return nil
	}
	clone := *eval
	return &clone
}

func (s *memoryStore) LoadAnswer(_ context.Context, answerID uuid.UUID) (*models.AnswerContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ac, ok := s.answers[answerID]
	if !ok {
		return nil, repositories.ErrAnswerNotFound
	}
	clone := *ac
	return &clone, nil
}

func (s *memoryStore) AcquireAnswerLock(_ context.Context, answerID uuid.UUID, force bool) (*models.Evaluation, repositories.AcquireOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.answers[answerID]; !ok {
		return nil, repositories.AcquireStarted, repositories.ErrAnswerNotFound
	}

	eval, ok := s.evals[answerID]
	if !ok {
		now := time.Now()
		eval = &models.Evaluation{
			ID:        uuid.New(),
			AnswerID:  answerID,
			Status:    models.StatusPending,
			Language:  "unknown",
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.evals[answerID] = eval
	}

	switch {
	case eval.Status == models.StatusProcessing:
		clone := *eval
		return &clone, repositories.AcquireBusy, nil
	case eval.Status == models.StatusCompleted && !force:
		clone := *eval
		return &clone, repositories.AcquireCompleted, nil
	}

	eval.Status = models.StatusProcessing
	eval.ErrorMessage = nil
	eval.ResetTranscription()
	eval.Touch(time.Now())

	clone := *eval
	return &clone, repositories.AcquireStarted, nil
}

func (s *memoryStore) UpsertEvaluation(_ context.Context, eval *models.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil && eval.Status == models.StatusCompleted {
		return s.upsertErr
	}
	s.upserts++

	clone := *eval
	if existing, ok := s.evals[eval.AnswerID]; ok {
		clone.ID = existing.ID
		clone.CreatedAt = existing.CreatedAt
	}
	s.evals[eval.AnswerID] = &clone
	return nil
}

func (s *memoryStore) TransitionStatus(_ context.Context, evalID uuid.UUID, change repositories.StatusChange) (*models.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitionErr != nil {
		return nil, s.transitionErr
	}

	for _, eval := range s.evals {
		if eval.ID != evalID {
			continue
		}
		if eval.Status != change.From {
			return nil, repositories.ErrStaleTransition
		}
		eval.Status = change.To
		eval.ErrorMessage = change.ErrorMessage
		if change.ProcessingTimeSeconds != nil {
			eval.ProcessingTimeSeconds = change.ProcessingTimeSeconds
		}
		if change.Provider != "" {
			eval.Provider = change.Provider
		}
		if change.ClearScores {
			eval.ClearScores()
		}
		if change.Metadata != nil {
			eval.ProcessingMetadata = change.Metadata
		}
		eval.Touch(time.Now())
		clone := *eval
		return &clone, nil
	}
	return nil, repositories.ErrEvaluationNotFound
}

func (s *memoryStore) FindByAnswerID(_ context.Context, answerID uuid.UUID) (*models.Evaluation, error) {
	if eval := s.evaluation(answerID); eval != nil {
		return eval, nil
	}
	return nil, repositories.ErrEvaluationNotFound
}

func (s *memoryStore) ListCampaignAnswers(_ context.Context, campaignID uuid.UUID, candidateIDs []uuid.UUID) ([]models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[uuid.UUID]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		wanted[id] = true
	}

	var answers []models.Answer
	for _, ac := range s.answers {
		if ac.CampaignID != campaignID {
			continue
		}
		if len(wanted) > 0 && !wanted[ac.Answer.CandidateID] {
			continue
		}
		answers = append(answers, ac.Answer)
	}
	return answers, nil
}

func (s *memoryStore) FindAnswersAwaitingEvaluation(_ context.Context, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for id, ac := range s.answers {
		if len(ids) == limit {
			break
		}
		if _, evaluated := s.evals[id]; evaluated {
			continue
		}
		if ac.Answer.Status == models.AnswerReadyForEvaluation {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type mockFetcher struct {
	ResolveFunc func(ctx context.Context, ref models.MediaReference) (*ScratchFile, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) (*ScratchFile, error) {
	return m.ResolveFunc(ctx, models.MediaReference{PrimaryURL: rawURL})
}

func (m *mockFetcher) Resolve(ctx context.Context, ref models.MediaReference) (*ScratchFile, error) {
	return m.ResolveFunc(ctx, ref)
}

func unreachableMedia() *mockFetcher {
	return &mockFetcher{ResolveFunc: func(context.Context, models.MediaReference) (*ScratchFile, error) {
		return nil, fmt.Errorf("%w: connection refused", ErrNetwork)
	}}
}

func borrowedMedia(path string) *mockFetcher {
	return &mockFetcher{ResolveFunc: func(context.Context, models.MediaReference) (*ScratchFile, error) {
		return newBorrowedScratch(path, "local_blob"), nil
	}}
}

type mockTranscriber struct {
	TranscribeFunc func(ctx context.Context, path, hint string) (*Transcription, error)
	calls          int
	mu             sync.Mutex
}

func (m *mockTranscriber) Transcribe(ctx context.Context, path, hint string) (*Transcription, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.TranscribeFunc(ctx, path, hint)
}

func (m *mockTranscriber) Model() string { return "mock-whisper" }

func textTranscriber(text string) *mockTranscriber {
	return &mockTranscriber{TranscribeFunc: func(context.Context, string, string) (*Transcription, error) {
		if text == "" {
			return &Transcription{Language: unknownLanguage, LanguageSource: "none", Model: "mock-whisper"}, nil
		}
		segments := []Segment{{Start: 0, End: 30, Text: text, AvgLogProb: -0.2}}
		return &Transcription{
			Text:           text,
			Language:       "en",
			LanguageSource: "backend",
			Confidence:     SegmentConfidence(segments),
			Segments:       segments,
			Model:          "mock-whisper",
		}, nil
	}}
}

type mockLLM struct {
	GenerateTextFunc func(ctx context.Context, prompt string) (string, error)
	mu               sync.Mutex
	prompts          []string
}

func (m *mockLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.GenerateTextFunc(ctx, prompt)
}

func replyLLM(reply string) *mockLLM {
	return &mockLLM{GenerateTextFunc: func(context.Context, string) (string, error) {
		return reply, nil
	}}
}

func failingLLM() *mockLLM {
	return &mockLLM{GenerateTextFunc: func(context.Context, string) (string, error) {
		return "", errors.New("upstream unavailable")
	}}
}

type mockClassifier struct {
	ClassifyFunc func(ctx context.Context, text string, hypotheses []string) ([]float64, error)
}

func (m *mockClassifier) Classify(ctx context.Context, text string, hypotheses []string) ([]float64, error) {
	return m.ClassifyFunc(ctx, text, hypotheses)
}

func constantClassifier(score float64) *mockClassifier {
	return &mockClassifier{ClassifyFunc: func(_ context.Context, _ string, hypotheses []string) ([]float64, error) {
		scores := make([]float64, len(hypotheses))
		for i := range scores {
			scores[i] = score
		}
		return scores, nil
	}}
}

type mockRubrics struct {
	SearchFunc func(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

func (m *mockRubrics) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return m.SearchFunc(ctx, query, limit)
}
