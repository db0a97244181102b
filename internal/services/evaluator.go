package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"alfredoptarigan/interview-evaluator/internal/models"
	"alfredoptarigan/interview-evaluator/internal/repositories"
)

const tracerName = "interview-evaluator/orchestrator"

type EvaluationOrchestrator interface {
	Evaluate(ctx context.Context, answerID uuid.UUID, force bool) *EvaluationResult
	EvaluateBulk(ctx context.Context, campaignID uuid.UUID, candidateIDs []uuid.UUID, force bool) (*BulkResult, error)
	Metrics() MetricsSnapshot
}

type BulkResult struct {
	CampaignID string                       `json:"campaign_id"`
	Total      int                          `json:"total"`
	Completed  int                          `json:"completed"`
	Failed     int                          `json:"failed"`
	Busy       int                          `json:"busy"`
	Results    map[string]*EvaluationResult `json:"results"`
}

// OrchestratorDeps are the collaborators of the pipeline. Extractor and
// Rubrics may be nil.
type OrchestratorDeps struct {
	Store           repositories.EvaluationStore
	Fetcher         MediaFetcher
	Extractor       AudioExtractor
	Transcriber     Transcriber
	Analyzer        AIAnalyzer
	Rubrics         RubricIndex
	Prompts         *PromptBuilder
	Metrics         *Metrics
	LanguageHint    string
	BulkConcurrency int
}

type evaluationOrchestrator struct {
	store           repositories.EvaluationStore
	fetcher         MediaFetcher
	extractor       AudioExtractor
	transcriber     Transcriber
	analyzer        AIAnalyzer
	rubrics         RubricIndex
	prompts         *PromptBuilder
	metrics         *Metrics
	tracer          trace.Tracer
	languageHint    string
	bulkConcurrency int
	now             func() time.Time
}

func NewEvaluationOrchestrator(deps OrchestratorDeps) EvaluationOrchestrator {
	if deps.Prompts == nil {
		deps.Prompts = NewPromptBuilder()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.BulkConcurrency < 1 {
		deps.BulkConcurrency = 1
	}

	return &evaluationOrchestrator{
		store:           deps.Store,
		fetcher:         deps.Fetcher,
		extractor:       deps.Extractor,
		transcriber:     deps.Transcriber,
		analyzer:        deps.Analyzer,
		rubrics:         deps.Rubrics,
		prompts:         deps.Prompts,
		metrics:         deps.Metrics,
		tracer:          otel.Tracer(tracerName),
		languageHint:    deps.LanguageHint,
		bulkConcurrency: deps.BulkConcurrency,
		now:             time.Now,
	}
}

func (o *evaluationOrchestrator) Metrics() MetricsSnapshot {
	return o.metrics.Snapshot()
}

func (o *evaluationOrchestrator) Evaluate(ctx context.Context, answerID uuid.UUID, force bool) *EvaluationResult {
	ctx, span := o.tracer.Start(ctx, "Evaluate", trace.WithAttributes(
		attribute.String("answer_id", answerID.String()),
		attribute.Bool("force", force),
	))
	defer span.End()

	result := o.evaluate(ctx, answerID, force)
	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.Bool("busy", result.Busy),
	)
	if result.ErrorKind != "" {
		span.SetStatus(codes.Error, string(result.ErrorKind))
	}
	return result
}

func (o *evaluationOrchestrator) evaluate(ctx context.Context, answerID uuid.UUID, force bool) *EvaluationResult {
	id := answerID.String()

	if o.analyzer == nil || !o.analyzer.Configured() {
		o.metrics.recordFailed(ctx, ErrKindConfigurationMissing)
		return failedResult(id, nil, ErrKindConfigurationMissing,
			errors.New("PRIMARY_LLM_API_KEY is not set"))
	}

	answer, err := o.store.LoadAnswer(ctx, answerID)
	if err != nil {
		return o.rejected(ctx, id, err)
	}

	eval, outcome, err := o.store.AcquireAnswerLock(ctx, answerID, force)
	if err != nil {
		return o.rejected(ctx, id, err)
	}

	switch outcome {
	case repositories.AcquireCompleted:
		o.metrics.recordShortCircuited(ctx)
		return okResult(eval)
	case repositories.AcquireBusy:
		o.metrics.recordBusy(ctx)
		log.Printf("⚠️  Answer %s is already being evaluated\n", id)
		return &EvaluationResult{
			AnswerID:   id,
			Status:     eval.Status,
			Evaluation: eval,
			Busy:       true,
		}
	}

	o.metrics.recordStarted(ctx)
	log.Printf("🔄 Starting evaluation for answer %s (force=%t)\n", id, force)

	return o.run(ctx, answer, eval, time.Now())
}

func (o *evaluationOrchestrator) rejected(ctx context.Context, id string, err error) *EvaluationResult {
	kind := ErrKindPersistenceFailed
	if errors.Is(err, ErrAnswerNotFound) {
		kind = ErrKindAnswerNotFound
	}
	o.metrics.recordFailed(ctx, kind)
	log.Printf("❌ Cannot evaluate answer %s: %v\n", id, err)
	return failedResult(id, nil, kind, err)
}

func (o *evaluationOrchestrator) run(ctx context.Context, answer *models.AnswerContext, eval *models.Evaluation, start time.Time) *EvaluationResult {
	meta := datatypes.JSONMap{}

	stepCtx, span := o.tracer.Start(ctx, "media.resolve")
	media, err := o.fetcher.Resolve(stepCtx, answer.Answer.MediaReference())
	endSpan(span, err)
	if err != nil {
		return o.fail(ctx, eval, start, meta, ErrKindMediaUnreachable, err)
	}
	defer media.Release()
	meta["media_source"] = media.Source

	audioPath := media.Path
	silent := false
	meta["audio_extracted"] = false
	if o.extractor != nil {
		stepCtx, span := o.tracer.Start(ctx, "audio.extract")
		audio, err := o.extractor.Extract(stepCtx, media.Path)
		endSpan(span, err)
		switch {
		case errors.Is(err, ErrNoAudioStream):
			silent = true
			log.Printf("⚠️  Answer %s has no audio stream\n", eval.AnswerID)
		case err != nil:
			log.Printf("⚠️  Audio extraction failed for answer %s, transcribing the video directly: %v\n", eval.AnswerID, err)
			meta["audio_extraction_error"] = err.Error()
		default:
			defer audio.Release()
			audioPath = audio.Path
			meta["audio_extracted"] = true
		}
	}

	transcription := &Transcription{Language: unknownLanguage, LanguageSource: "none"}
	unavailable := false
	if !silent {
		log.Printf("🎙️  Transcribing answer %s\n", eval.AnswerID)
		stepCtx, span := o.tracer.Start(ctx, "transcribe")
		t, err := o.transcriber.Transcribe(stepCtx, audioPath, o.languageHint)
		endSpan(span, err)
		switch {
		case errors.Is(err, ErrTranscriptionUnavailable):
			unavailable = true
			log.Printf("⚠️  Transcription unavailable, analyzing answer %s from context only\n", eval.AnswerID)
		case err != nil:
			return o.fail(ctx, eval, start, meta, ErrKindTranscriptionFailed, err)
		default:
			transcription = t
		}
	}
	meta["transcriber_model"] = o.transcriber.Model()
	meta["transcription_available"] = !unavailable
	meta["segment_count"] = len(transcription.Segments)
	meta["language_source"] = transcription.LanguageSource

	eval.Transcription = transcription.Text
	eval.Language = transcription.Language
	eval.TranscriptionConfidence = transcription.Confidence
	eval.Segments = datatypes.JSON(transcription.SegmentsJSON())
	eval.Touch(o.now())
	if err := o.store.UpsertEvaluation(ctx, eval); err != nil {
		return o.persistFailed(ctx, eval, err)
	}

	var result *AnalysisResult
	if !unavailable {
		if verdict := ValidateContent(transcription.Text); !verdict.Valid {
			log.Printf("⚠️  Answer %s has no usable speech (%s)\n", eval.AnswerID, verdict.Reason)
			meta["content_invalid"] = string(verdict.Reason)
			result = SilentContentResult(answer.QuestionKind, verdict.Reason)
		}
	}

	if result == nil {
		guidelines := o.retrieveGuidelines(ctx, answer)
		prompt := o.prompts.BuildEvaluationPrompt(EvaluationPromptInput{
			QuestionText:             answer.QuestionText,
			QuestionKind:             answer.QuestionKind,
			Transcription:            transcription.Text,
			OfferTitle:               answer.OfferTitle,
			ExpectedSkills:           answer.ExpectedSkills,
			Guidelines:               guidelines,
			TranscriptionUnavailable: unavailable,
		})
		meta["rubric_snippets"] = len(guidelines)
		meta["prompt_length"] = len(prompt)

		log.Printf("🤖 Analyzing answer %s\n", eval.AnswerID)
		stepCtx, span := o.tracer.Start(ctx, "analyze")
		result, err = o.analyzer.Analyze(stepCtx, AnalysisRequest{
			Prompt:         prompt,
			QuestionText:   answer.QuestionText,
			QuestionKind:   answer.QuestionKind,
			Transcription:  transcription.Text,
			ExpectedSkills: answer.ExpectedSkills,
		})
		endSpan(span, err)
		if result != nil {
			meta["analyzer_attempts"] = result.Attempts
		}
		if err != nil {
			return o.fail(ctx, eval, start, meta, KindOf(err), err)
		}
		for _, attempt := range result.Attempts {
			if attempt.Error != "" {
				log.Printf("⚠️  Analyzer tier %s failed for answer %s: %s\n", attempt.Provider, eval.AnswerID, attempt.Error)
			}
		}
	}

	return o.complete(ctx, eval, result, start, meta)
}

func (o *evaluationOrchestrator) complete(ctx context.Context, eval *models.Evaluation, result *AnalysisResult, start time.Time, meta datatypes.JSONMap) *EvaluationResult {
	s := result.Scores
	eval.CommunicationScore = &s.Communication
	eval.RelevanceScore = &s.Relevance
	eval.ConfidenceScore = &s.Confidence
	eval.TechnicalScore = s.Technical
	eval.OverallScore = &s.Overall
	eval.Strengths = result.Strengths
	eval.Weaknesses = result.Weaknesses
	eval.Feedback = result.Feedback
	eval.Provider = result.Provider
	eval.Status = models.StatusCompleted
	eval.ErrorMessage = nil
	eval.ProcessingMetadata = meta

	elapsed := time.Since(start).Seconds()
	eval.ProcessingTimeSeconds = &elapsed

	now := o.now()
	eval.CompletedAt = &now
	eval.Touch(now)

	if err := o.store.UpsertEvaluation(ctx, eval); err != nil {
		return o.persistFailed(ctx, eval, err)
	}

	o.metrics.recordCompleted(ctx, eval.Provider)
	log.Printf("✅ Evaluation completed for answer %s (provider=%s, overall=%.2f, %.2fs)\n",
		eval.AnswerID, eval.Provider, s.Overall, elapsed)

	return okResult(eval)
}

// fail moves the row to failed with this run's metadata. Scores are cleared
// so a failed row never shows results from a previous run.
func (o *evaluationOrchestrator) fail(ctx context.Context, eval *models.Evaluation, start time.Time, meta datatypes.JSONMap, kind ErrorKind, cause error) *EvaluationResult {
	log.Printf("❌ Evaluation failed for answer %s (%s): %v\n", eval.AnswerID, kind, cause)

	msg := fmt.Sprintf("%s: %v", kind, cause)
	elapsed := time.Since(start).Seconds()
	meta["error_kind"] = string(kind)

	updated, err := o.store.TransitionStatus(ctx, eval.ID, repositories.StatusChange{
		From:                  models.StatusProcessing,
		To:                    models.StatusFailed,
		ErrorMessage:          &msg,
		ProcessingTimeSeconds: &elapsed,
		Provider:              models.ProviderError,
		ClearScores:           true,
		Metadata:              meta,
	})
	if err != nil {
		return o.persistFailed(ctx, eval, fmt.Errorf("failed to record %s: %w", kind, err))
	}

	o.metrics.recordFailed(ctx, kind)
	return failedResult(eval.AnswerID.String(), updated, kind, cause)
}

// persistFailed leaves the row in processing for the stale-row janitor.
func (o *evaluationOrchestrator) persistFailed(ctx context.Context, eval *models.Evaluation, err error) *EvaluationResult {
	o.metrics.recordFailed(ctx, ErrKindPersistenceFailed)
	log.Printf("❌ Failed to save evaluation for answer %s: %v\n", eval.AnswerID, err)
	return failedResult(eval.AnswerID.String(), nil, ErrKindPersistenceFailed, err)
}

func (o *evaluationOrchestrator) retrieveGuidelines(ctx context.Context, answer *models.AnswerContext) []SearchResult {
	if o.rubrics == nil {
		return nil
	}

	ctx, span := o.tracer.Start(ctx, "rubrics.retrieve")
	defer span.End()

	query := o.prompts.BuildRetrievalQuery(answer.QuestionKind, answer.QuestionText, answer.OfferTitle)
	results, err := o.rubrics.Search(ctx, query, rubricSnippetLimit)
	if err != nil {
		span.RecordError(err)
		log.Printf("⚠️  Warning: Failed to retrieve rubric guidelines: %v\n", err)
		return nil
	}
	span.SetAttributes(attribute.Int("snippets", len(results)))
	return results
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (o *evaluationOrchestrator) EvaluateBulk(ctx context.Context, campaignID uuid.UUID, candidateIDs []uuid.UUID, force bool) (*BulkResult, error) {
	answers, err := o.store.ListCampaignAnswers(ctx, campaignID, candidateIDs)
	if err != nil {
		return nil, newPipelineError(ErrKindPersistenceFailed, err)
	}

	log.Printf("📋 Bulk evaluation for campaign %s: %d answers\n", campaignID, len(answers))

	bulk := &BulkResult{
		CampaignID: campaignID.String(),
		Total:      len(answers),
		Results:    make(map[string]*EvaluationResult, len(answers)),
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.bulkConcurrency)

	for _, answer := range answers {
		answerID := answer.ID
		g.Go(func() error {
			result := o.Evaluate(ctx, answerID, force)
			mu.Lock()
			bulk.Results[answerID.String()] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, result := range bulk.Results {
		switch {
		case result.Busy:
			bulk.Busy++
		case result.OK():
			bulk.Completed++
		default:
			bulk.Failed++
		}
	}

	log.Printf("✅ Bulk evaluation for campaign %s done: %d completed, %d failed, %d busy\n",
		campaignID, bulk.Completed, bulk.Failed, bulk.Busy)

	return bulk, nil
}
