package services

import (
	"errors"
	"fmt"

	"alfredoptarigan/interview-evaluator/internal/models"
	"alfredoptarigan/interview-evaluator/internal/repositories"
)

type ErrorKind string

const (
	ErrKindConfigurationMissing     ErrorKind = "configuration_missing"
	ErrKindMediaUnreachable         ErrorKind = "media_unreachable"
	ErrKindAudioExtractionFailed    ErrorKind = "audio_extraction_failed"
	ErrKindTranscriptionUnavailable ErrorKind = "transcription_unavailable"
	ErrKindTranscriptionFailed      ErrorKind = "transcription_failed"
	ErrKindContentInvalid           ErrorKind = "content_invalid"
	ErrKindAnalysisFailed           ErrorKind = "analysis_failed"
	ErrKindPersistenceFailed        ErrorKind = "persistence_failed"
	ErrKindAnswerNotFound           ErrorKind = "answer_not_found"
	ErrKindInvalidInput             ErrorKind = "invalid_input"
	ErrKindUnknown                  ErrorKind = "unknown"
)

var (
	ErrNetwork                  = errors.New("network_error")
	ErrTooLarge                 = errors.New("too_large")
	ErrTranscriptionUnavailable = errors.New("transcription backend unavailable")
	ErrAnswerNotFound           = repositories.ErrAnswerNotFound
	ErrStaleTransition          = repositories.ErrStaleTransition
)

// PipelineError tags an error with the taxonomy kind of the step that raised it.
type PipelineError struct {
	Kind ErrorKind
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func newPipelineError(kind ErrorKind, err error) *PipelineError {
	return &PipelineError{Kind: kind, Err: err}
}

// KindOf returns the taxonomy kind carried by err, or ErrKindUnknown.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrKindUnknown
}

// EvaluationResult is the envelope returned to callers of the orchestrator:
// either the evaluation row, or a failure description.
type EvaluationResult struct {
	AnswerID     string                  `json:"answer_id"`
	Status       models.EvaluationStatus `json:"status"`
	Evaluation   *models.Evaluation      `json:"evaluation,omitempty"`
	ErrorKind    ErrorKind               `json:"error_kind,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	Busy         bool                    `json:"busy,omitempty"`
}

// OK reports whether the call produced a completed evaluation.
func (r *EvaluationResult) OK() bool {
	return r.Status == models.StatusCompleted && r.ErrorKind == ""
}

func okResult(eval *models.Evaluation) *EvaluationResult {
	return &EvaluationResult{
		AnswerID:   eval.AnswerID.String(),
		Status:     eval.Status,
		Evaluation: eval,
	}
}

func failedResult(answerID string, eval *models.Evaluation, kind ErrorKind, err error) *EvaluationResult {
	msg := string(kind)
	if err != nil {
		msg = err.Error()
	}
	return &EvaluationResult{
		AnswerID:     answerID,
		Status:       models.StatusFailed,
		Evaluation:   eval,
		ErrorKind:    kind,
		ErrorMessage: msg,
	}
}
