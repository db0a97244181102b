package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type EvaluationStatus string

const (
	StatusPending    EvaluationStatus = "pending"
	StatusProcessing EvaluationStatus = "processing"
	StatusCompleted  EvaluationStatus = "completed"
	StatusFailed     EvaluationStatus = "failed"
)

type Provider string

const (
	ProviderPrimary            Provider = "primary"
	ProviderSecondary          Provider = "secondary"
	ProviderContextualFallback Provider = "contextual_fallback"
	ProviderError              Provider = "error"
)

type Evaluation struct {
	ID                      uuid.UUID         `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AnswerID                uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex" json:"answer_id"`
	Transcription           string            `gorm:"type:text" json:"transcription"`
	Language                string            `gorm:"type:text;default:'unknown'" json:"language"`
	TranscriptionConfidence float64           `gorm:"type:numeric(5,4);default:0" json:"transcription_confidence"`
	Segments                datatypes.JSON    `gorm:"type:jsonb" json:"segments,omitempty"`
	CommunicationScore      *float64          `gorm:"type:numeric(4,2)" json:"communication_score"`
	RelevanceScore          *float64          `gorm:"type:numeric(4,2)" json:"relevance_score"`
	ConfidenceScore         *float64          `gorm:"type:numeric(4,2)" json:"confidence_score"`
	TechnicalScore          *float64          `gorm:"type:numeric(4,2)" json:"technical_score"`
	OverallScore            *float64          `gorm:"type:numeric(4,2)" json:"overall_score"`
	Strengths               string            `gorm:"type:text" json:"strengths"`
	Weaknesses              string            `gorm:"type:text" json:"weaknesses"`
	Feedback                string            `gorm:"type:text" json:"feedback"`
	Provider                Provider          `gorm:"type:text" json:"provider"`
	Status                  EvaluationStatus  `gorm:"type:text;not null;default:'pending'" json:"status"`
	ErrorMessage            *string           `gorm:"type:text" json:"error_message,omitempty"`
	ProcessingTimeSeconds   *float64          `json:"processing_time_seconds,omitempty"`
	ProcessingMetadata      datatypes.JSONMap `gorm:"type:jsonb" json:"processing_metadata,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `gorm:"autoUpdateTime:false" json:"updated_at"`
	CompletedAt             *time.Time        `json:"completed_at,omitempty"`

	Answer Answer `gorm:"foreignKey:AnswerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

// Touch stamps UpdatedAt, keeping it strictly increasing even when the clock
// has not advanced since the previous write.
func (e *Evaluation) Touch(now time.Time) {
	if !now.After(e.UpdatedAt) {
		now = e.UpdatedAt.Add(time.Microsecond)
	}
	e.UpdatedAt = now
}

// ClearScores drops every score and the derived text so a failed row never
// carries results from an earlier run.
func (e *Evaluation) ClearScores() {
	e.CommunicationScore = nil
	e.RelevanceScore = nil
	e.ConfidenceScore = nil
	e.TechnicalScore = nil
	e.OverallScore = nil
	e.Strengths = ""
	e.Weaknesses = ""
	e.Feedback = ""
	e.CompletedAt = nil
}

// ResetTranscription drops the transcript and metadata of an earlier run when
// a new run starts.
func (e *Evaluation) ResetTranscription() {
	e.Transcription = ""
	e.Language = "unknown"
	e.TranscriptionConfidence = 0
	e.Segments = nil
	e.ProcessingMetadata = nil
}
