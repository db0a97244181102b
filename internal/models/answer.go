package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type AnswerStatus string

const (
	AnswerUploaded           AnswerStatus = "uploaded"
	AnswerReadyForEvaluation AnswerStatus = "ready_for_evaluation"
	AnswerEvaluated          AnswerStatus = "evaluated"
)

type QuestionKind string

const (
	QuestionBehavioural    QuestionKind = "behavioural"
	QuestionTechnical      QuestionKind = "technical"
	QuestionMandatoryIntro QuestionKind = "mandatory-intro"
)

// JobOffer, Campaign, Question and Answer are owned by the recruiting CRUD
// layer. The evaluation pipeline only reads them.
type JobOffer struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Title          string         `gorm:"type:text;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	Requirements   string         `gorm:"type:text" json:"requirements"`
	RequiredSkills pq.StringArray `gorm:"type:text[]" json:"required_skills"`
	CreatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (JobOffer) TableName() string {
	return "job_offers"
}

type Campaign struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	JobOfferID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_offer_id"`
	Title          string         `gorm:"type:text" json:"title"`
	ExpectedSkills pq.StringArray `gorm:"type:text[]" json:"expected_skills"`
	CreatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	JobOffer JobOffer `gorm:"foreignKey:JobOfferID" json:"-"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

type Question struct {
	ID                uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CampaignID        uuid.UUID    `gorm:"type:uuid;not null;index" json:"campaign_id"`
	Text              string       `gorm:"type:text;not null" json:"text"`
	Position          int          `gorm:"not null" json:"position"`
	TimeBudgetSeconds int          `gorm:"not null;default:120" json:"time_budget_seconds"`
	Kind              QuestionKind `gorm:"type:text;not null;default:'behavioural'" json:"kind"`
	Source            string       `gorm:"type:text" json:"source,omitempty"`
	CreatedAt         time.Time    `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	Campaign Campaign `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Question) TableName() string {
	return "questions"
}

type Answer struct {
	ID              uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	QuestionID      uuid.UUID    `gorm:"type:uuid;not null;index" json:"question_id"`
	CandidateID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"candidate_id"`
	PrimaryURL      string       `gorm:"type:text" json:"primary_url"`
	SecureURL       *string      `gorm:"type:text" json:"secure_url,omitempty"`
	LocalBlob       *string      `gorm:"type:text" json:"local_blob,omitempty"`
	DurationSeconds float64      `json:"duration_seconds"`
	FileSize        int64        `json:"file_size"`
	Status          AnswerStatus `gorm:"type:text;not null;default:'uploaded'" json:"status"`
	CreatedAt       time.Time    `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	Question Question `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Answer) TableName() string {
	return "answers"
}

// MediaReference lists the places a recorded answer can be read from.
type MediaReference struct {
	PrimaryURL string
	SecureURL  string
	LocalBlob  string
}

func (a *Answer) MediaReference() MediaReference {
	ref := MediaReference{PrimaryURL: a.PrimaryURL}
	if a.SecureURL != nil {
		ref.SecureURL = *a.SecureURL
	}
	if a.LocalBlob != nil {
		ref.LocalBlob = *a.LocalBlob
	}
	return ref
}

// AnswerContext is everything the pipeline needs to evaluate one answer.
type AnswerContext struct {
	Answer           Answer
	QuestionText     string
	QuestionKind     QuestionKind
	CampaignID       uuid.UUID
	OfferTitle       string
	OfferDescription string
	Requirements     string
	ExpectedSkills   []string
}
