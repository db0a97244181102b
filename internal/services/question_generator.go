package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"alfredoptarigan/interview-evaluator/internal/models"
)

type QuestionSource string

const (
	SourceMandatory         QuestionSource = "mandatory"
	SourceStaticBehavioural QuestionSource = "static_behavioural"
	SourceLLMTechnical      QuestionSource = "llm_technical"
	SourceFallbackTechnical QuestionSource = "fallback_technical"
)

const (
	introDurationSeconds       = 180
	behaviouralDurationSeconds = 120
	technicalDurationSeconds   = 180
	maxQuestionCount           = 10
	questionLLMRetries         = 2
)

type GeneratedQuestion struct {
	Text             string              `json:"text"`
	Kind             models.QuestionKind `json:"kind"`
	Order            int                 `json:"order"`
	ExpectedDuration int                 `json:"expected_duration"`
	Source           QuestionSource      `json:"source"`
}

type GenerateQuestionsInput struct {
	OfferTitle       string
	OfferDescription string
	Requirements     string
	Difficulty       string
	Count            int
	BehaviouralCount *int
	TechnicalCount   *int
}

type QuestionGenerator interface {
	Generate(ctx context.Context, in GenerateQuestionsInput) ([]GeneratedQuestion, error)
}

type questionGenerator struct {
	llm     LLMClient
	prompts *PromptBuilder

	mu  sync.Mutex
	rng *rand.Rand
}

// NewQuestionGenerator builds a generator; llm may be nil, in which case the
// technical slots always come from the fallback list. rng may be nil.
func NewQuestionGenerator(llm LLMClient, prompts *PromptBuilder, rng *rand.Rand) QuestionGenerator {
	if prompts == nil {
		prompts = NewPromptBuilder()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &questionGenerator{llm: llm, prompts: prompts, rng: rng}
}

func (g *questionGenerator) Generate(ctx context.Context, in GenerateQuestionsInput) ([]GeneratedQuestion, error) {
	if err := validateQuestionInput(in); err != nil {
		return nil, newPipelineError(ErrKindInvalidInput, err)
	}

	behavioural, technical := splitQuestionCounts(in.Count, in.BehaviouralCount, in.TechnicalCount)

	questions := make([]GeneratedQuestion, 0, in.Count)
	questions = append(questions, GeneratedQuestion{
		Text:             MandatoryIntroText,
		Kind:             models.QuestionMandatoryIntro,
		ExpectedDuration: introDurationSeconds,
		Source:           SourceMandatory,
	})

	for _, text := range g.sampleBehavioural(behavioural) {
		questions = append(questions, GeneratedQuestion{
			Text:             text,
			Kind:             models.QuestionBehavioural,
			ExpectedDuration: behaviouralDurationSeconds,
			Source:           SourceStaticBehavioural,
		})
	}

	questions = append(questions, g.technicalQuestions(ctx, in, technical)...)

	for i := range questions {
		questions[i].Order = i + 1
	}
	return questions, nil
}

func validateQuestionInput(in GenerateQuestionsInput) error {
	var problems []string
	if utf8.RuneCountInString(strings.TrimSpace(in.OfferTitle)) < 3 {
		problems = append(problems, "offer title must be at least 3 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.OfferDescription)) < 20 {
		problems = append(problems, "offer description must be at least 20 characters")
	}
	if in.Count < 1 || in.Count > maxQuestionCount {
		problems = append(problems, fmt.Sprintf("question count must be between 1 and %d", maxQuestionCount))
	}
	if in.BehaviouralCount != nil && *in.BehaviouralCount < 0 {
		problems = append(problems, "behavioural count cannot be negative")
	}
	if in.TechnicalCount != nil && *in.TechnicalCount < 0 {
		problems = append(problems, "technical count cannot be negative")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// splitQuestionCounts decides how many of the N-1 slots after the intro go to
// the behavioural bank and how many to technical questions.
func splitQuestionCounts(total int, behaviouralCount, technicalCount *int) (int, int) {
	slots := total - 1

	behavioural := slots / 2
	if behaviouralCount != nil {
		behavioural = *behaviouralCount
	}
	behavioural = min(behavioural, slots, len(behaviouralBank))

	technical := slots - behavioural
	if technicalCount != nil {
		technical = min(*technicalCount, technical)
	}
	return behavioural, technical
}

func (g *questionGenerator) sampleBehavioural(count int) []string {
	if count <= 0 {
		return nil
	}

	g.mu.Lock()
	order := g.rng.Perm(len(behaviouralBank))
	g.mu.Unlock()

	texts := make([]string, 0, count)
	for _, idx := range order[:count] {
		texts = append(texts, behaviouralBank[idx].Text)
	}
	return texts
}

func (g *questionGenerator) technicalQuestions(ctx context.Context, in GenerateQuestionsInput, count int) []GeneratedQuestion {
	if count <= 0 {
		return nil
	}

	var texts []string
	if g.llm != nil {
		prompt := g.prompts.BuildQuestionGenerationPrompt(in.OfferTitle, in.OfferDescription, in.Requirements, in.Difficulty, count)
		reply, err := generateWithRetry(ctx, g.llm, prompt, questionLLMRetries)
		if err == nil {
			texts, err = parseTechnicalQuestions(reply)
		}
		if err != nil {
			log.Printf("⚠️  Technical question generation failed, using fallback list: %v\n", err)
			texts = nil
		}
	}

	questions := make([]GeneratedQuestion, 0, count)
	for _, text := range texts {
		if len(questions) == count {
			break
		}
		questions = append(questions, GeneratedQuestion{
			Text:             text,
			Kind:             models.QuestionTechnical,
			ExpectedDuration: technicalDurationSeconds,
			Source:           SourceLLMTechnical,
		})
	}

	// Slots beyond the fallback list are dropped.
	for _, text := range fallbackTechnicalQuestions {
		if len(questions) == count {
			break
		}
		questions = append(questions, GeneratedQuestion{
			Text:             text,
			Kind:             models.QuestionTechnical,
			ExpectedDuration: technicalDurationSeconds,
			Source:           SourceFallbackTechnical,
		})
	}
	return questions
}

type llmTechnicalQuestion struct {
	Question string `json:"question"`
	Type     string `json:"type"`
}

const (
	technicalQuestionType = "technique"
	// Two lines of an interview prompt card.
	maxTechnicalQuestionRunes = 200
)

// sentenceBreak matches a terminator followed by more text.
var sentenceBreak = regexp.MustCompile(`[.?!…]\s+\S`)

func parseTechnicalQuestions(reply string) ([]string, error) {
	var items []llmTechnicalQuestion
	if err := json.Unmarshal([]byte(extractJSONArray(reply)), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var texts []string
	for _, item := range items {
		if !strings.EqualFold(strings.TrimSpace(item.Type), technicalQuestionType) {
			continue
		}
		if text, ok := singleSentence(item.Question); ok {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("reply contains no questions")
	}
	return texts, nil
}

// singleSentence normalizes whitespace and keeps a question to one sentence.
// A reply that opens with a question followed by extra sentences is trimmed
// to that question; one that opens with a statement is rejected.
func singleSentence(raw string) (string, bool) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return "", false
	}

	if loc := sentenceBreak.FindStringIndex(text); loc != nil {
		_, size := utf8.DecodeRuneInString(text[loc[0]:])
		first := strings.TrimSpace(text[:loc[0]+size])
		if !strings.HasSuffix(first, "?") {
			return "", false
		}
		text = first
	}

	if utf8.RuneCountInString(text) > maxTechnicalQuestionRunes {
		return "", false
	}
	return text, true
}

// ToModels converts generated questions into campaign rows.
func ToModels(questions []GeneratedQuestion) []models.Question {
	rows := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, models.Question{
			Text:              q.Text,
			Position:          q.Order,
			TimeBudgetSeconds: q.ExpectedDuration,
			Kind:              q.Kind,
			Source:            string(q.Source),
		})
	}
	return rows
}
