package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"alfredoptarigan/interview-evaluator/internal/models"
)

const (
	midpointScore   = 5.0
	strengthCutoff  = 7.0
	weaknessCutoff  = 5.0
	defaultFeedback = "The answer was scored automatically but the model returned no written feedback."
	silentFeedback  = "No audible content was detected in this recording, so the answer could not be assessed. All scores are set to 0."
)

type AnalysisRequest struct {
	Prompt         string
	QuestionText   string
	QuestionKind   models.QuestionKind
	Transcription  string
	ExpectedSkills []string
}

type Scores struct {
	Communication float64  `json:"communication"`
	Relevance     float64  `json:"relevance"`
	Confidence    float64  `json:"confidence"`
	Technical     *float64 `json:"technical,omitempty"`
	Overall       float64  `json:"overall"`
}

type TierAttempt struct {
	Provider models.Provider `json:"provider"`
	Error    string          `json:"error,omitempty"`
}

type AnalysisResult struct {
	Scores     Scores
	Feedback   string
	Strengths  string
	Weaknesses string
	Provider   models.Provider
	Attempts   []TierAttempt
}

// AnalyzerTier is one rung of the fallback ladder.
type AnalyzerTier interface {
	Provider() models.Provider
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

type AIAnalyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
	Configured() bool
}

type tieredAnalyzer struct {
	primary AnalyzerTier
	tiers   []AnalyzerTier
}

// NewAIAnalyzer chains the tiers in order. A nil primary leaves the analyzer
// unconfigured; nil secondary or contextual tiers are skipped.
func NewAIAnalyzer(primary, secondary, contextual AnalyzerTier) AIAnalyzer {
	a := &tieredAnalyzer{primary: primary}
	for _, tier := range []AnalyzerTier{primary, secondary, contextual} {
		if tier != nil {
			a.tiers = append(a.tiers, tier)
		}
	}
	return a
}

func (a *tieredAnalyzer) Configured() bool {
	return a.primary != nil
}

func (a *tieredAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if !a.Configured() {
		return nil, newPipelineError(ErrKindConfigurationMissing, errors.New("primary LLM is not configured"))
	}

	var attempts []TierAttempt
	var errs []error

	for _, tier := range a.tiers {
		result, err := tier.Analyze(ctx, req)
		if err != nil {
			attempts = append(attempts, TierAttempt{Provider: tier.Provider(), Error: err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", tier.Provider(), err))
			continue
		}

		attempts = append(attempts, TierAttempt{Provider: tier.Provider()})
		result.Provider = tier.Provider()
		result.Attempts = attempts
		finishScores(result, req.QuestionKind)
		return result, nil
	}

	return &AnalysisResult{Provider: models.ProviderError, Attempts: attempts},
		newPipelineError(ErrKindAnalysisFailed, fmt.Errorf("all analyzer tiers failed: %w", errors.Join(errs...)))
}

// finishScores fills the parts every tier shares: the technical score and
// the strengths/weaknesses summary.
func finishScores(result *AnalysisResult, kind models.QuestionKind) {
	s := &result.Scores
	s.Communication = roundScore(s.Communication)
	s.Relevance = roundScore(s.Relevance)
	s.Confidence = roundScore(s.Confidence)
	s.Overall = roundScore(s.Overall)

	if kind == models.QuestionTechnical {
		technical := s.Relevance
		s.Technical = &technical
	} else {
		s.Technical = nil
	}

	if result.Strengths == "" && result.Weaknesses == "" {
		result.Strengths, result.Weaknesses = summarizeScores(*s)
	}
	if strings.TrimSpace(result.Feedback) == "" {
		result.Feedback = defaultFeedback
	}
}

func summarizeScores(s Scores) (string, string) {
	dimensions := []struct {
		score    float64
		strength string
		weakness string
	}{
		{s.Communication, "Clear and structured communication", "Communication could be clearer and better structured"},
		{s.Relevance, "Answer addresses the question directly", "Answer drifts away from the question"},
		{s.Confidence, "Confident delivery", "Delivery lacks confidence"},
	}

	var strengths, weaknesses []string
	for _, d := range dimensions {
		switch {
		case d.score >= strengthCutoff:
			strengths = append(strengths, d.strength)
		case d.score < weaknessCutoff:
			weaknesses = append(weaknesses, d.weakness)
		}
	}
	return strings.Join(strengths, "\n"), strings.Join(weaknesses, "\n")
}

// SilentContentResult is the zero-score outcome for a transcription the
// content validator rejected.
func SilentContentResult(kind models.QuestionKind, reason ContentReason) *AnalysisResult {
	result := &AnalysisResult{
		Feedback:   silentFeedback,
		Weaknesses: fmt.Sprintf("No usable speech in the recording (%s)", reason),
		Provider:   models.ProviderContextualFallback,
	}
	if kind == models.QuestionTechnical {
		zero := 0.0
		result.Scores.Technical = &zero
	}
	return result
}

// primary tier

type primaryTier struct {
	client LLMClient
}

func NewPrimaryTier(client LLMClient) AnalyzerTier {
	if client == nil {
		return nil
	}
	return &primaryTier{client: client}
}

func (p *primaryTier) Provider() models.Provider { return models.ProviderPrimary }

func (p *primaryTier) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	reply, err := p.client.GenerateText(ctx, req.Prompt)
	if err != nil {
		return nil, err
	}
	return ParsePrimaryReply(reply)
}

var firstObjectPattern = regexp.MustCompile(`(?s)\{.*?\}`)

var subScoreKeys = []string{"communication_score", "relevance_score", "confidence_score"}

// ParsePrimaryReply turns the model's reply into scores. Out-of-range
// values are clamped to [0,10], non-numeric ones become 5.0 and a missing
// overall score is the mean of the sub-scores that were supplied.
func ParsePrimaryReply(reply string) (*AnalysisResult, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(extractJSON(reply)), &raw); err != nil {
		block := firstObjectPattern.FindString(reply)
		if block == "" {
			return nil, fmt.Errorf("no JSON object in reply")
		}
		if err := json.Unmarshal([]byte(block), &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
		}
	}

	found := false
	for _, key := range append(subScoreKeys, "overall_score") {
		if _, ok := raw[key]; ok {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("reply has no score keys")
	}

	values := make([]float64, len(subScoreKeys))
	var provided []float64
	for i, key := range subScoreKeys {
		v, ok := raw[key]
		if !ok {
			values[i] = midpointScore
			continue
		}
		score, _ := coerceScore(v)
		values[i] = score
		provided = append(provided, score)
	}

	var overall float64
	if v, ok := raw["overall_score"]; ok {
		if score, numeric := coerceScore(v); numeric {
			overall = score
		} else {
			overall = meanOr(provided, midpointScore)
		}
	} else {
		overall = meanOr(provided, midpointScore)
	}

	feedback, _ := raw["feedback"].(string)

	return &AnalysisResult{
		Scores: Scores{
			Communication: values[0],
			Relevance:     values[1],
			Confidence:    values[2],
			Overall:       clamp(overall, 0, 10),
		},
		Feedback: strings.TrimSpace(feedback),
	}, nil
}

// coerceScore reports false when the value was not a number.
func coerceScore(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return clamp(val, 0, 10), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) {
			return midpointScore, false
		}
		return clamp(f, 0, 10), true
	default:
		return midpointScore, false
	}
}

// secondary tier

type secondaryTier struct {
	classifier ZeroShotClassifier
}

func NewSecondaryTier(classifier ZeroShotClassifier) AnalyzerTier {
	if classifier == nil {
		return nil
	}
	return &secondaryTier{classifier: classifier}
}

func (s *secondaryTier) Provider() models.Provider { return models.ProviderSecondary }

func (s *secondaryTier) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	text := strings.TrimSpace(req.Transcription)
	if text == "" {
		return nil, fmt.Errorf("secondary classifier needs a transcription")
	}

	labels := req.ExpectedSkills
	if len(labels) == 0 {
		labels = []string{req.QuestionText}
	}

	hypotheses := make([]string, 0, len(labels)+1)
	for _, label := range labels {
		hypotheses = append(hypotheses, fmt.Sprintf("The candidate's answer demonstrates %s.", label))
	}
	hypotheses = append(hypotheses, fmt.Sprintf("The candidate answers the question: %s", req.QuestionText))

	matches, err := s.classifier.Classify(ctx, text, hypotheses)
	if err != nil {
		return nil, err
	}
	if len(matches) != len(hypotheses) {
		return nil, fmt.Errorf("classifier returned %d scores for %d labels", len(matches), len(hypotheses))
	}

	skillMatches := make([]float64, len(labels))
	best := 0
	for i := range labels {
		skillMatches[i] = clamp(matches[i], 0, 1)
		if skillMatches[i] > skillMatches[best] {
			best = i
		}
	}

	overall := meanOr(skillMatches, 0) * 10
	relevance := clamp(matches[len(matches)-1], 0, 1) * 10

	return &AnalysisResult{
		Scores: Scores{
			Communication: overall,
			Relevance:     relevance,
			Confidence:    overall,
			Overall:       overall,
		},
		Feedback: fmt.Sprintf(
			"Automatic fallback assessment: the answer matches the expected skills at %.1f/10 on average, strongest on %q.",
			overall, labels[best]),
	}, nil
}

// contextual tier

type contextualTier struct{}

func NewContextualTier(enabled bool) AnalyzerTier {
	if !enabled {
		return nil
	}
	return contextualTier{}
}

func (contextualTier) Provider() models.Provider { return models.ProviderContextualFallback }

func (contextualTier) Analyze(_ context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	score := ContextualScore(req.QuestionText, req.ExpectedSkills)

	skills := "none specified"
	if len(req.ExpectedSkills) > 0 {
		skills = strings.Join(req.ExpectedSkills, ", ")
	}

	return &AnalysisResult{
		Scores: Scores{
			Communication: score,
			Relevance:     score,
			Confidence:    score,
			Overall:       score,
		},
		Feedback: fmt.Sprintf(
			"The automatic analysis was unavailable, so the answer to %q was scored from the interview context only. Expected skills considered: %s. A manual review is recommended.",
			strings.TrimSpace(req.QuestionText), skills),
	}, nil
}

// ContextualScore is the heuristic score used when no model answered.
func ContextualScore(questionText string, expectedSkills []string) float64 {
	base := math.Min(85, 70+5*float64(len(expectedSkills)))
	if utf8.RuneCountInString(questionText) > 100 {
		base += 5
	}
	return clamp(base/10, 0, 10)
}

// extractJSON tries to extract JSON from text that might contain markdown or other formatting
func extractJSON(text string) string {
	// Remove markdown code blocks
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	startObj := strings.Index(text, "{")
	endObj := strings.LastIndex(text, "}")
	if startObj != -1 && endObj > startObj {
		return text[startObj : endObj+1]
	}

	return text
}

// extractJSONArray is extractJSON for replies that should hold a list.
func extractJSONArray(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	startArr := strings.Index(text, "[")
	endArr := strings.LastIndex(text, "]")
	if startArr != -1 && endArr > startArr {
		return text[startArr : endArr+1]
	}

	return text
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

func meanOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
