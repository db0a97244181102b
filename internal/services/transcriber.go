package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	AvgLogProb float64 `json:"avg_logprob"`
}

type Transcription struct {
	Text           string    `json:"text"`
	Language       string    `json:"language"`
	LanguageSource string    `json:"language_source"`
	Confidence     float64   `json:"confidence"`
	Segments       []Segment `json:"segments"`
	Model          string    `json:"model"`
}

// SegmentsJSON encodes the segments for the evaluation row.
func (t *Transcription) SegmentsJSON() []byte {
	if t == nil || len(t.Segments) == 0 {
		return nil
	}
	data, err := json.Marshal(t.Segments)
	if err != nil {
		return nil
	}
	return data
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string, languageHint string) (*Transcription, error)
	Model() string
}

// SegmentConfidence maps each segment's average log-probability p onto
// [0,1] with (p+1)/2 and weights it by segment duration.
func SegmentConfidence(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}

	var weighted, total, plain float64
	for _, seg := range segments {
		score := clamp((seg.AvgLogProb+1)/2, 0, 1)
		duration := seg.End - seg.Start
		if duration < 0 {
			duration = 0
		}
		weighted += score * duration
		total += duration
		plain += score
	}

	if total == 0 {
		return plain / float64(len(segments))
	}
	return clamp(weighted/total, 0, 1)
}

var whisperModels = map[string]string{
	"tiny":   "tiny",
	"base":   "base",
	"small":  "small",
	"medium": "medium",
	"large":  "large-v3",
}

type whisperTranscriber struct {
	apiKey    string
	baseURL   string
	modelSize string
	languages *LanguageNormalizer

	once    sync.Once
	client  *openai.Client
	loadErr error
}

// NewWhisperTranscriber talks to the OpenAI transcription API, or to any
// OpenAI-compatible whisper server when baseURL is set. The client is built
// on first use.
func NewWhisperTranscriber(apiKey, baseURL, modelSize string, languages *LanguageNormalizer) Transcriber {
	if languages == nil {
		languages = NewLanguageNormalizer()
	}
	return &whisperTranscriber{
		apiKey:    apiKey,
		baseURL:   baseURL,
		modelSize: modelSize,
		languages: languages,
	}
}

// Model returns the backend model name; the hosted API only serves whisper-1
// so the size knob applies to self-hosted servers.
func (w *whisperTranscriber) Model() string {
	if w.baseURL == "" {
		return openai.Whisper1
	}
	size, ok := whisperModels[w.modelSize]
	if !ok {
		size = "base"
	}
	return "Systran/faster-whisper-" + size
}

func (w *whisperTranscriber) load() (*openai.Client, error) {
	w.once.Do(func() {
		if w.apiKey == "" && w.baseURL == "" {
			w.loadErr = ErrTranscriptionUnavailable
			return
		}
		cfg := openai.DefaultConfig(w.apiKey)
		if w.baseURL != "" {
			cfg.BaseURL = w.baseURL
		}
		w.client = openai.NewClientWithConfig(cfg)
	})
	return w.client, w.loadErr
}

func (w *whisperTranscriber) Transcribe(ctx context.Context, path string, languageHint string) (*Transcription, error) {
	client, err := w.load()
	if err != nil {
		return nil, newPipelineError(ErrKindTranscriptionUnavailable, err)
	}

	req := openai.AudioRequest{
		Model:    w.Model(),
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: languageHint,
	}

	resp, err := client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, newPipelineError(ErrKindTranscriptionFailed, fmt.Errorf("transcription error: %w", err))
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, Segment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       strings.TrimSpace(seg.Text),
			AvgLogProb: seg.AvgLogprob,
		})
	}

	text := strings.TrimSpace(resp.Text)
	result := &Transcription{
		Text:     text,
		Segments: segments,
		Model:    w.Model(),
	}
	if text == "" {
		result.Segments = nil
		result.Language = unknownLanguage
		result.LanguageSource = "none"
		return result, nil
	}

	result.Confidence = SegmentConfidence(segments)
	result.Language, result.LanguageSource = w.languages.Normalize(resp.Language, text)
	return result, nil
}
