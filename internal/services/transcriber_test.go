package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentConfidence(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		want     float64
	}{
		{"no segments", nil, 0},
		{"single segment", []Segment{{Start: 0, End: 4, AvgLogProb: -0.2}}, 0.4},
		{
			name: "duration weighted",
			segments: []Segment{
				{Start: 0, End: 3, AvgLogProb: 0},
				{Start: 3, End: 4, AvgLogProb: -1},
			},
			want: 0.375,
		},
		{"clamped", []Segment{{Start: 0, End: 1, AvgLogProb: -3}}, 0},
		{
			name: "zero duration uses plain mean",
			segments: []Segment{
				{Start: 2, End: 2, AvgLogProb: 0},
				{Start: 2, End: 2, AvgLogProb: -1},
			},
			want: 0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SegmentConfidence(tt.segments), 1e-9)
		})
	}
}

func TestWhisperTranscriber_Model(t *testing.T) {
	assert.Equal(t, "whisper-1", NewWhisperTranscriber("key", "", "large", nil).Model())
	assert.Equal(t, "Systran/faster-whisper-large-v3", NewWhisperTranscriber("", "http://whisper:8000/v1", "large", nil).Model())
	assert.Equal(t, "Systran/faster-whisper-small", NewWhisperTranscriber("", "http://whisper:8000/v1", "small", nil).Model())
	assert.Equal(t, "Systran/faster-whisper-base", NewWhisperTranscriber("", "http://whisper:8000/v1", "huge", nil).Model())
}

func TestWhisperTranscriber_Unavailable(t *testing.T) {
	transcriber := NewWhisperTranscriber("", "", "base", nil)

	_, err := transcriber.Transcribe(context.Background(), "/does/not/matter.wav", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscriptionUnavailable))
	assert.Equal(t, ErrKindTranscriptionUnavailable, KindOf(err))
}

func TestWhisperTranscriber_VerboseJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"task": "transcribe",
			"language": "english",
			"duration": 4.0,
			"text": "  I shipped the feature on time.  ",
			"segments": [
				{"id": 0, "start": 0.0, "end": 2.0, "text": " I shipped", "avg_logprob": 0.0},
				{"id": 1, "start": 2.0, "end": 4.0, "text": " the feature on time.", "avg_logprob": -0.5}
			]
		}`))
	}))
	defer server.Close()

	audio := filepath.Join(t.TempDir(), "answer.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	transcriber := NewWhisperTranscriber("", server.URL+"/v1", "base", nil)
	result, err := transcriber.Transcribe(context.Background(), audio, "")

	require.NoError(t, err)
	assert.Equal(t, "I shipped the feature on time.", result.Text)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, "backend", result.LanguageSource)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, "I shipped", result.Segments[0].Text)
	assert.InDelta(t, 0.375, result.Confidence, 1e-9)
	assert.Equal(t, "Systran/faster-whisper-base", result.Model)
}

func TestWhisperTranscriber_EmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"language": "english", "text": "", "segments": [{"start": 0, "end": 1, "text": "", "avg_logprob": -0.1}]}`))
	}))
	defer server.Close()

	audio := filepath.Join(t.TempDir(), "answer.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	result, err := NewWhisperTranscriber("", server.URL, "base", nil).Transcribe(context.Background(), audio, "")

	require.NoError(t, err)
	assert.Empty(t, result.Text)
	assert.Equal(t, unknownLanguage, result.Language)
	assert.Zero(t, result.Confidence)
	assert.Nil(t, result.SegmentsJSON())
}

func TestLookupLanguage(t *testing.T) {
	tests := []struct {
		reported string
		want     string
		ok       bool
	}{
		{"fr", "fr", true},
		{"french", "fr", true},
		{"English", "en", true},
		{"fr-FR", "fr", true},
		{"pt_BR", "pt", true},
		{"", "", false},
		{"klingon", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.reported, func(t *testing.T) {
			got, ok := lookupLanguage(tt.reported)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLanguageNormalizer_EmptyText(t *testing.T) {
	tag, source := NewLanguageNormalizer().Normalize("", "   ")
	assert.Equal(t, unknownLanguage, tag)
	assert.Equal(t, "none", source)
}
