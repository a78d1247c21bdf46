package generation

import (
	"context"
	"fmt"
	"strings"
)

// StubProvider produces deterministic placeholder content. It stands in for
// the real model-backed providers in development and in tests.
type StubProvider struct {
	BaseURL string
}

// NewStubProvider builds a stub provider that roots generated asset URLs at
// baseURL.
func NewStubProvider(baseURL string) *StubProvider {
	if baseURL == "" {
		baseURL = "https://assets.podcraft.local"
	}
	return &StubProvider{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (provider *StubProvider) GenerateScript(ctx context.Context, request ScriptRequest) (Script, error) {
	text := fmt.Sprintf(
		"Welcome to %s. Today we are talking about %s. Thanks for listening.",
		request.Title, request.Description,
	)
	return Script{Text: text, WordCount: len(strings.Fields(text))}, nil
}

func (provider *StubProvider) Synthesize(ctx context.Context, request SpeechRequest) (Audio, error) {
	words := len(strings.Fields(request.ScriptText))
	// Rough narration pace of 150 words per minute.
	return Audio{
		URL:             provider.BaseURL + "/audio/" + slugOrDefault(request.Voice, "narrator") + ".mp3",
		DurationSeconds: words * 60 / 150,
	}, nil
}

func (provider *StubProvider) GenerateImage(ctx context.Context, request ImageRequest) (Image, error) {
	return Image{URL: provider.BaseURL + "/images/" + slugOrDefault(request.Title, "cover") + ".png"}, nil
}

func (provider *StubProvider) ComposeVideo(ctx context.Context, request VideoRequest) (Video, error) {
	return Video{URL: provider.BaseURL + "/videos/episode.mp4"}, nil
}

func slugOrDefault(raw string, fallback string) string {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if slug == "" {
		return fallback
	}
	return strings.ReplaceAll(slug, " ", "-")
}
