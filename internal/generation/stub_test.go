package generation_test

import (
	"context"
	"strings"
	"testing"

	"github.com/podcraft/backend/internal/generation"
)

func TestStubScriptMentionsTopic(test *testing.T) {
	test.Parallel()
	provider := generation.NewStubProvider("")

	script, err := provider.GenerateScript(context.Background(), generation.ScriptRequest{
		Title:       "Deep Sea Radio",
		Description: "bioluminescence",
	})
	if err != nil {
		test.Fatalf("generate script: %v", err)
	}
	if !strings.Contains(script.Text, "Deep Sea Radio") || !strings.Contains(script.Text, "bioluminescence") {
		test.Fatalf("script does not mention the topic: %q", script.Text)
	}
	if script.WordCount != len(strings.Fields(script.Text)) {
		test.Fatalf("word count %d does not match text", script.WordCount)
	}
}

func TestStubNarrationPace(test *testing.T) {
	test.Parallel()
	provider := generation.NewStubProvider("https://cdn.example.com/")

	audio, err := provider.Synthesize(context.Background(), generation.SpeechRequest{
		ScriptText: strings.Repeat("word ", 300),
		Voice:      "Morning Host",
	})
	if err != nil {
		test.Fatalf("synthesize: %v", err)
	}
	if audio.DurationSeconds != 120 {
		test.Fatalf("expected 300 words to narrate in 120s, got %d", audio.DurationSeconds)
	}
	if audio.URL != "https://cdn.example.com/audio/morning-host.mp3" {
		test.Fatalf("unexpected audio url %q", audio.URL)
	}
}

func TestStubImageAndVideoURLs(test *testing.T) {
	test.Parallel()
	provider := generation.NewStubProvider("")

	image, err := provider.GenerateImage(context.Background(), generation.ImageRequest{Title: "Deep Sea Radio"})
	if err != nil {
		test.Fatalf("generate image: %v", err)
	}
	if image.URL != "https://assets.podcraft.local/images/deep-sea-radio.png" {
		test.Fatalf("unexpected image url %q", image.URL)
	}

	video, err := provider.ComposeVideo(context.Background(), generation.VideoRequest{})
	if err != nil {
		test.Fatalf("compose video: %v", err)
	}
	if !strings.HasSuffix(video.URL, ".mp4") {
		test.Fatalf("unexpected video url %q", video.URL)
	}
}
