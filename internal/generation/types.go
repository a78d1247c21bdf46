// Package generation defines the content-provider contracts the project
// pipeline calls for scripts, narration, cover images, and video renders.
package generation

import (
	"context"
	"errors"
)

// ErrProviderFailure marks a provider-side generation failure. The pipeline
// refunds the step's debit when it sees this.
var ErrProviderFailure = errors.New("content provider failure")

// ScriptRequest asks for an episode script.
type ScriptRequest struct {
	Title       string
	Description string
}

// Script is a generated episode script.
type Script struct {
	Text      string
	WordCount int
}

// SpeechRequest asks for narrated audio of a script.
type SpeechRequest struct {
	ScriptText string
	Voice      string
}

// Audio points at rendered narration.
type Audio struct {
	URL             string
	DurationSeconds int
}

// ImageRequest asks for episode cover art.
type ImageRequest struct {
	Title       string
	Description string
}

// Image points at rendered cover art.
type Image struct {
	URL string
}

// VideoRequest asks for a rendered episode video.
type VideoRequest struct {
	AudioURL string
	ImageURL string
}

// Video points at a rendered episode video.
type Video struct {
	URL string
}

// ScriptProvider writes episode scripts.
type ScriptProvider interface {
	GenerateScript(ctx context.Context, request ScriptRequest) (Script, error)
}

// SpeechProvider narrates scripts.
type SpeechProvider interface {
	Synthesize(ctx context.Context, request SpeechRequest) (Audio, error)
}

// ImageProvider renders cover art.
type ImageProvider interface {
	GenerateImage(ctx context.Context, request ImageRequest) (Image, error)
}

// VideoProvider composes audio and art into a video.
type VideoProvider interface {
	ComposeVideo(ctx context.Context, request VideoRequest) (Video, error)
}

// Providers bundles the four provider roles the pipeline needs.
type Providers struct {
	Script ScriptProvider
	Speech SpeechProvider
	Image  ImageProvider
	Video  VideoProvider
}
