package model

import "fmt"

type Resolution struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ReferenceImage is an already base64-encoded image used to condition the
// generated video. Format is "png" or "jpeg".
type ReferenceImage struct {
	Format string
	Base64 string
}

// GenerationRequest is immutable once submitted. A nil ReferenceImage means
// plain text-to-video.
type GenerationRequest struct {
	PromptText      string
	ReferenceImage  *ReferenceImage
	DurationSeconds int
	FramesPerSecond int
	Resolution      Resolution
	Seed            int
}

func (r *GenerationRequest) HasReferenceImage() bool {
	return r != nil && r.ReferenceImage != nil && r.ReferenceImage.Base64 != ""
}

// GenerationOverrides replaces the configured defaults for a single request.
// Zero values keep the default.
type GenerationOverrides struct {
	DurationSeconds int
	FramesPerSecond int
	Resolution      Resolution
	Seed            *int
}

// GenerationResult pairs the outcome of one generation attempt with the
// prompt that produced it. Location is empty when Skipped is set.
type GenerationResult struct {
	Prompt   string        `json:"prompt"`
	Concept  string        `json:"concept"`
	Location string        `json:"location,omitempty"`
	Handle   JobHandle     `json:"handle,omitempty"`
	Skipped  bool          `json:"skipped"`
	Reason   string        `json:"reason,omitempty"`
	Asset    *IndexedAsset `json:"-"`
}

type BatchItem struct {
	Template string `json:"template" yaml:"template"`
	Concept  string `json:"concept" yaml:"concept"`
	Action   string `json:"action" yaml:"action"`
}
