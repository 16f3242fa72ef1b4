package convert

import (
	"context"
	"fmt"
	"path/filepath"
)

const visionDefaultPrompt = "Describe the content of this image in detail and format as markdown"

// VisionConverter is a deterministic local stand-in for a generic vision
// model. The output echoes the configured model and the prompt that would
// have been sent.
type VisionConverter struct {
	model     string
	maxTokens int
}

func NewVisionConverter(opts Options) (*VisionConverter, error) {
	return &VisionConverter{
		model:     strOr(opts.Model, "gpt-4-vision"),
		maxTokens: intOr(opts.MaxTokens, 1000),
	}, nil
}

func (c *VisionConverter) Convert(_ context.Context, imagePath string, opts *ConvertOptions) (string, error) {
	if err := checkImage(imagePath); err != nil {
		return "", err
	}

	prompt := visionDefaultPrompt
	if opts != nil && opts.Prompt != "" {
		prompt = opts.Prompt
	}

	return fmt.Sprintf(`# %s Analysis

## Description
This image appears to show a detailed diagram with various components and connections.

## Key Elements
- Main subject is centered in the frame
- There appears to be text labels identifying different parts
- The color scheme is primarily blue and white

## Content Summary
The image depicts what seems to be a technical diagram.
Several key components are visible, including connectors, labels, and structural elements.

## Notes
This analysis was generated using the %s model with a max token limit of %d.
The prompt used was: %q

`, filepath.Base(imagePath), c.model, c.maxTokens, prompt), nil
}
