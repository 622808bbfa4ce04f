package imagegen

import (
	"fmt"
	"strings"
)

// DefaultEnhancePrompt is sent when no override is configured.
const DefaultEnhancePrompt = "Enhance this photo."

// InstructionOptions tunes the enhancement prompt sent with each photo.
type InstructionOptions struct {
	// Override replaces the built-in base instruction when non-empty.
	Override string
	// Width and Height of the original, when known, so the model keeps the framing.
	Width  int
	Height int
}

// BuildInstruction assembles the instruction text for a single enhancement.
func BuildInstruction(opts InstructionOptions) string {
	parts := []string{}
	if base := strings.TrimSpace(opts.Override); base != "" {
		parts = append(parts, strings.TrimRight(base, ".")+".")
	} else {
		parts = append(parts,
			DefaultEnhancePrompt,
			"Improve sharpness, exposure, white balance, and color accuracy.",
			"Reduce noise and compression artifacts.",
		)
	}
	parts = append(parts, "Keep the subject, composition, and identity unchanged; do not add or remove objects.")
	if opts.Width > 0 && opts.Height > 0 {
		parts = append(parts, fmt.Sprintf("Keep the original %dx%d framing.", opts.Width, opts.Height))
	}
	parts = append(parts, "Return the enhanced photo as an image.")
	return strings.Join(parts, " ")
}
