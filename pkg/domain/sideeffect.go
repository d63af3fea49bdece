package domain

import "fmt"

// EffectKind selects the generation endpoint of a side effect.
type EffectKind string

const (
	EffectText  EffectKind = "text"
	EffectImage EffectKind = "image"
)

// DefaultImageDimension is the square edge length requested for generated images.
const DefaultImageDimension uint = 1024

// SideEffect describes one unit of asynchronous work.
// It is keyed by the EntryID it will finalize.
type SideEffect struct {
	Kind      EffectKind
	Prompt    string
	Dimension uint // image only
	API       APISettings
	EntryID   string
}

// TextGeneration describes a text generation for prompt that finalizes entryID.
func TextGeneration(prompt string, api APISettings, entryID string) SideEffect {
	return SideEffect{Kind: EffectText, Prompt: prompt, API: api, EntryID: entryID}
}

// ImageGeneration describes an image generation for prompt that finalizes entryID.
func ImageGeneration(prompt string, dimension uint, api APISettings, entryID string) SideEffect {
	return SideEffect{Kind: EffectImage, Prompt: prompt, Dimension: dimension, API: api, EntryID: entryID}
}

// Size formats the dimension the way the image endpoint expects it.
func (e SideEffect) Size() string {
	return fmt.Sprintf("%dx%d", e.Dimension, e.Dimension)
}

func (e SideEffect) String() string {
	switch e.Kind {
	case EffectImage:
		return fmt.Sprintf("image generation for prompt %q (dimension %d, entry %s)", e.Prompt, e.Dimension, e.EntryID)
	default:
		return fmt.Sprintf("text generation for prompt %q (entry %s)", e.Prompt, e.EntryID)
	}
}
