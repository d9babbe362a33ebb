// Package langdetect classifies posting text as Spanish, English, or unknown
// using a statistical trigram classifier. Detection is total: every input
// maps to exactly one language, never an error.
package langdetect

import (
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/lanceworks/autobid-cli/internal/model"
)

// minTextLen is the shortest combined text the classifier is trusted with.
// Anything shorter is always unknown.
const minTextLen = 10

// iso6393 maps whatlanggo's ISO 639-3 output onto the languages proposals
// can be written in. Everything else collapses to unknown.
var iso6393 = map[string]model.Language{
	"spa": model.LangSpanish,
	"eng": model.LangEnglish,
}

// Detect returns the language of text.
func Detect(text string) model.Language {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minTextLen {
		return model.LangUnknown
	}

	info := whatlanggo.Detect(trimmed)
	if lang, ok := iso6393[whatlanggo.LangToString(info.Lang)]; ok {
		return lang
	}
	return model.LangUnknown
}
