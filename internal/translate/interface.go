package translate

import (
	"context"
	"fmt"
)

// Translator is the common interface for translation engines. Translate
// renders a transcript in the target language, one call per language.
type Translator interface {
	Translate(ctx context.Context, transcript, targetLang string) (string, error)
	Name() string
}

// TranslationError reports a provider failure for a single target language.
// It aborts only that language's result; sibling languages are unaffected.
type TranslationError struct {
	Provider string
	Language string
	Err      error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation to %s (%s): %v", e.Language, e.Provider, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }
