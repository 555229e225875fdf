package highlight

import (
	"errors"
	"fmt"
)

// ErrTokenize is wrapped by errors returned from Tokenizer.TokenizeLine.
var ErrTokenize = errors.New("highlight: tokenize failed")

// Tokenizer turns a line of text into styled spans for a language. It is
// a pure per-line function over an immutable grammar registry and theme,
// so independently constructed instances never share mutable state.
type Tokenizer struct {
	registry *Registry
	theme    *Theme
}

// NewTokenizer creates a tokenizer over a registry and theme. Nil
// arguments select the built-in defaults.
func NewTokenizer(registry *Registry, theme *Theme) *Tokenizer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Tokenizer{registry: registry, theme: theme}
}

// Clone returns an independent tokenizer over the same grammars and theme.
// Both are immutable after construction, so a clone is safe to use from a
// worker context without synchronization.
func (t *Tokenizer) Clone() *Tokenizer {
	return &Tokenizer{registry: t.registry, theme: t.theme}
}

// Theme returns the active theme.
func (t *Tokenizer) Theme() *Theme {
	return t.theme
}

// TokenizeLine tokenizes a single line of text for the given LSP language
// id. Lines of a language without a registered grammar come back as a
// single unstyled span. A panicking grammar rule is reported as an error
// wrapping ErrTokenize rather than propagating.
func (t *Tokenizer) TokenizeLine(text, languageID string) (spans []Span, err error) {
	defer func() {
		if r := recover(); r != nil {
			spans = nil
			err = fmt.Errorf("%w: language %s: %v", ErrTokenize, languageID, r)
		}
	}()

	grammar, ok := t.registry.Lookup(languageID)
	if !ok {
		return PlainSpan(text), nil
	}

	tokens, _ := grammar.TokenizeLine(text, LexerStateNormal)
	if len(tokens) == 0 {
		return PlainSpan(text), nil
	}

	spans = make([]Span, 0, len(tokens))
	for _, tok := range tokens {
		spans = append(spans, Span{
			Start: tok.StartCol,
			End:   tok.EndCol,
			Scope: tok.Type.Scope(),
			Style: t.theme.StyleForToken(tok.Type),
		})
	}

	return NestSpans(spans), nil
}
