package highlight

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an RGB color for span styling. The zero value means "use the
// surface default" (no color set).
type Color struct {
	R, G, B uint8
	Set     bool
}

// HexColor parses a "#rrggbb" string into a Color.
func HexColor(hex string) (Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, Set: true}, nil
}

// mustHex parses a hex color known at compile time.
func mustHex(hex string) Color {
	c, err := HexColor(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex returns the "#rrggbb" form of the color, or "" for the default color.
func (c Color) Hex() string {
	if !c.Set {
		return ""
	}
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}.Hex()
}

// Blend mixes two colors in LAB space. Used for derived UI colors such as
// dimmed or selected variants of a token style.
func (c Color) Blend(other Color, t float64) Color {
	if !c.Set {
		return other
	}
	if !other.Set {
		return c
	}
	a := colorful.Color{R: float64(c.R) / 255.0, G: float64(c.G) / 255.0, B: float64(c.B) / 255.0}
	b := colorful.Color{R: float64(other.R) / 255.0, G: float64(other.G) / 255.0, B: float64(other.B) / 255.0}
	m := a.BlendLab(b, t).Clamped()
	r, g, bb := m.RGB255()
	return Color{R: r, G: g, B: bb, Set: true}
}

// Style describes the visual presentation of a span.
type Style struct {
	Foreground Color `json:"fg"`
	Background Color `json:"bg"`
	Bold       bool  `json:"bold,omitempty"`
	Italic     bool  `json:"italic,omitempty"`
	Underline  bool  `json:"underline,omitempty"`
}

// Theme maps token types and scopes to styles.
type Theme struct {
	// Name is the display name of the theme.
	Name string

	// Foreground is the default text color.
	Foreground Color

	// Background is the default background color.
	Background Color

	// TokenStyles maps token types to their styles.
	TokenStyles map[TokenType]Style

	// ScopeStyles maps scope strings to styles (for custom scopes).
	ScopeStyles map[string]Style
}

// StyleForToken returns the style for a token type, falling back to the
// theme's default foreground.
func (t *Theme) StyleForToken(tokenType TokenType) Style {
	if style, ok := t.TokenStyles[tokenType]; ok {
		return style
	}
	return Style{Foreground: t.Foreground}
}

// StyleForScope returns the style for a scope string, checking exact
// matches first and then walking up parent scopes ("string.escape" falls
// back to "string").
func (t *Theme) StyleForScope(scope string) Style {
	for len(scope) > 0 {
		if style, ok := t.ScopeStyles[scope]; ok {
			return style
		}
		if tok, ok := scopeTokenTypes[scope]; ok {
			if style, ok := t.TokenStyles[tok]; ok {
				return style
			}
		}
		scope = parentScope(scope)
	}
	return Style{Foreground: t.Foreground}
}

// parentScope strips the last dot-separated segment.
func parentScope(scope string) string {
	for i := len(scope) - 1; i >= 0; i-- {
		if scope[i] == '.' {
			return scope[:i]
		}
	}
	return ""
}

// scopeTokenTypes maps scope names back to token types.
var scopeTokenTypes = func() map[string]TokenType {
	m := make(map[string]TokenType, len(tokenTypeScopes))
	for i, name := range tokenTypeScopes {
		if name != "" {
			m[name] = TokenType(i)
		}
	}
	return m
}()

// DefaultTheme returns a sensible default dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		Name:       "Default Dark",
		Foreground: mustHex("#d4d4d4"),
		Background: mustHex("#1e1e1e"),
		TokenStyles: map[TokenType]Style{
			TokenComment:            {Foreground: mustHex("#6a9955"), Italic: true},
			TokenCommentLine:        {Foreground: mustHex("#6a9955"), Italic: true},
			TokenCommentBlock:       {Foreground: mustHex("#6a9955"), Italic: true},
			TokenString:             {Foreground: mustHex("#ce9178")},
			TokenStringInterpolated: {Foreground: mustHex("#ce9178")},
			TokenStringRegexp:       {Foreground: mustHex("#d16969")},
			TokenNumber:             {Foreground: mustHex("#b5cea8")},
			TokenNumberHex:          {Foreground: mustHex("#b5cea8")},
			TokenNumberOctal:        {Foreground: mustHex("#b5cea8")},
			TokenNumberBinary:       {Foreground: mustHex("#b5cea8")},
			TokenKeyword:            {Foreground: mustHex("#569cd6"), Bold: true},
			TokenKeywordControl:     {Foreground: mustHex("#c586c0"), Bold: true},
			TokenKeywordDeclaration: {Foreground: mustHex("#569cd6"), Bold: true},
			TokenKeywordOther:       {Foreground: mustHex("#569cd6")},
			TokenConstantLanguage:   {Foreground: mustHex("#569cd6")},
			TokenFunctionBuiltin:    {Foreground: mustHex("#dcdcaa")},
			TokenTypeBuiltin:        {Foreground: mustHex("#4ec9b0")},
			TokenStorageModifier:    {Foreground: mustHex("#569cd6")},
			TokenMarkupHeading:      {Foreground: mustHex("#569cd6"), Bold: true},
			TokenMarkupBold:         {Foreground: mustHex("#d4d4d4"), Bold: true},
			TokenMarkupItalic:       {Foreground: mustHex("#d4d4d4"), Italic: true},
			TokenMarkupCode:         {Foreground: mustHex("#ce9178")},
			TokenMarkupLink:         {Foreground: mustHex("#3794ff"), Underline: true},
			TokenMarkupQuote:        {Foreground: mustHex("#6a9955"), Italic: true},
			TokenMarkupList:         {Foreground: mustHex("#6796e6")},
			TokenMeta:               {Foreground: mustHex("#9cdcfe")},
		},
		ScopeStyles: make(map[string]Style),
	}
}

// MonokaiTheme returns a Monokai-inspired theme.
func MonokaiTheme() *Theme {
	return &Theme{
		Name:       "Monokai",
		Foreground: mustHex("#f8f8f2"),
		Background: mustHex("#272822"),
		TokenStyles: map[TokenType]Style{
			TokenComment:            {Foreground: mustHex("#75715e"), Italic: true},
			TokenCommentLine:        {Foreground: mustHex("#75715e"), Italic: true},
			TokenCommentBlock:       {Foreground: mustHex("#75715e"), Italic: true},
			TokenString:             {Foreground: mustHex("#e6db74")},
			TokenStringInterpolated: {Foreground: mustHex("#e6db74")},
			TokenStringRegexp:       {Foreground: mustHex("#e6db74")},
			TokenNumber:             {Foreground: mustHex("#ae81ff")},
			TokenNumberHex:          {Foreground: mustHex("#ae81ff")},
			TokenNumberOctal:        {Foreground: mustHex("#ae81ff")},
			TokenNumberBinary:       {Foreground: mustHex("#ae81ff")},
			TokenKeyword:            {Foreground: mustHex("#f92672")},
			TokenKeywordControl:     {Foreground: mustHex("#f92672")},
			TokenKeywordDeclaration: {Foreground: mustHex("#66d9ef"), Italic: true},
			TokenKeywordOther:       {Foreground: mustHex("#f92672")},
			TokenConstantLanguage:   {Foreground: mustHex("#ae81ff")},
			TokenFunctionBuiltin:    {Foreground: mustHex("#66d9ef")},
			TokenTypeBuiltin:        {Foreground: mustHex("#66d9ef"), Italic: true},
			TokenStorageModifier:    {Foreground: mustHex("#f92672")},
			TokenMarkupHeading:      {Foreground: mustHex("#a6e22e"), Bold: true},
			TokenMarkupBold:         {Foreground: mustHex("#f8f8f2"), Bold: true},
			TokenMarkupItalic:       {Foreground: mustHex("#f8f8f2"), Italic: true},
			TokenMarkupCode:         {Foreground: mustHex("#e6db74")},
			TokenMarkupLink:         {Foreground: mustHex("#66d9ef"), Underline: true},
			TokenMeta:               {Foreground: mustHex("#a6e22e")},
		},
		ScopeStyles: make(map[string]Style),
	}
}
