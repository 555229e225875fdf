// Package highlight provides grammar-driven syntax tokenization and the
// span/style model consumed by the line cache.
package highlight

// TokenType represents the semantic type of a token.
type TokenType uint16

// Token types follow TextMate/VS Code scope naming at a high level.
const (
	TokenNone TokenType = iota

	// Comments
	TokenComment
	TokenCommentLine
	TokenCommentBlock

	// Strings
	TokenString
	TokenStringInterpolated
	TokenStringRegexp
	TokenStringEscape

	// Numbers
	TokenNumber
	TokenNumberHex
	TokenNumberOctal
	TokenNumberBinary

	// Keywords
	TokenKeyword
	TokenKeywordControl
	TokenKeywordDeclaration
	TokenKeywordOther

	// Identifiers
	TokenIdentifier
	TokenConstantLanguage

	// Functions and types
	TokenFunctionBuiltin
	TokenTypeBuiltin

	// Storage
	TokenStorageModifier

	// Markup (markdown)
	TokenMarkupHeading
	TokenMarkupBold
	TokenMarkupItalic
	TokenMarkupStrike
	TokenMarkupQuote
	TokenMarkupList
	TokenMarkupLink
	TokenMarkupCode

	// Special
	TokenMeta

	tokenTypeCount
)

// tokenTypeScopes maps token types to TextMate-style scope names.
var tokenTypeScopes = []string{
	TokenNone: "",

	TokenComment:      "comment",
	TokenCommentLine:  "comment.line",
	TokenCommentBlock: "comment.block",

	TokenString:             "string",
	TokenStringInterpolated: "string.interpolated",
	TokenStringRegexp:       "string.regexp",
	TokenStringEscape:       "string.escape",

	TokenNumber:       "number",
	TokenNumberHex:    "number.hex",
	TokenNumberOctal:  "number.octal",
	TokenNumberBinary: "number.binary",

	TokenKeyword:            "keyword",
	TokenKeywordControl:     "keyword.control",
	TokenKeywordDeclaration: "keyword.declaration",
	TokenKeywordOther:       "keyword.other",

	TokenIdentifier:       "identifier",
	TokenConstantLanguage: "constant.language",

	TokenFunctionBuiltin: "function.builtin",
	TokenTypeBuiltin:     "type.builtin",

	TokenStorageModifier: "storage.modifier",

	TokenMarkupHeading: "markup.heading",
	TokenMarkupBold:    "markup.bold",
	TokenMarkupItalic:  "markup.italic",
	TokenMarkupStrike:  "markup.strike",
	TokenMarkupQuote:   "markup.quote",
	TokenMarkupList:    "markup.list",
	TokenMarkupLink:    "markup.link",
	TokenMarkupCode:    "markup.code",

	TokenMeta: "meta",
}

// Scope returns the TextMate-style scope name for this token type.
func (t TokenType) Scope() string {
	if int(t) < len(tokenTypeScopes) {
		return tokenTypeScopes[t]
	}
	return ""
}

// String returns the scope name, or "unknown" for out-of-range values.
func (t TokenType) String() string {
	if t == TokenNone {
		return "none"
	}
	if s := t.Scope(); s != "" {
		return s
	}
	return "unknown"
}

// Token represents a single tokenized run on a line.
type Token struct {
	// Type is the semantic type of the token.
	Type TokenType

	// StartCol is the starting byte column (0-indexed).
	StartCol uint32

	// EndCol is the ending byte column (exclusive).
	EndCol uint32
}

// Len returns the length of the token in bytes.
func (t Token) Len() uint32 {
	return t.EndCol - t.StartCol
}

// LexerState represents the lexer's state for continuation across lines.
type LexerState uint32

// Lexer states for multi-line constructs.
const (
	LexerStateNormal LexerState = iota
	LexerStateBlockComment
	LexerStateStringDouble
	LexerStateStringSingle
	LexerStateStringBacktick
)

// Span is a styled text run. Spans form a tree: a span fully contained in
// another becomes one of its children (nested scopes).
type Span struct {
	Start    uint32 `json:"start"`
	End      uint32 `json:"end"`
	Scope    string `json:"scope,omitempty"`
	Style    Style  `json:"style"`
	Children []Span `json:"children,omitempty"`
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End &&
		!(other.Start == s.Start && other.End == s.End)
}

// PlainSpan returns a single unstyled span covering text, or nil for an
// empty line. Used when tokenization fails or no grammar is registered.
func PlainSpan(text string) []Span {
	if text == "" {
		return nil
	}
	return []Span{{Start: 0, End: uint32(len(text))}}
}

// NestSpans folds spans contained within another span into that span's
// children. Input must be sorted by Start; siblings must not partially
// overlap. The common flat case returns the input unchanged.
func NestSpans(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}

	nested := false
	for i := 1; i < len(spans); i++ {
		if spans[i-1].Contains(spans[i]) {
			nested = true
			break
		}
	}
	if !nested {
		return spans
	}

	var out []Span
	i := 0
	for i < len(spans) {
		cur := spans[i]
		j := i + 1
		for j < len(spans) && cur.Contains(spans[j]) {
			j++
		}
		if j > i+1 {
			children := make([]Span, j-i-1)
			copy(children, spans[i+1:j])
			cur.Children = NestSpans(children)
		} else {
			cur.Children = nil
		}
		out = append(out, cur)
		i = j
	}
	return out
}
