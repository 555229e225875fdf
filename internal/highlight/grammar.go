package highlight

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Rule matches a single-line token pattern.
type Rule struct {
	// Pattern is the regex pattern to match.
	Pattern *regexp.Regexp

	// TokenType is the type to assign to matches.
	TokenType TokenType
}

// multiLineRule describes a construct that may continue across lines.
type multiLineRule struct {
	start     string
	end       string
	tokenType TokenType
	state     LexerState
}

// Grammar is a regex-based tokenizer for one language. Grammars are
// immutable after construction and safe for concurrent use.
type Grammar struct {
	language  string
	rules     []Rule
	keywords  map[string]TokenType
	multiLine []multiLineRule
}

// NewGrammar creates an empty grammar for the given LSP language id.
func NewGrammar(language string) *Grammar {
	return &Grammar{
		language: language,
		keywords: make(map[string]TokenType),
	}
}

// Rule adds a single-line regex rule. Panics on an invalid pattern, so
// grammar construction fails loudly at startup.
func (g *Grammar) Rule(pattern string, tokenType TokenType) *Grammar {
	g.rules = append(g.rules, Rule{
		Pattern:   regexp.MustCompile(pattern),
		TokenType: tokenType,
	})
	return g
}

// Keywords registers reserved words with a token type.
func (g *Grammar) Keywords(tokenType TokenType, words ...string) *Grammar {
	for _, w := range words {
		g.keywords[w] = tokenType
	}
	return g
}

// MultiLine registers a construct delimited by start/end markers that may
// span lines, carrying the given lexer state across line boundaries.
func (g *Grammar) MultiLine(start, end string, tokenType TokenType, state LexerState) *Grammar {
	g.multiLine = append(g.multiLine, multiLineRule{
		start:     start,
		end:       end,
		tokenType: tokenType,
		state:     state,
	})
	return g
}

// Language returns the LSP language id this grammar tokenizes.
func (g *Grammar) Language() string {
	return g.language
}

// TokenizeLine tokenizes a single line. prevState carries multi-line
// constructs (block comments, raw strings) across line boundaries; the
// returned state reflects the lexer state at end of line.
func (g *Grammar) TokenizeLine(line string, prevState LexerState) ([]Token, LexerState) {
	if prevState != LexerStateNormal {
		endIdx, found := g.findMultiLineEnd(line, prevState)
		if !found {
			// Entire line continues the construct.
			if line == "" {
				return nil, prevState
			}
			return []Token{{
				Type:     g.tokenTypeForState(prevState),
				StartCol: 0,
				EndCol:   uint32(len(line)),
			}}, prevState
		}

		tokens := []Token{{
			Type:     g.tokenTypeForState(prevState),
			StartCol: 0,
			EndCol:   uint32(endIdx),
		}}
		rest, state := g.tokenizeNormal(line[endIdx:])
		for i := range rest {
			rest[i].StartCol += uint32(endIdx)
			rest[i].EndCol += uint32(endIdx)
		}
		return append(tokens, rest...), state
	}

	return g.tokenizeNormal(line)
}

// tokenizeNormal tokenizes a line starting in the normal state.
func (g *Grammar) tokenizeNormal(line string) ([]Token, LexerState) {
	var tokens []Token
	covered := make([]bool, len(line))
	state := LexerStateNormal

	// Multi-line construct starts take precedence over single-line rules.
	for _, rule := range g.multiLine {
		idx := strings.Index(line, rule.start)
		if idx < 0 || g.isCovered(covered, idx, idx+len(rule.start)) {
			continue
		}
		endIdx := strings.Index(line[idx+len(rule.start):], rule.end)
		if endIdx >= 0 {
			endPos := idx + len(rule.start) + endIdx + len(rule.end)
			tokens = append(tokens, Token{
				Type:     rule.tokenType,
				StartCol: uint32(idx),
				EndCol:   uint32(endPos),
			})
			g.markCovered(covered, idx, endPos)
		} else {
			tokens = append(tokens, Token{
				Type:     rule.tokenType,
				StartCol: uint32(idx),
				EndCol:   uint32(len(line)),
			})
			g.markCovered(covered, idx, len(line))
			state = rule.state
		}
	}

	for _, rule := range g.rules {
		for _, match := range rule.Pattern.FindAllStringIndex(line, -1) {
			start, end := match[0], match[1]
			if end > start && !g.isCovered(covered, start, end) {
				tokens = append(tokens, Token{
					Type:     rule.TokenType,
					StartCol: uint32(start),
					EndCol:   uint32(end),
				})
				g.markCovered(covered, start, end)
			}
		}
	}

	tokens = append(tokens, g.findIdentifiers(line, covered)...)

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].StartCol < tokens[j].StartCol
	})

	return tokens, state
}

// findMultiLineEnd locates the terminator for the active multi-line state.
// Returns the byte offset just past the terminator.
func (g *Grammar) findMultiLineEnd(line string, state LexerState) (int, bool) {
	for _, rule := range g.multiLine {
		if rule.state != state {
			continue
		}
		idx := strings.Index(line, rule.end)
		if idx >= 0 {
			return idx + len(rule.end), true
		}
		return 0, false
	}
	return 0, false
}

// tokenTypeForState returns the token type for an active multi-line state.
func (g *Grammar) tokenTypeForState(state LexerState) TokenType {
	for _, rule := range g.multiLine {
		if rule.state == state {
			return rule.tokenType
		}
	}
	return TokenNone
}

// findIdentifiers scans uncovered regions for identifiers and keywords.
func (g *Grammar) findIdentifiers(line string, covered []bool) []Token {
	var tokens []Token

	i := 0
	for i < len(line) {
		if covered[i] {
			i++
			continue
		}

		r := rune(line[i])
		if !unicode.IsLetter(r) && r != '_' {
			i++
			continue
		}

		start := i
		for i < len(line) {
			r = rune(line[i])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
				break
			}
			i++
		}
		end := i

		if g.isCovered(covered, start, end) {
			continue
		}

		word := line[start:end]
		tokenType := TokenIdentifier
		if kw, ok := g.keywords[word]; ok {
			tokenType = kw
		}
		tokens = append(tokens, Token{
			Type:     tokenType,
			StartCol: uint32(start),
			EndCol:   uint32(end),
		})
		g.markCovered(covered, start, end)
	}

	return tokens
}

func (g *Grammar) isCovered(covered []bool, start, end int) bool {
	if start < 0 || start >= len(covered) {
		return false
	}
	for i := start; i < end && i < len(covered); i++ {
		if covered[i] {
			return true
		}
	}
	return false
}

func (g *Grammar) markCovered(covered []bool, start, end int) {
	if start < 0 {
		start = 0
	}
	for i := start; i < end && i < len(covered); i++ {
		covered[i] = true
	}
}

// Registry maps language ids to grammars.
type Registry struct {
	mu         sync.RWMutex
	byLanguage map[string]*Grammar
}

// NewRegistry creates an empty grammar registry.
func NewRegistry() *Registry {
	return &Registry{byLanguage: make(map[string]*Grammar)}
}

// Register adds a grammar to the registry.
func (r *Registry) Register(g *Grammar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLanguage[g.Language()] = g
}

// Lookup returns the grammar for a language id.
func (r *Registry) Lookup(language string) (*Grammar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byLanguage[language]
	return g, ok
}

// Languages returns all registered language ids.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// DefaultRegistry returns a registry with the built-in grammars.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(GoGrammar())
	r.Register(PythonGrammar())
	r.Register(JavaScriptGrammar())
	r.Register(MarkdownGrammar())
	return r
}
