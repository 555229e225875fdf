package highlight

// GoGrammar returns the built-in grammar for Go.
func GoGrammar() *Grammar {
	g := NewGrammar("go")

	g.MultiLine("/*", "*/", TokenCommentBlock, LexerStateBlockComment)
	g.MultiLine("`", "`", TokenString, LexerStateStringBacktick)

	g.Rule(`//.*$`, TokenCommentLine)
	g.Rule(`"(?:[^"\\]|\\.)*"`, TokenString)
	g.Rule(`'(?:[^'\\]|\\.)'`, TokenString)
	g.Rule(`\b0[xX][0-9a-fA-F_]+\b`, TokenNumberHex)
	g.Rule(`\b0[oO][0-7_]+\b`, TokenNumberOctal)
	g.Rule(`\b0[bB][01_]+\b`, TokenNumberBinary)
	g.Rule(`\b\d+\.?\d*(?:[eE][+-]?\d+)?i?\b`, TokenNumber)

	g.Keywords(TokenKeywordControl,
		"if", "else", "for", "range", "switch", "case", "default",
		"break", "continue", "return", "goto", "fallthrough", "select")
	g.Keywords(TokenKeywordDeclaration,
		"func", "var", "const", "type", "struct", "interface", "map", "chan")
	g.Keywords(TokenKeywordOther,
		"package", "import", "defer", "go")
	g.Keywords(TokenConstantLanguage,
		"true", "false", "nil", "iota")
	g.Keywords(TokenTypeBuiltin,
		"int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"float32", "float64", "complex64", "complex128",
		"bool", "byte", "rune", "string", "error", "any")
	g.Keywords(TokenFunctionBuiltin,
		"make", "new", "len", "cap", "append", "copy", "delete",
		"close", "panic", "recover", "print", "println",
		"real", "imag", "complex", "min", "max", "clear")

	return g
}

// PythonGrammar returns the built-in grammar for Python.
func PythonGrammar() *Grammar {
	g := NewGrammar("python")

	g.MultiLine(`"""`, `"""`, TokenString, LexerStateStringDouble)
	g.MultiLine(`'''`, `'''`, TokenString, LexerStateStringSingle)

	g.Rule(`#.*$`, TokenCommentLine)
	g.Rule(`"(?:[^"\\]|\\.)*"`, TokenString)
	g.Rule(`'(?:[^'\\]|\\.)*'`, TokenString)
	g.Rule(`\b0[xX][0-9a-fA-F]+\b`, TokenNumberHex)
	g.Rule(`\b0[oO][0-7]+\b`, TokenNumberOctal)
	g.Rule(`\b0[bB][01]+\b`, TokenNumberBinary)
	g.Rule(`\b\d+\.?\d*(?:[eE][+-]?\d+)?j?\b`, TokenNumber)
	g.Rule(`@\w+`, TokenMeta)

	g.Keywords(TokenKeywordControl,
		"if", "elif", "else", "for", "while", "break", "continue",
		"return", "try", "except", "finally", "raise", "with", "as",
		"match", "case")
	g.Keywords(TokenKeywordDeclaration,
		"def", "class", "lambda", "async", "await")
	g.Keywords(TokenKeywordOther,
		"import", "from", "global", "nonlocal", "pass", "yield",
		"assert", "del", "in", "is", "not", "and", "or")
	g.Keywords(TokenConstantLanguage,
		"True", "False", "None")
	g.Keywords(TokenTypeBuiltin,
		"int", "float", "str", "bool", "list", "dict", "set", "tuple",
		"bytes", "bytearray", "complex", "frozenset", "type", "object")
	g.Keywords(TokenFunctionBuiltin,
		"print", "len", "range", "enumerate", "zip", "map", "filter",
		"open", "input", "isinstance", "sorted", "reversed",
		"sum", "min", "max", "abs", "round", "all", "any",
		"repr", "id", "hash", "super", "property", "staticmethod",
		"classmethod")

	return g
}

// JavaScriptGrammar returns the built-in grammar for JavaScript and
// TypeScript.
func JavaScriptGrammar() *Grammar {
	g := NewGrammar("javascript")

	g.MultiLine("/*", "*/", TokenCommentBlock, LexerStateBlockComment)
	g.MultiLine("`", "`", TokenStringInterpolated, LexerStateStringBacktick)

	g.Rule(`//.*$`, TokenCommentLine)
	g.Rule(`"(?:[^"\\]|\\.)*"`, TokenString)
	g.Rule(`'(?:[^'\\]|\\.)*'`, TokenString)
	g.Rule(`\b0[xX][0-9a-fA-F]+\b`, TokenNumberHex)
	g.Rule(`\b0[oO][0-7]+\b`, TokenNumberOctal)
	g.Rule(`\b0[bB][01]+\b`, TokenNumberBinary)
	g.Rule(`\b\d+\.?\d*(?:[eE][+-]?\d+)?\b`, TokenNumber)
	g.Rule(`@\w+`, TokenMeta)

	g.Keywords(TokenKeywordControl,
		"if", "else", "for", "while", "do", "switch", "case", "default",
		"break", "continue", "return", "throw", "try", "catch", "finally")
	g.Keywords(TokenKeywordDeclaration,
		"function", "var", "let", "const", "class", "extends", "async",
		"await", "type", "interface", "enum", "namespace", "declare")
	g.Keywords(TokenKeywordOther,
		"import", "export", "from", "as", "new", "delete",
		"typeof", "instanceof", "in", "of", "this", "super", "static",
		"get", "set", "yield")
	g.Keywords(TokenConstantLanguage,
		"true", "false", "null", "undefined", "NaN", "Infinity")
	g.Keywords(TokenStorageModifier,
		"public", "private", "protected", "readonly", "abstract", "override")

	return g
}

// MarkdownGrammar returns the built-in grammar for Markdown.
func MarkdownGrammar() *Grammar {
	g := NewGrammar("markdown")

	// Order matters, more specific patterns first.
	g.Rule("^#{1,6}\\s+.*$", TokenMarkupHeading)
	g.Rule("\\*\\*[^*]+\\*\\*", TokenMarkupBold)
	g.Rule("__[^_]+__", TokenMarkupBold)
	g.Rule("\\*[^*]+\\*", TokenMarkupItalic)
	g.Rule("_[^_]+_", TokenMarkupItalic)
	g.Rule("~~[^~]+~~", TokenMarkupStrike)
	g.Rule("`[^`]+`", TokenMarkupCode)
	g.Rule("^```.*$", TokenMarkupCode)
	g.Rule("^>\\s+.*$", TokenMarkupQuote)
	g.Rule("^\\s*[-*+]\\s+", TokenMarkupList)
	g.Rule("^\\s*\\d+\\.\\s+", TokenMarkupList)
	g.Rule("\\[([^\\]]+)\\]\\(([^)]+)\\)", TokenMarkupLink)

	return g
}
