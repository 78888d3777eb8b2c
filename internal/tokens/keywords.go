package tokens

var cKeywords = []string{
	"auto", "break", "case", "char", "const", "continue", "default", "do",
	"double", "else", "enum", "extern", "float", "for", "goto", "if",
	"inline", "int", "long", "register", "restrict", "return", "short",
	"signed", "sizeof", "static", "struct", "switch", "typedef", "union",
	"unsigned", "void", "volatile", "while", "_Alignas", "_Alignof",
	"_Atomic", "_Bool", "_Complex", "_Generic", "_Imaginary", "_Noreturn",
	"_Static_assert", "_Thread_local",
}

var cppOnlyKeywords = []string{
	"alignas", "alignof", "and", "and_eq", "asm", "bitand", "bitor", "bool",
	"catch", "char16_t", "char32_t", "class", "compl", "constexpr",
	"const_cast", "decltype", "delete", "dynamic_cast", "explicit", "export",
	"false", "friend", "mutable", "namespace", "new", "noexcept", "not",
	"not_eq", "nullptr", "operator", "or", "or_eq", "private", "protected",
	"public", "reinterpret_cast", "static_assert", "static_cast", "template",
	"this", "thread_local", "throw", "true", "try", "typeid", "typename",
	"using", "virtual", "wchar_t", "xor", "xor_eq",
}

var (
	cKeywordSet   = keywordSet(cKeywords)
	cppKeywordSet = keywordSet(cKeywords, cppOnlyKeywords)
	// allKeywords interns keyword spellings for lite identifier tokens
	allKeywords = keywordSet(cKeywords, cppOnlyKeywords)
)

func keywordSet(lists ...[]string) map[string]string {
	m := make(map[string]string)
	for _, l := range lists {
		for _, k := range l {
			m[k] = k
		}
	}
	return m
}

// KeywordFilter re-classifies identifiers as keywords for one language.
// The converter keeps every keyword as KindIdent so that one lexer serves
// C and C++ alike.
type KeywordFilter struct {
	keywords map[string]string
}

// NewKeywordFilter returns the filter for C or C++
func NewKeywordFilter(cplusplus bool) *KeywordFilter {
	if cplusplus {
		return &KeywordFilter{keywords: cppKeywordSet}
	}
	return &KeywordFilter{keywords: cKeywordSet}
}

// IsKeyword reports whether s is a keyword of the filter's language
func (f *KeywordFilter) IsKeyword(s string) bool {
	_, ok := f.keywords[s]
	return ok
}

// Reclassify returns t, or a keyword copy of t when t is an identifier
// spelled as a keyword
func (f *KeywordFilter) Reclassify(t Token) Token {
	switch tt := t.(type) {
	case *MacroExpanded:
		inner := f.Reclassify(tt.inner)
		if inner == tt.inner {
			return t
		}
		return &MacroExpanded{inner: inner, end: tt.end, index: tt.index}
	case *liteToken:
		if tt.kind == KindIdent && f.IsKeyword(tt.text) {
			cp := *tt
			cp.kind = KindKeyword
			return &cp
		}
	case *textToken:
		if tt.kind == KindIdent && f.IsKeyword(tt.text) {
			return &liteToken{kind: KindKeyword, text: f.keywords[tt.text], span: tt.span}
		}
	}
	return t
}

// Filter re-classifies a whole stream
func (f *KeywordFilter) Filter(ts []Token) []Token {
	out := make([]Token, len(ts))
	for i, t := range ts {
		out[i] = f.Reclassify(t)
	}
	return out
}
