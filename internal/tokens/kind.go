package tokens

import "fmt"

// Kind classifies raw and converted tokens
type Kind int

const (
	KindEOF Kind = iota
	KindIdent
	KindKeyword
	KindIntLiteral
	KindOctalLiteral
	KindHexLiteral
	KindFloatLiteral
	KindCharLiteral
	KindStringLiteral
	KindPunctuator
	KindComment
	// KindExpansionEnd is the zero-width comment-like marker at the end of a
	// macro expansion
	KindExpansionEnd
	KindOther
)

var kindNames = [...]string{
	KindEOF:           "EOF",
	KindIdent:         "IDENT",
	KindKeyword:       "KEYWORD",
	KindIntLiteral:    "INT_LITERAL",
	KindOctalLiteral:  "OCTAL_LITERAL",
	KindHexLiteral:    "HEX_LITERAL",
	KindFloatLiteral:  "FLOAT_LITERAL",
	KindCharLiteral:   "CHAR_LITERAL",
	KindStringLiteral: "STRING_LITERAL",
	KindPunctuator:    "PUNCTUATOR",
	KindComment:       "COMMENT",
	KindExpansionEnd:  "EXPANSION_END",
	KindOther:         "OTHER",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsLiteral reports whether k is a numeric, character or string literal
func (k Kind) IsLiteral() bool {
	return k >= KindIntLiteral && k <= KindStringLiteral
}

// punctuators maps every spelling, digraphs included, to its canonical text
var punctuators = map[string]string{
	"[": "[", "]": "]", "(": "(", ")": ")", "{": "{", "}": "}",
	".": ".", "->": "->", "++": "++", "--": "--", "&": "&", "*": "*",
	"+": "+", "-": "-", "~": "~", "!": "!", "/": "/", "%": "%",
	"<<": "<<", ">>": ">>", "<": "<", ">": ">", "<=": "<=", ">=": ">=",
	"==": "==", "!=": "!=", "^": "^", "|": "|", "&&": "&&", "||": "||",
	"?": "?", ":": ":", ";": ";", "...": "...", "=": "=", "*=": "*=",
	"/=": "/=", "%=": "%=", "+=": "+=", "-=": "-=", "<<=": "<<=",
	">>=": ">>=", "&=": "&=", "^=": "^=", "|=": "|=", ",": ",",
	"#": "#", "##": "##", "::": "::", ".*": ".*", "->*": "->*",
	"<:": "[", ":>": "]", "<%": "{", "%>": "}", "%:": "#", "%:%:": "##",
}

// canonicalPunctuator returns the canonical spelling of a punctuator
func canonicalPunctuator(s string) (string, bool) {
	c, ok := punctuators[s]
	return c, ok
}
