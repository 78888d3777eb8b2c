package frontend

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/ppbridge/internal/tokens"
)

var errDivideByZero = errors.New("division by zero in #if")

var binaryPrec = map[string]int{
	"*": 10, "/": 10, "%": 10,
	"+": 9, "-": 9,
	"<<": 8, ">>": 8,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"==": 6, "!=": 6,
	"&": 5, "^": 4, "|": 3,
	"&&": 2, "||": 1,
}

// evaluator computes the value of a fully macro-expanded #if expression.
// Remaining identifiers evaluate to 0, except true.
type evaluator struct {
	toks []lexToken
	pos  int
}

func evaluate(toks []lexToken) (int64, error) {
	e := &evaluator{toks: toks}
	if len(toks) == 0 {
		return 0, fmt.Errorf("empty #if expression")
	}
	v, err := e.ternary()
	if err != nil {
		return 0, err
	}
	if e.pos < len(e.toks) {
		return v, fmt.Errorf("unexpected %q in #if expression", e.toks[e.pos].text)
	}
	return v, nil
}

func (e *evaluator) peek() string {
	if e.pos < len(e.toks) {
		return e.toks[e.pos].text
	}
	return ""
}

func (e *evaluator) ternary() (int64, error) {
	cond, err := e.binary(1)
	if err != nil || e.peek() != "?" {
		return cond, err
	}
	e.pos++
	a, err := e.ternary()
	if err != nil {
		return 0, err
	}
	if e.peek() != ":" {
		return 0, fmt.Errorf("missing ':' in #if expression")
	}
	e.pos++
	b, err := e.ternary()
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return a, nil
	}
	return b, nil
}

func (e *evaluator) binary(minPrec int) (int64, error) {
	lhs, err := e.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := e.peek()
		prec, ok := binaryPrec[op]
		if !ok || prec < minPrec || e.toks[e.pos].kind != tokens.KindPunctuator {
			return lhs, nil
		}
		e.pos++
		rhs, err := e.binary(prec + 1)
		if err != nil {
			return 0, err
		}
		if lhs, err = apply(op, lhs, rhs); err != nil {
			return 0, err
		}
	}
}

func apply(op string, a, b int64) (int64, error) {
	switch op {
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, errDivideByZero
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return 0, errDivideByZero
		}
		return a % b, nil
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "<<":
		return a << uint64(b&63), nil
	case ">>":
		return a >> uint64(b&63), nil
	case "<":
		return boolInt(a < b), nil
	case "<=":
		return boolInt(a <= b), nil
	case ">":
		return boolInt(a > b), nil
	case ">=":
		return boolInt(a >= b), nil
	case "==":
		return boolInt(a == b), nil
	case "!=":
		return boolInt(a != b), nil
	case "&":
		return a & b, nil
	case "^":
		return a ^ b, nil
	case "|":
		return a | b, nil
	case "&&":
		return boolInt(a != 0 && b != 0), nil
	case "||":
		return boolInt(a != 0 || b != 0), nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

func (e *evaluator) unary() (int64, error) {
	switch e.peek() {
	case "!":
		e.pos++
		v, err := e.unary()
		return boolInt(v == 0), err
	case "~":
		e.pos++
		v, err := e.unary()
		return ^v, err
	case "-":
		e.pos++
		v, err := e.unary()
		return -v, err
	case "+":
		e.pos++
		return e.unary()
	}
	return e.primary()
}

func (e *evaluator) primary() (int64, error) {
	if e.pos >= len(e.toks) {
		return 0, fmt.Errorf("unexpected end of #if expression")
	}
	t := e.toks[e.pos]
	e.pos++
	switch t.kind {
	case tokens.KindIntLiteral:
		return parseInt(t.text)
	case tokens.KindCharLiteral:
		return parseChar(t.text), nil
	case tokens.KindIdent, tokens.KindKeyword:
		if t.text == "true" {
			return 1, nil
		}
		return 0, nil
	}
	if t.text == "(" {
		v, err := e.ternary()
		if err != nil {
			return 0, err
		}
		if e.peek() != ")" {
			return 0, fmt.Errorf("missing ')' in #if expression")
		}
		e.pos++
		return v, nil
	}
	return 0, fmt.Errorf("unexpected %q in #if expression", t.text)
}

func parseInt(text string) (int64, error) {
	s := strings.ReplaceAll(text, "'", "")
	s = strings.TrimRight(s, "uUlLzZ")
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		base, s = 2, s[2:]
	case len(s) > 1 && s[0] == '0':
		base, s = 8, s[1:]
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("bad integer %q in #if expression", text)
	}
	return int64(v), nil
}

func parseChar(text string) int64 {
	if i := strings.IndexByte(text, '\''); i > 0 {
		text = text[i:]
	}
	r, _, _, err := strconv.UnquoteChar(strings.Trim(text, "'"), '\'')
	if err != nil {
		return 0
	}
	return int64(r)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
