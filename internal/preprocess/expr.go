package preprocess

import (
	stderrors "errors"
	"strconv"
	"strings"
	"unicode"
)

// errUnknown marks an #if expression that cannot be evaluated from the macro
// table alone. The caller treats such a branch as active.
var errUnknown = stderrors.New("expression not evaluable")

type tokenKind int

const (
	tokInt tokenKind = iota
	tokIdent
	tokOp
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	val  int64
}

var operators = []string{"&&", "||", "==", "!=", "<=", ">=", "<", ">", "!", "(", ")", "-"}

func tokenize(expr string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(expr) {
		c := rune(expr[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(expr) && isIdentChar(rune(expr[j])) {
				j++
			}
			lit := strings.TrimRight(expr[i:j], "uUlL")
			v, err := strconv.ParseInt(lit, 0, 64)
			if err != nil {
				return nil, errUnknown
			}
			toks = append(toks, token{kind: tokInt, text: expr[i:j], val: v})
			i = j
		case c == '_' || unicode.IsLetter(c):
			j := i
			for j < len(expr) && isIdentChar(rune(expr[j])) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: expr[i:j]})
			i = j
		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(expr[i:], op) {
					toks = append(toks, token{kind: tokOp, text: op})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, errUnknown
			}
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

func isIdentChar(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

const maxExpansionDepth = 16

type evaluator struct {
	toks   []token
	pos    int
	macros map[string]string
	depth  int
}

// evaluate computes an #if/#elif expression against macros. Undefined
// identifiers evaluate to 0. Identifiers whose value is not an integer, and
// operators outside the supported set, yield errUnknown.
func evaluate(expr string, macros map[string]string) (bool, error) {
	v, err := evalExpr(expr, macros, 0)
	return v != 0, err
}

func evalExpr(expr string, macros map[string]string, depth int) (int64, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	e := &evaluator{toks: toks, macros: macros, depth: depth}
	v, err := e.or()
	if err != nil {
		return 0, err
	}
	if e.peek().kind != tokEOF {
		return 0, errUnknown
	}
	return v, nil
}

func (e *evaluator) peek() token { return e.toks[e.pos] }

func (e *evaluator) next() token {
	t := e.toks[e.pos]
	if t.kind != tokEOF {
		e.pos++
	}
	return t
}

func (e *evaluator) accept(op string) bool {
	if t := e.peek(); t.kind == tokOp && t.text == op {
		e.pos++
		return true
	}
	return false
}

func (e *evaluator) or() (int64, error) {
	l, err := e.and()
	if err != nil {
		return 0, err
	}
	for e.accept("||") {
		r, err := e.and()
		if err != nil {
			return 0, err
		}
		l = boolInt(l != 0 || r != 0)
	}
	return l, nil
}

func (e *evaluator) and() (int64, error) {
	l, err := e.equality()
	if err != nil {
		return 0, err
	}
	for e.accept("&&") {
		r, err := e.equality()
		if err != nil {
			return 0, err
		}
		l = boolInt(l != 0 && r != 0)
	}
	return l, nil
}

func (e *evaluator) equality() (int64, error) {
	l, err := e.relational()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case e.accept("=="):
			r, err := e.relational()
			if err != nil {
				return 0, err
			}
			l = boolInt(l == r)
		case e.accept("!="):
			r, err := e.relational()
			if err != nil {
				return 0, err
			}
			l = boolInt(l != r)
		default:
			return l, nil
		}
	}
}

func (e *evaluator) relational() (int64, error) {
	l, err := e.unary()
	if err != nil {
		return 0, err
	}
	for {
		var cmp func(a, b int64) bool
		switch {
		case e.accept("<="):
			cmp = func(a, b int64) bool { return a <= b }
		case e.accept(">="):
			cmp = func(a, b int64) bool { return a >= b }
		case e.accept("<"):
			cmp = func(a, b int64) bool { return a < b }
		case e.accept(">"):
			cmp = func(a, b int64) bool { return a > b }
		default:
			return l, nil
		}
		r, err := e.unary()
		if err != nil {
			return 0, err
		}
		l = boolInt(cmp(l, r))
	}
}

func (e *evaluator) unary() (int64, error) {
	switch {
	case e.accept("!"):
		v, err := e.unary()
		return boolInt(v == 0), err
	case e.accept("-"):
		v, err := e.unary()
		return -v, err
	}
	return e.primary()
}

func (e *evaluator) primary() (int64, error) {
	t := e.next()
	switch t.kind {
	case tokInt:
		return t.val, nil
	case tokOp:
		if t.text != "(" {
			return 0, errUnknown
		}
		v, err := e.or()
		if err != nil {
			return 0, err
		}
		if !e.accept(")") {
			return 0, errUnknown
		}
		return v, nil
	case tokIdent:
		if t.text == "defined" {
			return e.defined()
		}
		return e.macroValue(t.text)
	}
	return 0, errUnknown
}

func (e *evaluator) defined() (int64, error) {
	paren := e.accept("(")
	name := e.next()
	if name.kind != tokIdent {
		return 0, errUnknown
	}
	if paren && !e.accept(")") {
		return 0, errUnknown
	}
	_, ok := e.macros[name.text]
	return boolInt(ok), nil
}

// macroValue expands an object-like macro to an integer, following chains of
// macros defined as other macro names.
func (e *evaluator) macroValue(name string) (int64, error) {
	value, ok := e.macros[name]
	if !ok {
		return 0, nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errUnknown
	}
	if v, err := strconv.ParseInt(strings.TrimRight(value, "uUlL"), 0, 64); err == nil {
		return v, nil
	}
	if e.depth >= maxExpansionDepth {
		return 0, errUnknown
	}
	return evalExpr(value, e.macros, e.depth+1)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
