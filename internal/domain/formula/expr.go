package formula

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Predicate terms understood in formula conditions.
const (
	TermLinux = "OS.linux?"
	TermMac   = "OS.mac?"
	TermIntel = "Hardware::CPU.intel?"
	TermARM   = "Hardware::CPU.arm?"
	Term64Bit = "Hardware::CPU.is_64_bit?"
	Term32Bit = "Hardware::CPU.is_32_bit?"
)

var (
	// ErrUnknownTerm is returned for predicate terms outside the supported set.
	ErrUnknownTerm = errors.New("unknown predicate term")
	// ErrInvalidExpr is returned for malformed predicate expressions.
	ErrInvalidExpr = errors.New("invalid predicate expression")
)

// Expr is a boolean condition over a Platform.
type Expr interface {
	// Eval reports whether the condition holds on p.
	Eval(p Platform) bool
	// String renders the condition in formula syntax.
	String() string
}

// Term is a single platform check such as Hardware::CPU.arm?.
type Term string

// Eval implements Expr.
func (t Term) Eval(p Platform) bool {
	switch string(t) {
	case TermLinux:
		return p.OS == OSLinux
	case TermMac:
		return p.OS == OSDarwin
	case TermIntel:
		return p.Arch == ArchIntel
	case TermARM:
		return p.Arch == ArchARM
	case Term64Bit:
		return p.Is64
	case Term32Bit:
		return !p.Is64
	default:
		return false
	}
}

func (t Term) String() string {
	return string(t)
}

// Not negates an expression.
type Not struct {
	X Expr
}

// Eval implements Expr.
func (n Not) Eval(p Platform) bool {
	return !n.X.Eval(p)
}

func (n Not) String() string {
	switch n.X.(type) {
	case Term, Not:
		return "!" + n.X.String()
	default:
		return "!(" + n.X.String() + ")"
	}
}

// And holds when both sides hold.
type And struct {
	L, R Expr
}

// Eval implements Expr.
func (a And) Eval(p Platform) bool {
	return a.L.Eval(p) && a.R.Eval(p)
}

func (a And) String() string {
	return wrapOr(a.L) + " && " + wrapOr(a.R)
}

// Or holds when either side holds.
type Or struct {
	L, R Expr
}

// Eval implements Expr.
func (o Or) Eval(p Platform) bool {
	return o.L.Eval(p) || o.R.Eval(p)
}

func (o Or) String() string {
	return o.L.String() + " || " + o.R.String()
}

func wrapOr(e Expr) string {
	if _, ok := e.(Or); ok {
		return "(" + e.String() + ")"
	}

	return e.String()
}

// AllOf joins expressions with &&, skipping nil ones. It returns nil for no input.
func AllOf(exprs ...Expr) Expr {
	var result Expr

	for _, e := range exprs {
		if e == nil {
			continue
		}

		if result == nil {
			result = e
			continue
		}

		result = And{L: result, R: e}
	}

	return result
}

// AnyOf joins expressions with ||, skipping nil ones. It returns nil for no input.
func AnyOf(exprs ...Expr) Expr {
	var result Expr

	for _, e := range exprs {
		if e == nil {
			continue
		}

		if result == nil {
			result = e
			continue
		}

		result = Or{L: result, R: e}
	}

	return result
}

// IsKnownTerm reports whether s is a supported predicate term.
func IsKnownTerm(s string) bool {
	switch s {
	case TermLinux, TermMac, TermIntel, TermARM, Term64Bit, Term32Bit:
		return true
	default:
		return false
	}
}

// ParseExpr parses a condition such as "Hardware::CPU.arm? && !Hardware::CPU.is_64_bit?".
// Precedence follows Ruby, from loosest to tightest: "and"/"or" (equal,
// left to right), "not", ||, && and !.
func ParseExpr(s string) (Expr, error) {
	p := &exprParser{tokens: tokenizeExpr(s)}

	e, err := p.parseWords()
	if err != nil {
		return nil, err
	}

	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidExpr, p.tokens[p.pos], s)
	}

	return e, nil
}

type exprParser struct {
	tokens []string
	pos    int
}

func (p *exprParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}

	return p.tokens[p.pos]
}

func (p *exprParser) next() string {
	tok := p.peek()
	p.pos++

	return tok
}

// parseWords handles the low-precedence keyword operators.
func (p *exprParser) parseWords() (Expr, error) {
	left, err := p.parseWordNot()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek()
		if op != "and" && op != "or" {
			return left, nil
		}

		p.next()

		right, err := p.parseWordNot()
		if err != nil {
			return nil, err
		}

		if op == "and" {
			left = And{L: left, R: right}
		} else {
			left = Or{L: left, R: right}
		}
	}
}

func (p *exprParser) parseWordNot() (Expr, error) {
	if p.peek() != "not" {
		return p.parseOr()
	}

	p.next()

	x, err := p.parseWordNot()
	if err != nil {
		return nil, err
	}

	return Not{X: x}, nil
}

func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.peek() == "||" {
		p.next()

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = Or{L: left, R: right}
	}

	return left, nil
}

func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.peek() == "&&" {
		p.next()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = And{L: left, R: right}
	}

	return left, nil
}

func (p *exprParser) parseUnary() (Expr, error) {
	switch tok := p.next(); tok {
	case "":
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrInvalidExpr)
	case "!":
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return Not{X: x}, nil
	case "(":
		x, err := p.parseWords()
		if err != nil {
			return nil, err
		}

		if p.next() != ")" {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidExpr)
		}

		return x, nil
	default:
		if !IsKnownTerm(tok) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTerm, tok)
		}

		return Term(tok), nil
	}
}

func tokenizeExpr(s string) []string {
	var (
		tokens []string
		runes  = []rune(s)
	)

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case r == '!' || r == '(' || r == ')':
			tokens = append(tokens, string(r))
			i++
		case strings.HasPrefix(string(runes[i:]), "&&"), strings.HasPrefix(string(runes[i:]), "||"):
			tokens = append(tokens, string(runes[i:i+2]))
			i += 2
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) && !strings.ContainsRune("!()&|", runes[i]) {
				i++
			}

			// A lone & or | is kept as its own token so the parser rejects it.
			if i == start {
				i++
			}

			tokens = append(tokens, string(runes[start:i]))
		}
	}

	return tokens
}
