package rubyformula

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokSymbol
	tokOp
)

type token struct {
	kind  tokenKind
	value string
}

// line is a logical statement: the tokens between two newlines.
type line struct {
	number int
	tokens []token
}

func (l line) first() string {
	if len(l.tokens) == 0 {
		return ""
	}

	return l.tokens[0].value
}

func (l line) last() string {
	if len(l.tokens) == 0 {
		return ""
	}

	return l.tokens[len(l.tokens)-1].value
}

var errUnterminatedString = errors.New("unterminated string")

type lexer struct {
	src    []rune
	pos    int
	lineNo int

	lines   []line
	current line

	// heredocs waiting for the end of the current line: terminator -> token index.
	pendingHeredocs []heredoc
}

type heredoc struct {
	terminator string
	tokenIndex int
	squiggly   bool
	// indented allows the terminator to be indented (<<- and <<~).
	indented bool
}

func lex(src string) ([]line, error) {
	l := &lexer{
		src:    []rune(src),
		lineNo: 1,
	}
	l.current.number = 1

	if err := l.run(); err != nil {
		return nil, err
	}

	l.flush()

	return l.lines, nil
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		r := l.src[l.pos]

		switch {
		case r == '\n':
			l.pos++
			l.newline()
		case r == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case unicode.IsSpace(r):
			l.pos++
		case r == '"' || r == '\'':
			s, err := l.readString(r)
			if err != nil {
				return err
			}

			l.emit(tokString, s)
		case r == ':' && l.peek(1) != ':' && isIdentStart(l.peek(1)):
			l.pos++
			l.emit(tokSymbol, l.readIdent())
		case r == '<' && l.peek(1) == '<' && l.atHeredoc():
			l.readHeredocStart()
		case isIdentStart(r):
			l.emit(tokIdent, l.readIdent())
		default:
			l.emit(tokOp, l.readOp())
		}
	}

	return nil
}

func (l *lexer) peek(offset int) rune {
	if l.pos+offset >= len(l.src) {
		return 0
	}

	return l.src[l.pos+offset]
}

func (l *lexer) emit(kind tokenKind, value string) {
	l.current.tokens = append(l.current.tokens, token{kind: kind, value: value})
}

func (l *lexer) flush() {
	if len(l.current.tokens) > 0 {
		l.lines = append(l.lines, l.current)
	}

	l.current = line{number: l.lineNo}
}

func (l *lexer) newline() {
	l.lineNo++

	if len(l.pendingHeredocs) > 0 {
		l.readHeredocBodies()
	}

	l.flush()
}

func (l *lexer) readIdent() string {
	start := l.pos

	for l.pos < len(l.src) {
		r := l.src[l.pos]
		if !isIdentStart(r) && !unicode.IsDigit(r) && r != ':' && r != '.' && r != '?' {
			break
		}

		l.pos++
	}

	return string(l.src[start:l.pos])
}

func (l *lexer) readOp() string {
	two := string(l.src[l.pos:min(l.pos+2, len(l.src))])
	switch two {
	case "&&", "||", "=>", "==", "!=":
		l.pos += 2
		return two
	}

	r := l.src[l.pos]
	l.pos++

	return string(r)
}

func (l *lexer) readString(quote rune) (string, error) {
	var (
		b         strings.Builder
		startLine = l.lineNo
	)

	l.pos++

	for l.pos < len(l.src) {
		r := l.src[l.pos]
		l.pos++

		switch {
		case r == quote:
			return b.String(), nil
		case r == '\n':
			l.lineNo++
			b.WriteRune(r)
		case r == '\\' && l.pos < len(l.src):
			next := l.src[l.pos]
			l.pos++

			b.WriteString(unescape(quote, next))
		default:
			b.WriteRune(r)
		}
	}

	return "", fmt.Errorf("line %d: %w", startLine, errUnterminatedString)
}

func unescape(quote, r rune) string {
	if quote == '\'' {
		if r == '\'' || r == '\\' {
			return string(r)
		}

		return "\\" + string(r)
	}

	switch r {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	default:
		return string(r)
	}
}

// atHeredoc reports whether the << at pos opens a heredoc: <<~ID, <<-ID,
// <<ID or a quoted terminator. A bare terminator must start upper case.
func (l *lexer) atHeredoc() bool {
	next := l.peek(2)
	if next == '~' || next == '-' {
		next = l.peek(3)
	}

	if next == '\'' || next == '"' {
		return true
	}

	return next == '_' || unicode.IsUpper(next)
}

func (l *lexer) readHeredocStart() {
	squiggly := l.peek(2) == '~'
	indented := squiggly || l.peek(2) == '-'

	l.pos += 2
	if indented {
		l.pos++
	}

	// Quoted terminators (<<~'EOS') behave the same for our purposes.
	if l.pos < len(l.src) && (l.src[l.pos] == '\'' || l.src[l.pos] == '"') {
		l.pos++
	}

	terminator := l.readIdent()

	if l.pos < len(l.src) && (l.src[l.pos] == '\'' || l.src[l.pos] == '"') {
		l.pos++
	}

	l.pendingHeredocs = append(l.pendingHeredocs, heredoc{
		terminator: terminator,
		tokenIndex: len(l.current.tokens),
		squiggly:   squiggly,
		indented:   indented,
	})
	l.emit(tokString, "")
}

func (l *lexer) readHeredocBodies() {
	for _, h := range l.pendingHeredocs {
		var body []string

		for l.pos < len(l.src) {
			end := l.pos
			for end < len(l.src) && l.src[end] != '\n' {
				end++
			}

			text := string(l.src[l.pos:end])
			l.pos = min(end+1, len(l.src))
			l.lineNo++

			if strings.TrimRight(text, "\r") == h.terminator || (h.indented && strings.TrimSpace(text) == h.terminator) {
				break
			}

			if h.squiggly {
				text = strings.TrimLeft(text, " \t")
			}

			body = append(body, text)
		}

		l.current.tokens[h.tokenIndex].value = strings.Join(body, "\n")
	}

	l.pendingHeredocs = nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}
