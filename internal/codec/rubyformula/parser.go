package rubyformula

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/oshokin/formula-resolver/internal/domain/formula"
)

var (
	// ErrNotFormula is returned when the input declares no "class X < Formula".
	ErrNotFormula = errors.New("no formula class found")
	// ErrSyntax is returned for statements the parser cannot make sense of.
	ErrSyntax = errors.New("formula syntax error")
)

// blockOpeners start a construct closed by "end".
//
//nolint:gochecknoglobals // Static lookup table.
var blockOpeners = map[string]struct{}{
	"if": {}, "unless": {}, "def": {}, "class": {}, "module": {},
	"case": {}, "begin": {}, "while": {}, "until": {},
}

// osBlocks maps on_<os> helpers onto operating systems.
//
//nolint:gochecknoglobals // Static lookup table.
var osBlocks = map[string]string{
	"on_linux": formula.OSLinux,
	"on_macos": formula.OSDarwin,
}

// cpuBlocks maps on_<cpu> helpers onto predicate terms.
//
//nolint:gochecknoglobals // Static lookup table.
var cpuBlocks = map[string]formula.Term{
	"on_intel": formula.TermIntel,
	"on_arm":   formula.TermARM,
}

// frame is one level of platform gating: an on_* block or an if branch.
type frame struct {
	os   string
	when formula.Expr
}

// pending collects url/sha256/install statements seen inside one frame.
type pending struct {
	url     string
	sha256  string
	install []formula.BinaryInstall
}

type parser struct {
	lines []line
	pos   int

	frames  []frame
	result  *formula.Formula
	install []formula.BinaryInstall
	found   bool
}

// Parse reads one formula file.
func Parse(r io.Reader) (*formula.Formula, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read formula: %w", err)
	}

	lines, err := lex(string(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	p := &parser{
		lines:  lines,
		result: new(formula.Formula),
	}

	if err = p.parseTop(); err != nil {
		return nil, err
	}

	if !p.found {
		return nil, ErrNotFormula
	}

	// A class-level install applies to every artifact that lacks its own.
	for _, a := range p.result.Artifacts {
		if len(a.Install) == 0 {
			a.Install = append([]formula.BinaryInstall(nil), p.install...)
		}
	}

	return p.result, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*formula.Formula, error) {
	return Parse(strings.NewReader(s))
}

func (p *parser) errorf(l line, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, l.number, fmt.Sprintf(format, args...))
}

func (p *parser) next() (line, bool) {
	if p.pos >= len(p.lines) {
		return line{}, false
	}

	l := p.lines[p.pos]
	p.pos++

	return l, true
}

func (p *parser) parseTop() error {
	for {
		l, ok := p.next()
		if !ok {
			return nil
		}

		if l.first() != "class" {
			continue
		}

		if len(l.tokens) < 4 || l.tokens[2].value != "<" || l.tokens[3].value != "Formula" {
			if err := p.skipBlock(); err != nil {
				return err
			}

			continue
		}

		p.found = true
		p.result.Name = NameFromClass(l.tokens[1].value)

		current := new(pending)

		term, err := p.parseBody(current, "end")
		if err != nil {
			return err
		}

		if term != "end" {
			return p.errorf(l, "class %s is not closed", l.tokens[1].value)
		}

		// The class body can only carry a class-level install or a platform-less artifact.
		if current.url != "" {
			p.result.Artifacts = append(p.result.Artifacts, &formula.Artifact{
				URL:     current.url,
				SHA256:  current.sha256,
				Install: current.install,
			})
		} else {
			p.install = current.install
		}

		return nil
	}
}

// parseBody consumes statements until one of the terminators and returns the one found.
// An empty result means the input ended first.
func (p *parser) parseBody(current *pending, terminators ...string) (string, error) {
	for {
		l, ok := p.next()
		if !ok {
			return "", nil
		}

		head := l.first()
		for _, t := range terminators {
			if head == t {
				return head, nil
			}
		}

		if err := p.parseStatement(l, current); err != nil {
			return "", err
		}
	}
}

//nolint:cyclop // One case per statement kind reads best as a flat switch.
func (p *parser) parseStatement(l line, current *pending) error {
	head := l.first()

	switch head {
	case "desc":
		p.result.Description = strings.TrimSpace(stringArg(l))
	case "homepage":
		p.result.Homepage = stringArg(l)
	case "version":
		p.result.Version = stringArg(l)
	case "license":
		p.result.License = stringArg(l)
	case "url":
		current.url = stringArg(l)
	case "sha256":
		current.sha256 = stringArg(l)
	case "depends_on":
		p.parseDependsOn(l)
	case "if", "unless":
		return p.parseIf(l)
	case "def":
		if len(l.tokens) > 1 && l.tokens[1].value == "install" {
			return p.parseInstall(l, current)
		}

		return p.skipBlock()
	case "end":
		return p.errorf(l, "unexpected end")
	default:
		if os, ok := osBlocks[head]; ok && l.last() == "do" {
			return p.parseFrame(l, frame{os: os})
		}

		if term, ok := cpuBlocks[head]; ok && l.last() == "do" {
			return p.parseFrame(l, frame{when: term})
		}

		if _, opens := blockOpeners[head]; opens || l.last() == "do" {
			return p.skipBlock()
		}
	}

	return nil
}

func stringArg(l line) string {
	if len(l.tokens) < 2 || l.tokens[1].kind != tokString {
		return ""
	}

	return l.tokens[1].value
}

func (p *parser) parseDependsOn(l line) {
	if len(l.tokens) < 2 {
		return
	}

	arg := l.tokens[1]
	switch arg.kind {
	case tokSymbol:
		p.result.Requirements = append(p.result.Requirements, arg.value)
	case tokString:
		p.result.Dependencies = append(p.result.Dependencies, arg.value)
	case tokIdent, tokOp:
	}
}

func (p *parser) parseFrame(open line, f frame) error {
	p.frames = append(p.frames, f)
	defer func() {
		p.frames = p.frames[:len(p.frames)-1]
	}()

	current := new(pending)

	term, err := p.parseBody(current, "end")
	if err != nil {
		return err
	}

	if term == "" {
		return p.errorf(open, "%s block is not closed", open.first())
	}

	p.emit(current)

	return nil
}

func (p *parser) parseIf(open line) error {
	cond, err := conditionOf(open)
	if err != nil {
		return p.errorf(open, "%v", err)
	}

	if open.first() == "unless" {
		cond = formula.Not{X: cond}
	}

	var previous []formula.Expr

	for {
		when := cond
		if len(previous) > 0 {
			when = formula.AllOf(formula.Not{X: formula.AnyOf(previous...)}, cond)
		}

		term, err := p.parseBranch(when)
		if err != nil {
			return err
		}

		previous = append(previous, cond)

		switch term.first() {
		case "end":
			return nil
		case "elsif":
			if cond, err = conditionOf(term); err != nil {
				return p.errorf(term, "%v", err)
			}
		case "else":
			if _, err = p.parseBranch(formula.Not{X: formula.AnyOf(previous...)}); err != nil {
				return err
			}

			return nil
		default:
			return p.errorf(open, "if block is not closed")
		}
	}
}

// parseBranch parses one if/elsif/else arm and returns the line that ended it.
func (p *parser) parseBranch(when formula.Expr) (line, error) {
	p.frames = append(p.frames, frame{when: when})
	defer func() {
		p.frames = p.frames[:len(p.frames)-1]
	}()

	current := new(pending)

	term, err := p.parseBody(current, "end", "elsif", "else")
	if err != nil {
		return line{}, err
	}

	p.emit(current)

	if term == "" {
		return line{}, nil
	}

	return p.lines[p.pos-1], nil
}

func conditionOf(l line) (formula.Expr, error) {
	parts := make([]string, 0, len(l.tokens)-1)
	for _, t := range l.tokens[1:] {
		if t.value == "then" {
			break
		}

		parts = append(parts, t.value)
	}

	return formula.ParseExpr(strings.Join(parts, " "))
}

func (p *parser) parseInstall(open line, current *pending) error {
	for {
		l, ok := p.next()
		if !ok {
			return p.errorf(open, "def install is not closed")
		}

		switch l.first() {
		case "end":
			return nil
		case "bin.install":
			current.install = append(current.install, parseBinInstall(l)...)
		default:
			if _, opens := blockOpeners[l.first()]; opens || l.last() == "do" {
				if err := p.skipBlock(); err != nil {
					return err
				}
			}
		}
	}
}

// parseBinInstall handles `bin.install "a", "b"` and `bin.install "a" => "b"`.
func parseBinInstall(l line) []formula.BinaryInstall {
	var (
		result []formula.BinaryInstall
		tokens = l.tokens[1:]
	)

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.kind != tokString {
			continue
		}

		b := formula.BinaryInstall{Source: t.value}

		if i+2 < len(tokens) && tokens[i+1].value == "=>" && tokens[i+2].kind == tokString {
			b.Target = tokens[i+2].value
			i += 2
		}

		result = append(result, b)
	}

	return result
}

// skipBlock consumes lines until the "end" matching an already consumed opener.
func (p *parser) skipBlock() error {
	depth := 1

	for depth > 0 {
		l, ok := p.next()
		if !ok {
			return fmt.Errorf("%w: unexpected end of input inside block", ErrSyntax)
		}

		if _, opens := blockOpeners[l.first()]; opens || l.last() == "do" {
			depth++
		}

		if l.first() == "end" {
			depth--
		}
	}

	return nil
}

func (p *parser) emit(current *pending) {
	if current.url == "" {
		return
	}

	artifact := &formula.Artifact{
		URL:     current.url,
		SHA256:  current.sha256,
		Install: current.install,
	}

	whens := make([]formula.Expr, 0, len(p.frames))

	for _, f := range p.frames {
		if f.os != "" {
			artifact.OS = f.os
		}

		whens = append(whens, f.when)
	}

	artifact.When = formula.AllOf(whens...)
	p.result.Artifacts = append(p.result.Artifacts, artifact)
}

// NameFromClass converts a Ruby class name into a formula name: ProtoCli -> proto-cli, ProtoAT1 -> proto@1.
func NameFromClass(class string) string {
	var (
		b     strings.Builder
		runes = []rune(class)
	)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == 'A' && i+2 < len(runes) && runes[i+1] == 'T' && unicode.IsDigit(runes[i+2]) {
			b.WriteRune('@')

			i++

			continue
		}

		if unicode.IsUpper(r) {
			if i > 0 && !unicode.IsDigit(runes[i-1]) {
				b.WriteRune('-')
			}

			b.WriteRune(unicode.ToLower(r))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// ClassFromName is the inverse of NameFromClass.
func ClassFromName(name string) string {
	var b strings.Builder

	upper := true

	for _, r := range name {
		switch {
		case r == '-' || r == '_' || r == '.':
			upper = true
		case r == '@':
			b.WriteString("AT")
		case upper:
			b.WriteRune(unicode.ToUpper(r))

			upper = false
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}
