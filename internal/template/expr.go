package template

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/alexanderramin/atelier/internal/domain"
)

// Predicate is a compiled boolean expression over briefing answers.
//
// Supported syntax:
//
//	identifiers      type, site.area_m2        (dotted briefing keys)
//	literals         'text' "text" 42 1.5 true false null
//	comparison       == != < <= > >=
//	membership       type in ['residential', 'mixed']
//	presence         has(pool)
//	logic            && || ! and parentheses
//
// A bare identifier is true when the answer is truthy ("yes", true, 1...).
// Missing answers evaluate to null; ordering comparisons involving null are
// false. String equality ignores case and surrounding spaces.
type Predicate struct {
	src  string
	root node
}

// CompilePredicate parses expr into a Predicate.
func CompilePredicate(expr string) (*Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	p := &parser{input: expr}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected character at position %d: %c", p.pos, p.input[p.pos])
	}
	return &Predicate{src: expr, root: root}, nil
}

// MustCompilePredicate is like CompilePredicate but panics on error.
func MustCompilePredicate(expr string) *Predicate {
	pred, err := CompilePredicate(expr)
	if err != nil {
		panic(fmt.Sprintf("template: compiling %q: %v", expr, err))
	}
	return pred
}

// Match evaluates the predicate against a briefing.
func (p *Predicate) Match(b domain.Briefing) bool {
	return domain.Truthy(p.root.eval(b))
}

// String returns the source expression.
func (p *Predicate) String() string { return p.src }

// EvalPredicate compiles and evaluates expr in one step.
func EvalPredicate(expr string, b domain.Briefing) (bool, error) {
	pred, err := CompilePredicate(expr)
	if err != nil {
		return false, err
	}
	return pred.Match(b), nil
}

type node interface {
	eval(b domain.Briefing) any
}

type literal struct{ v any }

func (n literal) eval(domain.Briefing) any { return n.v }

type ident struct{ key string }

func (n ident) eval(b domain.Briefing) any {
	v, ok := b.Value(n.key)
	if !ok {
		return nil
	}
	return v
}

type hasCall struct{ key string }

func (n hasCall) eval(b domain.Briefing) any {
	v, ok := b.Value(n.key)
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

type notOp struct{ x node }

func (n notOp) eval(b domain.Briefing) any { return !domain.Truthy(n.x.eval(b)) }

type logicOp struct {
	and         bool
	left, right node
}

func (n logicOp) eval(b domain.Briefing) any {
	l := domain.Truthy(n.left.eval(b))
	if n.and {
		return l && domain.Truthy(n.right.eval(b))
	}
	return l || domain.Truthy(n.right.eval(b))
}

type compareOp struct {
	op          string
	left, right node
}

func (n compareOp) eval(b domain.Briefing) any {
	l, r := n.left.eval(b), n.right.eval(b)
	switch n.op {
	case "==":
		return valuesEqual(l, r)
	case "!=":
		return !valuesEqual(l, r)
	}
	c, ok := compareOrdered(l, r)
	if !ok {
		return false
	}
	switch n.op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

type inOp struct {
	x    node
	list []any
}

func (n inOp) eval(b domain.Briefing) any {
	v := n.x.eval(b)
	// Multi-select answers match when any selected option is listed.
	if arr, ok := v.([]any); ok {
		for _, item := range arr {
			if n.contains(item) {
				return true
			}
		}
		return false
	}
	return n.contains(v)
}

func (n inOp) contains(v any) bool {
	for _, item := range n.list {
		if valuesEqual(v, item) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.(bool); ok {
		return ab == domain.Truthy(b)
	}
	if bb, ok := b.(bool); ok {
		return bb == domain.Truthy(a)
	}
	_, aStr := a.(string)
	_, bStr := b.(string)
	if !aStr || !bStr {
		an, aok := domain.ToNumber(a)
		bn, bok := domain.ToNumber(b)
		if aok && bok {
			return an == bn
		}
	}
	return strings.EqualFold(strings.TrimSpace(fmt.Sprint(a)), strings.TrimSpace(fmt.Sprint(b)))
}

func compareOrdered(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	an, aok := domain.ToNumber(a)
	bn, bok := domain.ToNumber(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		}
		return 0, true
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpr() (node, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.consume("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logicOp{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.consume("&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = logicOp{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	p.skipSpaces()
	if p.pos < len(p.input) && p.input[p.pos] == '!' && !p.peek("!=") {
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notOp{x: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if p.consume(op) {
			right, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			return compareOp{op: op, left: left, right: right}, nil
		}
	}

	if p.consumeWord("in") {
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return inOp{x: left, list: list}, nil
	}
	return left, nil
}

func (p *parser) parseOperand() (node, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	ch := p.input[p.pos]

	// Parenthesized expression
	if ch == '(' {
		p.pos++
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.consume(")") {
			return nil, fmt.Errorf("expected ')' at position %d", p.pos)
		}
		return n, nil
	}

	if ch == '\'' || ch == '"' || ch == '-' || unicode.IsDigit(rune(ch)) {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return literal{v: v}, nil
	}

	if isIdentStart(ch) {
		name := p.readIdent()
		switch name {
		case "true":
			return literal{v: true}, nil
		case "false":
			return literal{v: false}, nil
		case "null":
			return literal{v: nil}, nil
		case "has":
			if !p.consume("(") {
				return nil, fmt.Errorf("expected '(' after has at position %d", p.pos)
			}
			p.skipSpaces()
			if p.pos >= len(p.input) || !isIdentStart(p.input[p.pos]) {
				return nil, fmt.Errorf("has() expects a briefing key at position %d", p.pos)
			}
			key := p.readIdent()
			if !p.consume(")") {
				return nil, fmt.Errorf("expected ')' at position %d", p.pos)
			}
			return hasCall{key: key}, nil
		}
		return ident{key: name}, nil
	}

	return nil, fmt.Errorf("unexpected character '%c' at position %d", ch, p.pos)
}

func (p *parser) parseList() ([]any, error) {
	if !p.consume("[") {
		return nil, fmt.Errorf("expected '[' at position %d", p.pos)
	}
	var items []any
	if p.consume("]") {
		return items, nil
	}
	for {
		p.skipSpaces()
		v, err := p.parseListItem()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		if p.consume("]") {
			return items, nil
		}
		if !p.consume(",") {
			return nil, fmt.Errorf("expected ',' or ']' at position %d", p.pos)
		}
	}
}

func (p *parser) parseListItem() (any, error) {
	if p.pos < len(p.input) && isIdentStart(p.input[p.pos]) {
		switch word := p.readIdent(); word {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		default:
			return nil, fmt.Errorf("list items must be literals, got %q", word)
		}
	}
	return p.parseLiteral()
}

func (p *parser) parseLiteral() (any, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	ch := p.input[p.pos]
	if ch == '\'' || ch == '"' {
		end := strings.IndexByte(p.input[p.pos+1:], ch)
		if end < 0 {
			return nil, fmt.Errorf("unterminated string at position %d", p.pos)
		}
		s := p.input[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return s, nil
	}

	start := p.pos
	if ch == '-' {
		p.pos++
	}
	for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	f, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q at position %d", p.input[start:p.pos], start)
	}
	return f, nil
}

func (p *parser) readIdent() string {
	start := p.pos
	for p.pos < len(p.input) && (isIdentStart(p.input[p.pos]) || unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isIdentStart(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch == '_'
}

// consume skips spaces and advances past tok if it is next in the input.
func (p *parser) consume(tok string) bool {
	p.skipSpaces()
	if p.peek(tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

// consumeWord is consume for keywords: the match must end at a word boundary.
func (p *parser) consumeWord(word string) bool {
	p.skipSpaces()
	end := p.pos + len(word)
	if !p.peek(word) {
		return false
	}
	if end < len(p.input) && (isIdentStart(p.input[end]) || unicode.IsDigit(rune(p.input[end]))) {
		return false
	}
	p.pos = end
	return true
}

func (p *parser) peek(tok string) bool {
	return strings.HasPrefix(p.input[p.pos:], tok)
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t' || p.input[p.pos] == '\n') {
		p.pos++
	}
}

// ExpandLabel replaces {key} blocks with briefing answers. A block may carry
// a fallback used when the answer is missing: "Layout ({bedrooms|n} rooms)".
func ExpandLabel(tmpl string, b domain.Briefing) (string, error) {
	var result strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] != '{' {
			result.WriteByte(tmpl[i])
			i++
			continue
		}
		j := strings.IndexByte(tmpl[i+1:], '}')
		if j < 0 {
			return "", fmt.Errorf("unmatched '{' at position %d", i)
		}
		inner := tmpl[i+1 : i+1+j]
		key, fallback, _ := strings.Cut(inner, "|")
		key = strings.TrimSpace(key)
		if key == "" || strings.ContainsAny(key, "{ ") {
			return "", fmt.Errorf("invalid placeholder %q at position %d", inner, i)
		}
		if v := b.String(key); v != "" {
			result.WriteString(v)
		} else {
			result.WriteString(fallback)
		}
		i += j + 2
	}
	return result.String(), nil
}
