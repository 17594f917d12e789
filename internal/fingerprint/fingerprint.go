// Package fingerprint reduces SQL text to a literal-insensitive canonical form
// used as the aggregation key for slow-log entries.
package fingerprint

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// Placeholder replaces every string and numeric literal.
	Placeholder = "?"
	// ListPlaceholder replaces a parenthesized list of placeholders.
	ListPlaceholder = "(?+)"

	listElement = "?+"
)

type token struct {
	text        string
	spaceBefore bool
}

// Normalize returns the fingerprint of sql. It is idempotent: normalizing a
// fingerprint returns it unchanged. Identifier and keyword case is preserved.
func Normalize(sql string) string {
	l := lexer{src: sql}
	l.run()
	return l.render()
}

// QueryID returns a short stable identifier for a fingerprint.
func QueryID(fingerprint string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(fingerprint))
}

type lexer struct {
	src    string
	pos    int
	out    []token
	opens  []int
	spaced bool
}

func (l *lexer) run() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.pos++
			l.spaced = true
		case c == '/' && l.peek(1) == '*':
			l.skipBlockComment()
		case c == '-' && l.peek(1) == '-' && (l.pos+2 >= len(l.src) || isSpace(l.src[l.pos+2])):
			l.skipLineComment()
		case c == '#':
			l.skipLineComment()
		case c == '\'' || c == '"':
			l.skipQuoted(c)
			l.emit(Placeholder)
		case c == '`':
			start := l.pos
			l.skipQuoted('`')
			l.emit(l.src[start:l.pos])
		case c == '?':
			l.pos++
			if l.peek(0) == '+' {
				l.pos++
				l.emit(listElement)
			} else {
				l.emit(Placeholder)
			}
		case isDigit(c) || (c == '.' && isDigit(l.peek(1)) && !l.followsWord()):
			l.number()
		case isIdentStart(c):
			l.word()
		case c == '(':
			l.pos++
			l.emit("(")
			l.opens = append(l.opens, len(l.out)-1)
		case c == ')':
			l.pos++
			l.closeGroup()
		default:
			l.pos++
			l.emit(string(c))
		}
	}

	for len(l.out) > 0 && l.out[len(l.out)-1].text == ";" {
		l.out = l.out[:len(l.out)-1]
	}
}

func (l *lexer) render() string {
	var b strings.Builder
	for i, t := range l.out {
		if i > 0 && (t.spaceBefore || needsGap(l.out[i-1].text, t.text)) {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	return b.String()
}

// needsGap reports whether two adjacent tokens would lex differently if
// written without a space: "--" can open a line comment and "?+" reads as a
// list element.
func needsGap(prev, next string) bool {
	switch {
	case prev == "-":
		return strings.HasPrefix(next, "-")
	case prev == Placeholder:
		return strings.HasPrefix(next, "+")
	}
	return false
}

func (l *lexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) emit(text string) {
	l.out = append(l.out, token{text: text, spaceBefore: l.spaced})
	l.spaced = false
}

// followsWord reports whether the last token ends a name or a value, so
// "t.5" and "?.5" are not read as decimals.
func (l *lexer) followsWord() bool {
	if l.spaced || len(l.out) == 0 {
		return false
	}
	prev := l.out[len(l.out)-1].text
	c := prev[len(prev)-1]
	return prev == Placeholder || isIdentChar(c) || c == '`' || c == ')'
}

// negated reports whether the literal just read is directly preceded by a
// unary minus, a "-" after an operator or keyword or at the start.
func (l *lexer) negated() bool {
	n := len(l.out)
	if l.spaced || n == 0 || l.out[n-1].text != "-" {
		return false
	}
	if n == 1 {
		return true
	}
	prev := l.out[n-2].text
	c := prev[len(prev)-1]
	switch {
	case prev == Placeholder || c == ')' || c == '`':
		return false
	case isIdentChar(c):
		return unaryKeywords[strings.ToUpper(prev)]
	}
	return true
}

var unaryKeywords = map[string]bool{
	"SELECT": true, "WHERE": true, "AND": true, "OR": true, "XOR": true,
	"NOT": true, "IN": true, "IS": true, "LIKE": true, "BETWEEN": true,
	"VALUES": true, "VALUE": true, "SET": true, "WHEN": true, "THEN": true,
	"ELSE": true, "CASE": true, "LIMIT": true, "OFFSET": true, "BY": true,
	"ON": true, "HAVING": true, "RETURN": true, "INTERVAL": true,
	"DEFAULT": true, "DIV": true, "MOD": true, "REGEXP": true, "RLIKE": true,
}

func (l *lexer) skipBlockComment() {
	end := strings.Index(l.src[l.pos+2:], "*/")
	if end < 0 {
		l.pos = len(l.src)
	} else {
		l.pos += 2 + end + 2
	}
	l.spaced = true
}

func (l *lexer) skipLineComment() {
	end := strings.IndexByte(l.src[l.pos:], '\n')
	if end < 0 {
		l.pos = len(l.src)
	} else {
		l.pos += end
	}
	l.spaced = true
}

// skipQuoted advances past a quoted run. Backslash escapes and doubled quotes
// are honored; an unterminated quote runs to the end of input.
func (l *lexer) skipQuoted(q byte) {
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\' && q != '`':
			l.pos += 2
		case c == q:
			if l.peek(1) == q {
				l.pos += 2
				continue
			}
			l.pos++
			return
		default:
			l.pos++
		}
	}
	l.pos = len(l.src)
}

func (l *lexer) number() {
	start := l.pos
	src := l.src
	j := l.pos

	switch {
	case src[j] == '0' && j+2 < len(src) && (src[j+1] == 'x' || src[j+1] == 'X') && isHex(src[j+2]):
		j += 2
		for j < len(src) && isHex(src[j]) {
			j++
		}
	case src[j] == '0' && j+2 < len(src) && (src[j+1] == 'b' || src[j+1] == 'B') && isBinary(src[j+2]):
		j += 2
		for j < len(src) && isBinary(src[j]) {
			j++
		}
	default:
		for j < len(src) && isDigit(src[j]) {
			j++
		}
		if j < len(src) && src[j] == '.' {
			j++
			for j < len(src) && isDigit(src[j]) {
				j++
			}
		}
		if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
			k := j + 1
			if k < len(src) && (src[k] == '+' || src[k] == '-') {
				k++
			}
			if k < len(src) && isDigit(src[k]) {
				for k < len(src) && isDigit(src[k]) {
					k++
				}
				j = k
			}
		}
	}

	// Identifiers may begin with digits ("1col"); those stay verbatim.
	if j < len(src) && isIdentChar(src[j]) && src[start] != '.' {
		l.word()
		return
	}
	l.pos = j
	if l.negated() {
		l.out[len(l.out)-1].text = Placeholder
		return
	}
	l.emit(Placeholder)
}

func (l *lexer) word() {
	start := l.pos
	for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
		l.pos++
	}
	w := l.src[start:l.pos]
	if l.peek(0) == '\'' && isLiteralPrefix(w) {
		l.skipQuoted('\'')
		l.emit(Placeholder)
		return
	}
	l.emit(w)
}

// closeGroup emits ")" or, when the group holds only placeholders separated
// by commas, replaces the whole group with ListPlaceholder. Adjacent lists
// ("(?+), (?+)") fold into one.
func (l *lexer) closeGroup() {
	if len(l.opens) == 0 {
		l.emit(")")
		return
	}
	open := l.opens[len(l.opens)-1]
	l.opens = l.opens[:len(l.opens)-1]

	if !isPlaceholderList(l.out[open+1:]) {
		l.emit(")")
		return
	}

	spaced := l.out[open].spaceBefore
	l.out = append(l.out[:open], token{text: ListPlaceholder, spaceBefore: spaced})
	l.spaced = false

	n := len(l.out)
	if n >= 3 && l.out[n-2].text == "," && l.out[n-3].text == ListPlaceholder {
		l.out = l.out[:n-2]
	}
}

func isPlaceholderList(toks []token) bool {
	if len(toks) == 0 {
		return false
	}
	for i, t := range toks {
		if i%2 == 1 {
			if t.text != "," {
				return false
			}
			continue
		}
		switch t.text {
		case Placeholder, listElement, ListPlaceholder:
		default:
			return false
		}
	}
	return len(toks)%2 == 1
}

func isLiteralPrefix(w string) bool {
	switch w {
	case "x", "X", "b", "B", "n", "N":
		return true
	}
	return len(w) > 1 && w[0] == '_'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isBinary(c byte) bool { return c == '0' || c == '1' }

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$' || c >= 0x80
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }
