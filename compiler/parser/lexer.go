package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokKeyword
	tokOp
	tokInt
	tokFloat
	tokBigint
	tokDecimal
	tokString
	tokBytes
	tokParam
	tokStrInterpStart
	tokStrInterpCont
	tokStrInterpEnd
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokKeyword:
		return "keyword"
	case tokOp:
		return "operator"
	case tokInt, tokFloat, tokBigint, tokDecimal:
		return "number"
	case tokString, tokStrInterpStart, tokStrInterpCont, tokStrInterpEnd:
		return "string"
	case tokBytes:
		return "bytes"
	case tokParam:
		return "parameter"
	}
	return "unknown token"
}

// A token is a classified lexeme.  Text is the source text; Value holds
// the decoded value for identifiers (NFC, without backquotes), keywords
// (upper case), strings and bytes (unescaped), and parameters (without $).
type token struct {
	kind  tokenKind
	text  string
	value string
	pos   int
	end   int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

// reserved keywords can never be used as identifiers without backquotes.
var reserved = map[string]bool{
	"ALTER": true, "AND": true, "BY": true, "CREATE": true, "DELETE": true,
	"DISTINCT": true, "DROP": true, "ELSE": true, "EXISTS": true,
	"FALSE": true, "FILTER": true, "FOR": true, "GROUP": true, "IF": true,
	"ILIKE": true, "IN": true, "INSERT": true, "INTERSECT": true,
	"IS": true, "LIKE": true, "LIMIT": true, "MODULE": true, "NOT": true,
	"OFFSET": true, "OR": true, "ORDER": true, "SELECT": true, "TRUE": true,
	"UNION": true, "EXCEPT": true, "UPDATE": true, "WITH": true,
}

// Operators ordered so that longer lexemes are tried first.
var operators = []string{
	"?!=", "//", "??", "?=", "++", "!=", "<=", ">=", "::", ":=", "+=", "-=",
	"->", ".<", "@@", "**",
	"+", "-", "*", "/", "%", "^", "=", "<", ">", "(", ")", "[", "]", "{", "}",
	",", ";", ":", ".", "@", "|",
}

type lexer struct {
	src    string
	off    int
	tokens []token
	// interp holds the paren depth at each open string interpolation.
	interp     []interpState
	openParens int
}

type interpState struct {
	quote  string
	parens int
}

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
		if tok.kind == tokEOF {
			return l.tokens, nil
		}
	}
}

func (l *lexer) errorf(pos int, format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Pos: pos, End: -1}
}

func (l *lexer) skipSpace() {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == '#':
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.off++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			l.off++
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.off
	if l.off >= len(l.src) {
		return token{kind: tokEOF, pos: start, end: start}, nil
	}
	c := l.src[l.off]
	switch {
	case c == ')' && len(l.interp) > 0 && l.interp[len(l.interp)-1].parens == l.openParens:
		return l.interpContinue(start)
	case c == '\'' || c == '"':
		return l.string(start, string(c), false)
	case (c == 'r' || c == 'R') && l.peekQuote(1):
		return l.string(start, l.src[l.off+1:l.off+2], true)
	case (c == 'b' || c == 'B') && l.peekQuote(1):
		return l.bytes(start)
	case c == '$':
		return l.dollar(start)
	case c == '`':
		return l.quotedIdent(start)
	case c >= '0' && c <= '9':
		return l.number(start)
	case c == '.' && l.off+1 < len(l.src) && isDigit(l.src[l.off+1]) && !l.prevIsOperand():
		return l.number(start)
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.off:])
	if isIdentStart(r) {
		return l.ident(start), nil
	}
	for _, op := range operators {
		if strings.HasPrefix(l.src[l.off:], op) {
			l.off += len(op)
			switch op {
			case "(":
				l.openParens++
			case ")":
				l.openParens--
			}
			return token{kind: tokOp, text: op, value: op, pos: start, end: l.off}, nil
		}
	}
	return token{}, l.errorf(start, "unexpected character %q", r)
}

// prevIsOperand reports whether the previous token ends an operand so
// that "t.0" lexes as a tuple element access rather than a float.
func (l *lexer) prevIsOperand() bool {
	if len(l.tokens) == 0 {
		return false
	}
	switch prev := l.tokens[len(l.tokens)-1]; prev.kind {
	case tokIdent, tokInt, tokFloat, tokBigint, tokDecimal, tokString, tokBytes, tokParam, tokStrInterpEnd:
		return true
	case tokOp:
		return prev.text == ")" || prev.text == "]" || prev.text == "}"
	}
	return false
}

func (l *lexer) peekQuote(k int) bool {
	if l.off+k >= len(l.src) {
		return false
	}
	c := l.src[l.off+k]
	return c == '\'' || c == '"'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// isIdentChar admits combining marks so that decomposed identifiers reach
// NFC normalization intact.
func isIdentChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc)
}

func (l *lexer) ident(start int) token {
	for l.off < len(l.src) {
		r, n := utf8.DecodeRuneInString(l.src[l.off:])
		if !isIdentChar(r) {
			break
		}
		l.off += n
	}
	text := l.src[start:l.off]
	upper := strings.ToUpper(text)
	if reserved[upper] {
		return token{kind: tokKeyword, text: text, value: upper, pos: start, end: l.off}
	}
	return token{kind: tokIdent, text: text, value: norm.NFC.String(text), pos: start, end: l.off}
}

func (l *lexer) quotedIdent(start int) (token, error) {
	end := strings.IndexByte(l.src[start+1:], '`')
	if end < 0 {
		return token{}, l.errorf(start, "unterminated quoted identifier")
	}
	name := l.src[start+1 : start+1+end]
	if name == "" {
		return token{}, l.errorf(start, "quoted identifiers cannot be empty")
	}
	l.off = start + end + 2
	return token{kind: tokIdent, text: l.src[start:l.off], value: norm.NFC.String(name), pos: start, end: l.off}, nil
}

func (l *lexer) number(start int) (token, error) {
	kind := tokInt
	digits := func() {
		for l.off < len(l.src) && (isDigit(l.src[l.off]) || l.src[l.off] == '_') {
			l.off++
		}
	}
	digits()
	// After a path dot, "t.0.1" is two tuple element steps.
	pathStep := len(l.tokens) > 0 && l.tokens[len(l.tokens)-1].text == "." && l.tokens[len(l.tokens)-1].kind == tokOp
	if pathStep {
		text := l.src[start:l.off]
		return token{kind: tokInt, text: text, value: text, pos: start, end: l.off}, nil
	}
	if l.off+1 < len(l.src) && l.src[l.off] == '.' && isDigit(l.src[l.off+1]) {
		kind = tokFloat
		l.off++
		digits()
	}
	if l.off < len(l.src) && (l.src[l.off] == 'e' || l.src[l.off] == 'E') {
		save := l.off
		l.off++
		if l.off < len(l.src) && (l.src[l.off] == '+' || l.src[l.off] == '-') {
			l.off++
		}
		if l.off < len(l.src) && isDigit(l.src[l.off]) {
			kind = tokFloat
			digits()
		} else {
			l.off = save
		}
	}
	if l.off < len(l.src) && l.src[l.off] == 'n' {
		l.off++
		if kind == tokInt {
			kind = tokBigint
		} else {
			kind = tokDecimal
		}
	}
	if l.off < len(l.src) {
		r, _ := utf8.DecodeRuneInString(l.src[l.off:])
		if isIdentChar(r) {
			return token{}, l.errorf(start, "invalid numeric literal %q", l.src[start:l.off+1])
		}
	}
	text := l.src[start:l.off]
	value := strings.ReplaceAll(strings.TrimSuffix(text, "n"), "_", "")
	return token{kind: kind, text: text, value: value, pos: start, end: l.off}, nil
}

func (l *lexer) dollar(start int) (token, error) {
	l.off++
	// Dollar-quoted string: $tag$...$tag$
	tagEnd := l.off
	for tagEnd < len(l.src) {
		r, n := utf8.DecodeRuneInString(l.src[tagEnd:])
		if !isIdentChar(r) {
			break
		}
		tagEnd += n
	}
	if tagEnd < len(l.src) && l.src[tagEnd] == '$' && (tagEnd == l.off || !isDigit(l.src[l.off])) {
		delim := l.src[start : tagEnd+1]
		body := tagEnd + 1
		end := strings.Index(l.src[body:], delim)
		if end < 0 {
			return token{}, l.errorf(start, "unterminated string, quoted by %s", delim)
		}
		if v := l.src[body : body+end]; !utf8.ValidString(v) {
			return token{}, l.errorf(body+invalidUTF8(v), "invalid string literal: invalid UTF-8")
		}
		l.off = body + end + len(delim)
		return token{kind: tokString, text: l.src[start:l.off], value: l.src[body : body+end], pos: start, end: l.off}, nil
	}
	if tagEnd == l.off {
		return token{}, l.errorf(start, "bare $ is not allowed")
	}
	name := l.src[l.off:tagEnd]
	if isDigit(name[0]) {
		for _, c := range []byte(name) {
			if !isDigit(c) {
				return token{}, l.errorf(start, "invalid positional parameter %q", "$"+name)
			}
		}
	}
	l.off = tagEnd
	return token{kind: tokParam, text: l.src[start:l.off], value: norm.NFC.String(name), pos: start, end: l.off}, nil
}

// string lexes a quoted string at start.  The opening quote begins at
// start (or start+1 for raw strings).  An unescaped `\(` starts a string
// interpolation.
func (l *lexer) string(start int, quote string, raw bool) (token, error) {
	body := start + 1
	if raw {
		body++
	}
	kind, value, end, err := l.scanString(body, quote, raw, tokString, tokStrInterpStart)
	if e, ok := err.(*Error); ok {
		return token{}, e
	}
	if err != nil {
		return token{}, l.errorf(start, "%s", err)
	}
	l.off = end
	if kind == tokStrInterpStart {
		l.interp = append(l.interp, interpState{quote: quote, parens: l.openParens})
	}
	return token{kind: kind, text: l.src[start:end], value: value, pos: start, end: end}, nil
}

func (l *lexer) interpContinue(start int) (token, error) {
	state := l.interp[len(l.interp)-1]
	kind, value, end, err := l.scanString(start+1, state.quote, false, tokStrInterpEnd, tokStrInterpCont)
	if e, ok := err.(*Error); ok {
		return token{}, e
	}
	if err != nil {
		return token{}, l.errorf(start, "unterminated string with interpolations, quoted by %s", state.quote)
	}
	if kind == tokStrInterpEnd {
		l.interp = l.interp[:len(l.interp)-1]
	}
	l.off = end
	return token{kind: kind, text: l.src[start:end], value: value, pos: start, end: end}, nil
}

// scanString scans string content from off up to the closing quote,
// returning closed if the quote is found or open if an interpolation
// begins first.
func (l *lexer) scanString(off int, quote string, raw bool, closed, open tokenKind) (tokenKind, string, int, error) {
	var b strings.Builder
	for off < len(l.src) {
		c := l.src[off]
		if c == quote[0] {
			return closed, b.String(), off + 1, nil
		}
		if c >= utf8.RuneSelf {
			r, n := utf8.DecodeRuneInString(l.src[off:])
			if r == utf8.RuneError && n == 1 {
				return 0, "", 0, l.errorf(off, "invalid string literal: invalid UTF-8 byte 0x%02x", c)
			}
			b.WriteString(l.src[off : off+n])
			off += n
			continue
		}
		if c != '\\' || raw {
			b.WriteByte(c)
			off++
			continue
		}
		if off+1 >= len(l.src) {
			break
		}
		esc := l.src[off+1]
		off += 2
		switch esc {
		case '(':
			return open, b.String(), off, nil
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '\\', '\'', '"':
			b.WriteByte(esc)
		case '\n':
			// Line continuation.
			for off < len(l.src) && (l.src[off] == ' ' || l.src[off] == '\t' || l.src[off] == '\n') {
				off++
			}
		case 'x':
			r, n, err := hexRune(l.src[off:], 2)
			if err != nil || r > 0x7f {
				return 0, "", 0, fmt.Errorf("invalid string literal: invalid escape sequence '\\x%s'", prefix(l.src[off:], 2))
			}
			b.WriteRune(r)
			off += n
		case 'u', 'U':
			width := 4
			if esc == 'U' {
				width = 8
			}
			r, n, err := hexRune(l.src[off:], width)
			if err != nil {
				return 0, "", 0, fmt.Errorf("invalid string literal: invalid escape sequence '\\%c%s'", esc, prefix(l.src[off:], width))
			}
			b.WriteRune(r)
			off += n
		default:
			return 0, "", 0, fmt.Errorf("invalid string literal: invalid escape sequence '\\%c'", esc)
		}
	}
	return 0, "", 0, fmt.Errorf("unterminated string, quoted by %s", quote)
}

// invalidUTF8 returns the offset of the first invalid byte in s.
func invalidUTF8(s string) int {
	for k, r := range s {
		if r == utf8.RuneError {
			if _, n := utf8.DecodeRuneInString(s[k:]); n == 1 {
				return k
			}
		}
	}
	return 0
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func hexRune(s string, width int) (rune, int, error) {
	if len(s) < width {
		return 0, 0, fmt.Errorf("short escape")
	}
	var r rune
	for _, c := range []byte(s[:width]) {
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			return 0, 0, fmt.Errorf("bad hex digit")
		}
		r = r<<4 | rune(d)
	}
	return r, width, nil
}

func (l *lexer) bytes(start int) (token, error) {
	quote := l.src[start+1]
	off := start + 2
	var b strings.Builder
	for off < len(l.src) {
		c := l.src[off]
		switch {
		case c == quote:
			l.off = off + 1
			return token{kind: tokBytes, text: l.src[start:l.off], value: b.String(), pos: start, end: l.off}, nil
		case c > 0x7f:
			return token{}, l.errorf(start, "invalid bytes literal: character %q is unexpected, only ascii chars are allowed in bytes literals", c)
		case c == '\\' && off+1 < len(l.src):
			esc := l.src[off+1]
			off += 2
			switch esc {
			case 'x':
				r, n, err := hexRune(l.src[off:], 2)
				if err != nil {
					return token{}, l.errorf(start, "invalid bytes literal: invalid escape sequence '\\x%s'", prefix(l.src[off:], 2))
				}
				b.WriteByte(byte(r))
				off += n
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '\'', '"':
				b.WriteByte(esc)
			default:
				return token{}, l.errorf(start, "invalid bytes literal: invalid escape sequence '\\%c'", esc)
			}
		default:
			b.WriteByte(c)
			off++
		}
	}
	return token{}, l.errorf(start, "unterminated bytes literal")
}
