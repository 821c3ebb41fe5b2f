package papyrus

import (
	"strconv"
	"strings"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
)

// Lexer turns Papyrus source text into a token stream.
type Lexer struct {
	src  string
	file string
	off  int
	line int
	col  int
}

// NewLexer creates a lexer over src. file is used in diagnostics only.
func NewLexer(src, file string) *Lexer {
	return &Lexer{src: src, file: file, line: 1, col: 1}
}

// Lex tokenizes the whole input, excluding the trailing EOF token.
func Lex(src, file string) ([]Token, error) {
	lx := NewLexer(src, file)
	var toks []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == EOF {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

func (l *Lexer) pos() Pos {
	return Pos{Line: l.line, Col: l.col, Offset: l.off}
}

func (l *Lexer) errorf(pos Pos, msg string) error {
	err := zerr.Wrap(domain.ErrLex, msg)
	err = zerr.With(err, "file", l.file)
	return zerr.With(err, "pos", pos.String())
}

// advance consumes one byte, tracking line and column.
func (l *Lexer) advance() byte {
	c := l.src[l.off]
	l.off++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) peek() (byte, bool) {
	if l.off >= len(l.src) {
		return 0, false
	}
	return l.src[l.off], true
}

// Next returns the next token, or an EOF token at end of input.
func (l *Lexer) Next() (Token, error) {
	l.skipSpaceAndComments()
	start := l.pos()
	c, ok := l.peek()
	if !ok {
		return Token{Kind: EOF, Pos: start}, nil
	}

	switch {
	case c == '(':
		l.advance()
		return Token{Kind: LParen, Pos: start}, nil
	case c == ')':
		l.advance()
		return Token{Kind: RParen, Pos: start}, nil
	case c == '[':
		l.advance()
		return Token{Kind: LBracket, Pos: start}, nil
	case c == ']':
		l.advance()
		return Token{Kind: RBracket, Pos: start}, nil
	case c == '{':
		l.advance()
		return Token{Kind: LBrace, Pos: start}, nil
	case c == '}':
		l.advance()
		return Token{Kind: RBrace, Pos: start}, nil
	case c == ',':
		l.advance()
		return Token{Kind: Comma, Pos: start}, nil
	case c == '+':
		l.advance()
		return Token{Kind: Plus, Pos: start}, nil
	case c == '|':
		l.advance()
		return Token{Kind: Pipe, Pos: start}, nil
	case c == '=':
		l.advance()
		if n, ok := l.peek(); ok && n == '>' {
			l.advance()
			return Token{Kind: Arrow, Pos: start}, nil
		}
		return Token{Kind: Equals, Pos: start}, nil
	case c == '"':
		return l.lexString(start)
	case c == '-' || isDigit(c):
		return l.lexNumber(start)
	case isIdentStart(c):
		return l.lexIdent(start), nil
	default:
		return Token{}, l.errorf(start, "illegal character "+strconv.QuoteRune(rune(c)))
	}
}

func (l *Lexer) skipSpaceAndComments() {
	for {
		c, ok := l.peek()
		if !ok {
			return
		}
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f':
			l.advance()
		case c == '#':
			for {
				c, ok := l.peek()
				if !ok || c == '\n' {
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) lexString(start Pos) (Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		c, ok := l.peek()
		if !ok {
			return Token{}, l.errorf(start, "unterminated string")
		}
		l.advance()
		switch c {
		case '"':
			return Token{Kind: String, Text: sb.String(), Pos: start}, nil
		case '\n':
			return Token{}, l.errorf(start, "unterminated string")
		case '\\':
			e, ok := l.peek()
			if !ok {
				return Token{}, l.errorf(start, "unterminated string")
			}
			l.advance()
			switch e {
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return Token{}, l.errorf(start, "invalid escape \\"+string(e))
			}
		default:
			sb.WriteByte(c)
		}
	}
}

func (l *Lexer) lexNumber(start Pos) (Token, error) {
	var sb strings.Builder
	if c, _ := l.peek(); c == '-' {
		sb.WriteByte(l.advance())
	}
	digits := 0
	for {
		c, ok := l.peek()
		if !ok || !isDigit(c) {
			break
		}
		sb.WriteByte(l.advance())
		digits++
	}
	if digits == 0 {
		return Token{}, l.errorf(start, "invalid number")
	}
	if c, ok := l.peek(); ok && c == '.' {
		sb.WriteByte(l.advance())
		frac := 0
		for {
			c, ok := l.peek()
			if !ok || !isDigit(c) {
				break
			}
			sb.WriteByte(l.advance())
			frac++
		}
		if frac == 0 {
			return Token{}, l.errorf(start, "invalid number: missing digits after decimal point")
		}
	}
	if c, ok := l.peek(); ok && (c == 'e' || c == 'E') {
		sb.WriteByte(l.advance())
		if c, ok := l.peek(); ok && (c == '+' || c == '-') {
			sb.WriteByte(l.advance())
		}
		exp := 0
		for {
			c, ok := l.peek()
			if !ok || !isDigit(c) {
				break
			}
			sb.WriteByte(l.advance())
			exp++
		}
		if exp == 0 {
			return Token{}, l.errorf(start, "invalid number: missing exponent digits")
		}
	}
	n, err := strconv.ParseFloat(sb.String(), 64)
	if err != nil {
		return Token{}, l.errorf(start, "invalid number "+strconv.Quote(sb.String()))
	}
	return Token{Kind: Number, Num: n, Pos: start}, nil
}

func (l *Lexer) lexIdent(start Pos) Token {
	var sb strings.Builder
	sb.WriteByte(l.advance())
	for {
		c, ok := l.peek()
		if !ok || !isIdentPart(c) {
			break
		}
		sb.WriteByte(l.advance())
	}
	text := sb.String()
	switch text {
	case "true":
		return Token{Kind: True, Pos: start}
	case "false":
		return Token{Kind: False, Pos: start}
	case "_":
		return Token{Kind: Underscore, Pos: start}
	}
	return Token{Kind: Ident, Text: text, Pos: start}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-' || c == '.'
}
