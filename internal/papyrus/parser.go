package papyrus

import (
	"fmt"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
)

// Parser converts a token stream into a value tree.
//
// Every top-level statement is an identifier-headed call whose arguments
// are all named; each becomes one Object keyed by its mandatory "name"
// argument. glob, RelPath, RelPaths, and select are not keywords: they
// parse as ordinary calls (select has a dedicated production for its
// tuple => map body) and are recognized by name at resolve time.
type Parser struct {
	toks []Token
	pos  int
	file string
}

// ParseFile lexes and parses one ANUBIS file. The result is an array value
// holding one object per top-level statement.
func ParseFile(src, file string) (*Value, error) {
	toks, err := Lex(src, file)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, file: file}
	var objects []*Value
	seen := map[string]Pos{}
	for !p.at(EOF) {
		obj, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		name := obj.Field("name")
		if name == nil || name.Kind != StringKind {
			return nil, p.errorf(obj.Pos, "%s object is missing its name argument", obj.Str)
		}
		if prev, dup := seen[name.Str]; dup {
			return nil, p.errorf(obj.Pos, "duplicate name %q (first declared at %s)", name.Str, prev)
		}
		seen[name.Str] = obj.Pos
		objects = append(objects, obj)
	}
	return &Value{Kind: ArrayKind, Elems: objects}, nil
}

func (p *Parser) errorf(pos Pos, format string, args ...any) error {
	err := zerr.Wrap(domain.ErrParse, fmt.Sprintf(format, args...))
	err = zerr.With(err, "file", p.file)
	return zerr.With(err, "pos", pos.String())
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(k TokenKind) bool { return p.cur().Kind == k }

func (p *Parser) next() Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

// consume advances past the current token if it has the given kind.
func (p *Parser) consume(k TokenKind) bool {
	if p.at(k) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(k TokenKind) (Token, error) {
	t := p.cur()
	if t.Kind != k {
		return Token{}, p.errorf(t.Pos, "expected %s, found %s", k, describe(t))
	}
	return p.next(), nil
}

func describe(t Token) string {
	switch t.Kind {
	case Ident:
		return fmt.Sprintf("identifier %q", t.Text)
	case String:
		return fmt.Sprintf("string %q", t.Text)
	case Number:
		return fmt.Sprintf("number %v", t.Num)
	default:
		return fmt.Sprintf("%q", t.Kind.String())
	}
}

// parseStatement parses one top-level call and converts it to an object.
func (p *Parser) parseStatement() (*Value, error) {
	head, err := p.expect(Ident)
	if err != nil {
		return nil, err
	}
	call, err := p.parseCallArgs(head)
	if err != nil {
		return nil, err
	}
	if len(call.Elems) > 0 {
		return nil, p.errorf(head.Pos, "%s: top-level arguments must be named", head.Text)
	}
	return &Value{Kind: ObjectKind, Str: call.Str, Fields: call.Fields, Pos: call.Pos}, nil
}

// parseExpr parses a concat chain: primary ('+' primary)*.
func (p *Parser) parseExpr() (*Value, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.at(Plus) {
		pos := p.next().Pos
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &Value{Kind: ConcatKind, Left: left, Right: right, Pos: pos}
	}
	return left, nil
}

func (p *Parser) parsePrimary() (*Value, error) {
	t := p.cur()
	switch t.Kind {
	case String:
		p.next()
		return &Value{Kind: StringKind, Str: t.Text, Pos: t.Pos}, nil
	case Number:
		p.next()
		return &Value{Kind: NumberKind, Num: t.Num, Pos: t.Pos}, nil
	case True:
		p.next()
		return &Value{Kind: BoolKind, Bool: true, Pos: t.Pos}, nil
	case False:
		p.next()
		return &Value{Kind: BoolKind, Bool: false, Pos: t.Pos}, nil
	case Underscore:
		p.next()
		return &Value{Kind: WildcardKind, Pos: t.Pos}, nil
	case LBracket:
		return p.parseArray()
	case LBrace:
		return p.parseMap()
	case LParen:
		return p.parseTuple()
	case Ident:
		p.next()
		if p.at(LParen) {
			if t.Text == "select" {
				return p.parseSelect(t)
			}
			return p.parseCallArgs(t)
		}
		return &Value{Kind: IdentKind, Str: t.Text, Pos: t.Pos}, nil
	default:
		return nil, p.errorf(t.Pos, "unexpected %s", describe(t))
	}
}

// parseCallArgs parses '(' args ')' after the call head identifier.
func (p *Parser) parseCallArgs(head Token) (*Value, error) {
	if _, err := p.expect(LParen); err != nil {
		return nil, err
	}
	call := &Value{Kind: CallKind, Str: head.Text, Pos: head.Pos}
	seen := map[string]bool{}
	for !p.consume(RParen) {
		if p.at(Ident) && p.peekKind(1) == Equals {
			name := p.next()
			p.next() // '='
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if seen[name.Text] {
				return nil, p.errorf(name.Pos, "%s: duplicate argument %q", head.Text, name.Text)
			}
			seen[name.Text] = true
			call.Fields = append(call.Fields, Field{Name: name.Text, Value: val})
		} else {
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Elems = append(call.Elems, val)
		}
		if !p.consume(Comma) && !p.at(RParen) {
			return nil, p.errorf(p.cur().Pos, "%s: expected , or ) in argument list, found %s", head.Text, describe(p.cur()))
		}
	}
	return call, nil
}

func (p *Parser) peekKind(n int) TokenKind {
	if p.pos+n >= len(p.toks) {
		return EOF
	}
	return p.toks[p.pos+n].Kind
}

// parseSelect parses select '(' tuple '=>' map ')'. The result is a call
// with the key tuple and match map as its two positional arguments.
func (p *Parser) parseSelect(head Token) (*Value, error) {
	if _, err := p.expect(LParen); err != nil {
		return nil, err
	}
	keys, err := p.parseTuple()
	if err != nil {
		return nil, err
	}
	for _, k := range keys.Elems {
		if k.Kind != IdentKind {
			return nil, p.errorf(k.Pos, "select: key tuple elements must be identifiers")
		}
	}
	if _, err := p.expect(Arrow); err != nil {
		return nil, err
	}
	m, err := p.parseMap()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RParen); err != nil {
		return nil, err
	}
	return &Value{Kind: CallKind, Str: "select", Elems: []*Value{keys, m}, Pos: head.Pos}, nil
}

func (p *Parser) parseArray() (*Value, error) {
	open, err := p.expect(LBracket)
	if err != nil {
		return nil, err
	}
	arr := &Value{Kind: ArrayKind, Pos: open.Pos}
	for !p.consume(RBracket) {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, v)
		if !p.consume(Comma) && !p.at(RBracket) {
			return nil, p.errorf(p.cur().Pos, "expected , or ] in array, found %s", describe(p.cur()))
		}
	}
	return arr, nil
}

func (p *Parser) parseTuple() (*Value, error) {
	open, err := p.expect(LParen)
	if err != nil {
		return nil, err
	}
	tup := &Value{Kind: TupleKind, Pos: open.Pos}
	for !p.consume(RParen) {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		tup.Elems = append(tup.Elems, v)
		if !p.consume(Comma) && !p.at(RParen) {
			return nil, p.errorf(p.cur().Pos, "expected , or ) in tuple, found %s", describe(p.cur()))
		}
	}
	return tup, nil
}

// parseMap parses '{' mapentry* '}' where each key is an identifier tuple,
// a bare identifier (shorthand for a 1-tuple), or the default sentinel.
func (p *Parser) parseMap() (*Value, error) {
	open, err := p.expect(LBrace)
	if err != nil {
		return nil, err
	}
	m := &Value{Kind: MapKind, Pos: open.Pos}
	for !p.consume(RBrace) {
		key, err := p.parseMapKey()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(Equals); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, MapEntry{Key: key, Value: val})
		if !p.consume(Comma) && !p.at(RBrace) {
			return nil, p.errorf(p.cur().Pos, "expected , or } in map, found %s", describe(p.cur()))
		}
	}
	return m, nil
}

func (p *Parser) parseMapKey() (MapKey, error) {
	t := p.cur()
	switch t.Kind {
	case Ident:
		p.next()
		if t.Text == "default" {
			return MapKey{Default: true, Pos: t.Pos}, nil
		}
		return MapKey{Terms: []KeyTerm{{Alts: []string{t.Text}}}, Pos: t.Pos}, nil
	case LParen:
		p.next()
		key := MapKey{Pos: t.Pos}
		for !p.consume(RParen) {
			term, err := p.parseKeyTerm()
			if err != nil {
				return MapKey{}, err
			}
			key.Terms = append(key.Terms, term)
			if !p.consume(Comma) && !p.at(RParen) {
				return MapKey{}, p.errorf(p.cur().Pos, "expected , or ) in map key, found %s", describe(p.cur()))
			}
		}
		return key, nil
	default:
		return MapKey{}, p.errorf(t.Pos, "expected map key, found %s", describe(t))
	}
}

// parseKeyTerm parses one position of a key tuple: _ or a '|' disjunction
// of identifiers.
func (p *Parser) parseKeyTerm() (KeyTerm, error) {
	t := p.cur()
	switch t.Kind {
	case Underscore:
		p.next()
		return KeyTerm{Any: true}, nil
	case Ident:
		p.next()
		term := KeyTerm{Alts: []string{t.Text}}
		for p.consume(Pipe) {
			alt, err := p.expect(Ident)
			if err != nil {
				return KeyTerm{}, err
			}
			term.Alts = append(term.Alts, alt.Text)
		}
		return term, nil
	default:
		return KeyTerm{}, p.errorf(t.Pos, "expected identifier or _ in map key, found %s", describe(t))
	}
}
