package expr

import "fmt"

type parser struct {
	toks []token
	pos  int
}

func parse(src string) (node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokName && t.text == word
}

func (p *parser) expectOp(text string) error {
	if !p.isOp(text) {
		t := p.peek()
		return &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected %q", text)}
	}
	p.next()
	return nil
}

func (p *parser) parseOr() (node, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = boolNode{op: "or", x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseAnd() (node, error) {
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		y, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		x = boolNode{op: "and", x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseNot() (node, error) {
	if p.isKeyword("not") {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{x: x}, nil
	}
	return p.parseComparison()
}

// compareOp consumes a comparison operator, returning "" if none follows.
func (p *parser) compareOp() string {
	t := p.peek()
	if t.kind == tokOp {
		switch t.text {
		case "==", "!=", "<", "<=", ">", ">=":
			p.next()
			return t.text
		}
		return ""
	}
	if t.kind != tokName {
		return ""
	}
	switch t.text {
	case "in":
		p.next()
		return "in"
	case "is":
		p.next()
		if p.isKeyword("not") {
			p.next()
			return "is not"
		}
		return "is"
	case "not":
		if nt := p.toks[p.pos+1]; nt.kind == tokName && nt.text == "in" {
			p.pos += 2
			return "not in"
		}
	}
	return ""
}

func (p *parser) parseComparison() (node, error) {
	first, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	cmp := compareNode{first: first}
	for {
		op := p.compareOp()
		if op == "" {
			break
		}
		y, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		cmp.ops = append(cmp.ops, op)
		cmp.rest = append(cmp.rest, y)
	}
	if len(cmp.ops) == 0 {
		return first, nil
	}
	return cmp, nil
}

func (p *parser) parseSum() (node, error) {
	x, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		y, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		x = binaryNode{op: op, x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseTerm() (node, error) {
	x, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("//") || p.isOp("%") {
		op := p.next().text
		y, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		x = binaryNode{op: op, x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseFactor() (node, error) {
	if p.isOp("-") || p.isOp("+") {
		op := p.next().text
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, x: x}, nil
	}
	return p.parsePower()
}

// parsePower binds tighter than unary minus on its left and looser on its
// right, so -2**2 == -4 and 2**-1 == 0.5.
func (p *parser) parsePower() (node, error) {
	x, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.isOp("**") {
		p.next()
		y, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: "**", x: x, y: y}, nil
	}
	return x, nil
}

func (p *parser) parsePostfix() (node, error) {
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("["):
			p.next()
			idx, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			x = indexNode{x: x, index: idx}
		case p.isOp("("):
			name, ok := x.(nameNode)
			if !ok {
				return nil, &SyntaxError{Pos: p.peek().pos, Msg: "only named functions can be called"}
			}
			p.next()
			args, _, err := p.parseList(")")
			if err != nil {
				return nil, err
			}
			x = callNode{fn: name.ident, pos: name.pos, args: args}
		default:
			return x, nil
		}
	}
}

// parseList parses comma separated expressions up to the closing token.
// The boolean result reports whether a trailing comma was seen.
func (p *parser) parseList(closing string) ([]node, bool, error) {
	var elems []node
	trailing := false
	for !p.isOp(closing) {
		e, err := p.parseOr()
		if err != nil {
			return nil, false, err
		}
		elems = append(elems, e)
		trailing = false
		if !p.isOp(",") {
			break
		}
		p.next()
		trailing = true
	}
	if err := p.expectOp(closing); err != nil {
		return nil, false, err
	}
	return elems, trailing, nil
}

func (p *parser) parseAtom() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber, tokString:
		return literalNode{value: t.val}, nil
	case tokName:
		switch t.text {
		case "True":
			return literalNode{value: true}, nil
		case "False":
			return literalNode{value: false}, nil
		case "None":
			return literalNode{value: nil}, nil
		case "and", "or", "not", "in", "is", "if", "else", "lambda":
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected keyword %q", t.text)}
		}
		return nameNode{ident: t.text, pos: t.pos}, nil
	case tokOp:
		switch t.text {
		case "(":
			elems, trailing, err := p.parseList(")")
			if err != nil {
				return nil, err
			}
			if len(elems) == 1 && !trailing {
				return elems[0], nil
			}
			return seqNode{elems: elems}, nil
		case "[":
			elems, _, err := p.parseList("]")
			if err != nil {
				return nil, err
			}
			return seqNode{elems: elems}, nil
		}
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected end of expression"}
}
