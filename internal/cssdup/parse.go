package cssdup

import (
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type kind int

const (
	kindRule kind = iota
	kindAtRule
	kindDecl
	kindComment
	kindOther
)

func (k kind) String() string {
	switch k {
	case kindRule:
		return "rule"
	case kindAtRule:
		return "atrule"
	case kindDecl:
		return "decl"
	case kindComment:
		return "comment"
	default:
		return "other"
	}
}

// node is one statement of the stylesheet. The byte range [start, end)
// covers the statement, its leading whitespace and its terminating
// semicolon, so dropping a node never leaves a dangling separator.
type node struct {
	kind      kind
	start     int
	end       int
	name      string // selector, at-rule name, property, or raw text
	params    string // at-rule prelude or declaration value
	important bool
	hasBlock  bool
	children  []*node
	removed   bool
}

type token struct {
	tt    css.TokenType
	start int
	end   int
}

// tokenize lexes src and records the byte offsets of every token. The
// lexer must account for every input byte; anything else is reported as
// an error so callers never rewrite a document they did not fully read.
func tokenize(src string) ([]token, error) {
	l := css.NewLexer(parse.NewInputString(src))
	var tokens []token
	offset := 0
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, fmt.Errorf("tokenize stylesheet: %w", err)
			}
			break
		}
		tokens = append(tokens, token{tt: tt, start: offset, end: offset + len(data)})
		offset += len(data)
	}
	if offset != len(src) {
		return nil, fmt.Errorf("tokenize stylesheet: consumed %d of %d bytes", offset, len(src))
	}
	return tokens, nil
}

type parser struct {
	src    string
	tokens []token
	pos    int
}

func parseStylesheet(src string) ([]*node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, tokens: tokens}
	return p.parseBlock(true), nil
}

func (p *parser) eof() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) text(from, to int) string {
	return strings.TrimSpace(p.src[from:to])
}

// offset returns the byte offset of the current token, or the end of the
// input when all tokens are consumed.
func (p *parser) offset() int {
	if p.eof() {
		return len(p.src)
	}
	return p.peek().start
}

// parseBlock reads statements until a closing brace (left unconsumed) or
// the end of input.
func (p *parser) parseBlock(topLevel bool) []*node {
	var nodes []*node
	for {
		start := p.offset()
		for !p.eof() && p.peek().tt == css.WhitespaceToken {
			p.pos++
		}
		if p.eof() {
			return nodes
		}

		tok := p.peek()
		switch tok.tt {
		case css.RightBraceToken:
			if !topLevel {
				return nodes
			}
			p.pos++
			nodes = append(nodes, p.other(start, tok.start, tok.end))
		case css.CommentToken:
			p.pos++
			nodes = append(nodes, &node{
				kind:  kindComment,
				start: start,
				end:   tok.end,
				name:  p.src[tok.start:tok.end],
			})
		case css.SemicolonToken, css.CDOToken, css.CDCToken:
			p.pos++
			nodes = append(nodes, p.other(start, tok.start, tok.end))
		case css.AtKeywordToken:
			nodes = append(nodes, p.parseAtRule(start))
		default:
			nodes = append(nodes, p.parseRuleOrDecl(start, topLevel))
		}
	}
}

func (p *parser) other(start, from, to int) *node {
	return &node{kind: kindOther, start: start, end: to, name: p.text(from, to)}
}

// scanPrelude advances to the first '{', ';' or '}' outside parentheses and
// brackets and returns the index of that token, or len(tokens) at the end.
func (p *parser) scanPrelude() int {
	depth := 0
	for ; !p.eof(); p.pos++ {
		switch p.peek().tt {
		case css.LeftParenthesisToken, css.LeftBracketToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.LeftBraceToken, css.SemicolonToken, css.RightBraceToken:
			if depth == 0 {
				return p.pos
			}
		}
	}
	return p.pos
}

// parseBody reads a '{' block starting at the current token, consuming the
// closing brace when present, and returns the children and end offset.
func (p *parser) parseBody() ([]*node, int) {
	p.pos++ // '{'
	children := p.parseBlock(false)
	if p.eof() {
		return children, len(p.src)
	}
	end := p.peek().end
	p.pos++ // '}'
	return children, end
}

func (p *parser) parseAtRule(start int) *node {
	at := p.peek()
	p.pos++
	n := &node{
		kind:  kindAtRule,
		start: start,
		name:  strings.TrimPrefix(p.src[at.start:at.end], "@"),
	}

	preludeStart := p.offset()
	stop := p.scanPrelude()
	preludeEnd := p.offset()
	n.params = p.text(preludeStart, preludeEnd)

	switch {
	case stop >= len(p.tokens):
		n.end = len(p.src)
	case p.tokens[stop].tt == css.LeftBraceToken:
		n.hasBlock = true
		n.children, n.end = p.parseBody()
	case p.tokens[stop].tt == css.SemicolonToken:
		n.end = p.tokens[stop].end
		p.pos++
	default:
		// '}' closes the enclosing block
		n.end = preludeEnd
	}
	return n
}

func (p *parser) parseRuleOrDecl(start int, topLevel bool) *node {
	first := p.pos
	preludeStart := p.offset()
	stop := p.scanPrelude()
	preludeEnd := p.offset()

	if stop < len(p.tokens) && p.tokens[stop].tt == css.LeftBraceToken {
		n := &node{
			kind:     kindRule,
			start:    start,
			name:     p.text(preludeStart, preludeEnd),
			hasBlock: true,
		}
		n.children, n.end = p.parseBody()
		return n
	}

	end := preludeEnd
	if stop < len(p.tokens) && p.tokens[stop].tt == css.SemicolonToken {
		end = p.tokens[stop].end
		p.pos++
	}
	if topLevel {
		return p.other(start, preludeStart, end)
	}
	return p.declaration(start, end, p.tokens[first:stop])
}

// declaration splits "prop: value !important" tokens. Statements without a
// colon are kept as opaque nodes.
func (p *parser) declaration(start, end int, tokens []token) *node {
	colon := -1
	for i, t := range tokens {
		if t.tt == css.ColonToken {
			colon = i
			break
		}
	}
	if colon < 1 {
		return p.other(start, tokens[0].start, end)
	}

	n := &node{
		kind:  kindDecl,
		start: start,
		end:   end,
		name:  p.text(tokens[0].start, tokens[colon].start),
	}

	value := tokens[colon+1:]
	last := len(value) - 1
	for last >= 0 && (value[last].tt == css.WhitespaceToken || value[last].tt == css.CommentToken) {
		last--
	}
	if last >= 1 && value[last].tt == css.IdentToken &&
		strings.EqualFold(p.src[value[last].start:value[last].end], "important") {
		bang := last - 1
		for bang >= 0 && value[bang].tt == css.WhitespaceToken {
			bang--
		}
		if bang >= 0 && value[bang].tt == css.DelimToken && p.src[value[bang].start:value[bang].end] == "!" {
			n.important = true
			value = value[:bang]
		}
	}

	if len(value) > 0 {
		n.params = p.text(value[0].start, value[len(value)-1].end)
	}
	return n
}
