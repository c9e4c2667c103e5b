package service

import (
	"fmt"
	"math"
	"strconv"
	"unicode"

	"github.com/burrowlabs/burrow/internal/domain"
)

// maxExpressionChars bounds calculator input length.
const maxExpressionChars = 200

// Calculator evaluates pure arithmetic expressions. The grammar covers
// numbers, + - * / ^, and parentheses; there are no identifiers, no
// function calls, and no name resolution of any kind, so nothing in an
// expression can reach beyond the arithmetic itself.
type Calculator struct{}

// Name returns the registered tool name.
func (Calculator) Name() domain.ToolName {
	return domain.ToolCalculator
}

// Evaluate parses and computes the expression. Characters outside the
// grammar reject the whole expression before anything is evaluated.
func (Calculator) Evaluate(expression string) (string, error) {
	if len([]rune(expression)) > maxExpressionChars {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeToolValidation,
			fmt.Sprintf("expression longer than %d characters", maxExpressionChars), domain.ErrExpressionTooLong)
	}

	tokens, err := lexExpression(expression)
	if err != nil {
		return "", err
	}

	parser := &exprParser{tokens: tokens}
	value, err := parser.parseExpr()
	if err != nil {
		return "", err
	}
	if parser.pos != len(parser.tokens) {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeToolValidation,
			"unexpected trailing input", domain.ErrInvalidToolArgs)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", fmt.Errorf("expression result is not finite")
	}

	return formatCalcResult(value), nil
}

type exprTokenKind int

const (
	tokNumber exprTokenKind = iota
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokCaret
	tokLParen
	tokRParen
)

type exprToken struct {
	kind  exprTokenKind
	value float64
}

func lexExpression(expression string) ([]exprToken, error) {
	var tokens []exprToken
	runes := []rune(expression)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r >= '0' && r <= '9' || r == '.':
			j := i
			for j < len(runes) && (runes[j] >= '0' && runes[j] <= '9' || runes[j] == '.') {
				j++
			}
			literal := string(runes[i:j])
			value, err := strconv.ParseFloat(literal, 64)
			if err != nil {
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeToolValidation,
					fmt.Sprintf("malformed number %q", literal), domain.ErrInvalidToolArgs)
			}
			tokens = append(tokens, exprToken{kind: tokNumber, value: value})
			i = j
		case r == '+':
			tokens = append(tokens, exprToken{kind: tokPlus})
			i++
		case r == '-':
			tokens = append(tokens, exprToken{kind: tokMinus})
			i++
		case r == '*':
			tokens = append(tokens, exprToken{kind: tokStar})
			i++
		case r == '/':
			tokens = append(tokens, exprToken{kind: tokSlash})
			i++
		case r == '^':
			tokens = append(tokens, exprToken{kind: tokCaret})
			i++
		case r == '(':
			tokens = append(tokens, exprToken{kind: tokLParen})
			i++
		case r == ')':
			tokens = append(tokens, exprToken{kind: tokRParen})
			i++
		default:
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeToolValidation,
				fmt.Sprintf("character %q is not part of the arithmetic grammar", r), domain.ErrForbiddenToken)
		}
	}

	if len(tokens) == 0 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeToolValidation,
			"expression is empty", domain.ErrInvalidToolArgs)
	}
	return tokens, nil
}

// exprParser is a recursive-descent evaluator over the lexed tokens.
// Precedence from loosest to tightest: additive, multiplicative, unary
// minus, exponentiation. ^ is right-associative and binds tighter than
// unary minus, so -2^2 is -4.
type exprParser struct {
	tokens []exprToken
	pos    int
}

func (p *exprParser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.match(tokPlus):
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			value += rhs
		case p.match(tokMinus):
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			value -= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	value, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.match(tokStar):
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			value *= rhs
		case p.match(tokSlash):
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, domain.ErrDivisionByZero
			}
			value /= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.match(tokMinus) {
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -value, nil
	}
	if p.match(tokPlus) {
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	value, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	if p.match(tokCaret) {
		// The exponent may itself carry a sign, as in 2^-3.
		exponent, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(value, exponent), nil
	}
	return value, nil
}

func (p *exprParser) parseAtom() (float64, error) {
	if p.pos >= len(p.tokens) {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeToolValidation,
			"expression ends unexpectedly", domain.ErrInvalidToolArgs)
	}
	tok := p.tokens[p.pos]
	switch tok.kind {
	case tokNumber:
		p.pos++
		return tok.value, nil
	case tokLParen:
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if !p.match(tokRParen) {
			return 0, domain.NewDomainErrorWithCause(domain.ErrCodeToolValidation,
				"missing closing parenthesis", domain.ErrInvalidToolArgs)
		}
		return value, nil
	default:
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeToolValidation,
			"unexpected operator", domain.ErrInvalidToolArgs)
	}
}

func (p *exprParser) match(kind exprTokenKind) bool {
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == kind {
		p.pos++
		return true
	}
	return false
}

func formatCalcResult(value float64) string {
	if value == math.Trunc(value) && math.Abs(value) < 1e15 {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'g', 10, 64)
}
