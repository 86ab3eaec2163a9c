package compiler

import "github.com/buzzcut-s/clocks/lang/token"

// precedence orders binary operators from loosest to tightest binding, used
// by parsePrecedence to decide how far an expression should keep consuming
// infix operators (spec §4.4's Pratt table).
type precedence uint8

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type (
	prefixFn func(c *Compiler, canAssign bool)
	infixFn  func(c *Compiler, canAssign bool)
)

type parseRule struct {
	prefix     prefixFn
	infix      infixFn
	precedence precedence
}

var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
		token.LPAREN:   {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		token.DOT:      {infix: (*Compiler).dot, precedence: precCall},
		token.MINUS:    {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		token.PLUS:     {infix: (*Compiler).binary, precedence: precTerm},
		token.SLASH:    {infix: (*Compiler).binary, precedence: precFactor},
		token.STAR:     {infix: (*Compiler).binary, precedence: precFactor},
		token.BANG:     {prefix: (*Compiler).unary},
		token.BANG_EQ:  {infix: (*Compiler).binary, precedence: precEquality},
		token.EQ_EQ:    {infix: (*Compiler).binary, precedence: precEquality},
		token.GT:       {infix: (*Compiler).binary, precedence: precComparison},
		token.GT_EQ:    {infix: (*Compiler).binary, precedence: precComparison},
		token.LT:       {infix: (*Compiler).binary, precedence: precComparison},
		token.LT_EQ:    {infix: (*Compiler).binary, precedence: precComparison},
		token.IDENT:    {prefix: (*Compiler).variable},
		token.STRING:   {prefix: (*Compiler).string},
		token.NUMBER:   {prefix: (*Compiler).number},
		token.AND:      {infix: (*Compiler).and, precedence: precAnd},
		token.OR:       {infix: (*Compiler).or, precedence: precOr},
		token.FALSE:    {prefix: (*Compiler).literal},
		token.NIL:      {prefix: (*Compiler).literal},
		token.TRUE:     {prefix: (*Compiler).literal},
		token.THIS:     {prefix: (*Compiler).this},
		token.SUPER:    {prefix: (*Compiler).super},
	}
}

func ruleFor(kind token.Kind) parseRule { return rules[kind] }
