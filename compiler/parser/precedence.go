package parser

type assoc int

const (
	assocLeft assoc = iota
	assocRight
	assocNone
)

// Precedence levels from loosest to tightest binding.
const (
	precLowest = iota
	precSetOp
	precIf
	precOr
	precAnd
	precNot
	precEquality
	precCompare
	precLike
	precIn
	precIs
	precCoalesce
	precAdd
	precMul
	precPow
	precCast
	precUnary
	precIndex
	precPath
)

type opInfo struct {
	prec  int
	assoc assoc
}

// binaryOps is the table driving infix expression parsing.  Multi-word
// operators are keyed by their canonical spelling.
var binaryOps = map[string]opInfo{
	"UNION":     {precSetOp, assocLeft},
	"EXCEPT":    {precSetOp, assocLeft},
	"INTERSECT": {precSetOp, assocLeft},
	"IF":        {precIf, assocRight},
	"OR":        {precOr, assocLeft},
	"AND":       {precAnd, assocLeft},
	"=":         {precEquality, assocNone},
	"!=":        {precEquality, assocNone},
	"?=":        {precEquality, assocNone},
	"?!=":       {precEquality, assocNone},
	"<":         {precCompare, assocNone},
	">":         {precCompare, assocNone},
	"<=":        {precCompare, assocNone},
	">=":        {precCompare, assocNone},
	"LIKE":      {precLike, assocNone},
	"ILIKE":     {precLike, assocNone},
	"NOT LIKE":  {precLike, assocNone},
	"NOT ILIKE": {precLike, assocNone},
	"@@":        {precLike, assocNone},
	"IN":        {precIn, assocNone},
	"NOT IN":    {precIn, assocNone},
	"IS":        {precIs, assocNone},
	"IS NOT":    {precIs, assocNone},
	"??":        {precCoalesce, assocRight},
	"+":         {precAdd, assocLeft},
	"-":         {precAdd, assocLeft},
	"++":        {precAdd, assocLeft},
	"*":         {precMul, assocLeft},
	"/":         {precMul, assocLeft},
	"//":        {precMul, assocLeft},
	"%":         {precMul, assocLeft},
	"^":         {precPow, assocRight},
}

// unaryOps gives the precedence at which the operand of each prefix
// operator is parsed.
var unaryOps = map[string]int{
	"NOT":      precNot,
	"+":        precUnary,
	"-":        precUnary,
	"EXISTS":   precUnary,
	"DISTINCT": precUnary,
}

// peekBinary returns the binary operator at the current token, if any,
// along with the number of tokens it spans.
func (p *parser) peekBinary() (string, opInfo, int, bool) {
	tok := p.tok()
	var op string
	n := 1
	switch tok.kind {
	case tokOp:
		op = tok.text
	case tokKeyword:
		op = tok.value
		if op == "NOT" || op == "IS" {
			next := p.peek(1)
			if next.kind == tokKeyword {
				switch {
				case op == "NOT" && (next.value == "IN" || next.value == "LIKE" || next.value == "ILIKE"):
					op += " " + next.value
					n = 2
				case op == "IS" && next.value == "NOT":
					op = "IS NOT"
					n = 2
				}
			}
			if op == "NOT" {
				return "", opInfo{}, 0, false
			}
		}
	default:
		return "", opInfo{}, 0, false
	}
	info, ok := binaryOps[op]
	return op, info, n, ok
}

// rightPrec is the minimum precedence for the right operand of op.
func (o opInfo) rightPrec() int {
	if o.assoc == assocRight {
		return o.prec
	}
	return o.prec + 1
}
