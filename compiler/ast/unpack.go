package ast

import (
	"encoding/json"
	"errors"

	"github.com/brimdata/edgeql/pkg/unpack"
)

var unpacker = unpack.New(
	AliasedExpr{},
	AlterObjectType{},
	Array{},
	BigintConstant{},
	BinOp{},
	BooleanConstant{},
	BytesConstant{},
	CreateModule{},
	CreateObjectType{},
	CreatePointer{},
	DecimalConstant{},
	DeleteQuery{},
	DropModule{},
	DropObjectType{},
	ExprRoot{},
	FloatConstant{},
	ForQuery{},
	FuncRef{},
	FunctionCall{},
	GroupQuery{},
	IfElse{},
	Index{},
	Indirection{},
	InsertQuery{},
	IntegerConstant{},
	InternalGroupQuery{},
	InterpolationFragment{},
	Kwarg{},
	ModuleAliasDecl{},
	NamedTuple{},
	ObjectRef{},
	Parameter{},
	Path{},
	Ptr{},
	SelectQuery{},
	Set{},
	Shape{},
	ShapeElement{},
	Slice{},
	SortExpr{},
	SpecialAnchor{},
	Splat{},
	StringConstant{},
	StringInterpolation{},
	Tuple{},
	TupleElement{},
	TypeCast{},
	TypeIntersection{},
	TypeName{},
	TypeOp{},
	UnaryOp{},
	UnlessConflict{},
	UpdateQuery{},
	Window{},
)

func UnpackJSON(buf []byte) (interface{}, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	var result interface{}
	if err := unpacker.Unmarshal(buf, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UnpackJSONAsStatement transforms a JSON representation of a statement
// into an ast.Statement.
func UnpackJSONAsStatement(buf []byte) (Statement, error) {
	result, err := UnpackJSON(buf)
	if result == nil || err != nil {
		return nil, err
	}
	stmt, ok := result.(Statement)
	if !ok {
		return nil, errors.New("JSON object is not a statement")
	}
	return stmt, nil
}

// UnpackJSONAsExpr transforms a JSON representation of an expression into
// an ast.Expr.
func UnpackJSONAsExpr(buf []byte) (Expr, error) {
	result, err := UnpackJSON(buf)
	if result == nil || err != nil {
		return nil, err
	}
	e, ok := result.(Expr)
	if !ok {
		return nil, errors.New("JSON object is not an expression")
	}
	return e, nil
}

// Copy returns a deep copy of the statement in.
func Copy(in Statement) Statement {
	b, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}
	out, err := UnpackJSONAsStatement(b)
	if err != nil {
		panic(err)
	}
	return out
}

// CopyExpr returns a deep copy of the expression in.
func CopyExpr(in Expr) Expr {
	b, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}
	out, err := UnpackJSONAsExpr(b)
	if err != nil {
		panic(err)
	}
	return out
}
