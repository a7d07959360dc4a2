package balance

import (
	"github.com/google/cel-go/cel"

	"stockflow/internal/core/apperror"
)

// Expression is a compiled CEL predicate over a single balance.
//
// Variables: materialId, materialName, locationId, locationName (string)
// and quantity (double). Example: quantity < 10.0 && locationName.startsWith("Main").
type Expression struct {
	source  string
	program cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("materialId", cel.StringType),
		cel.Variable("materialName", cel.StringType),
		cel.Variable("locationId", cel.StringType),
		cel.Variable("locationName", cel.StringType),
		cel.Variable("quantity", cel.DoubleType),
	)
}

// CompileExpression parses and type-checks src. The result must be boolean.
func CompileExpression(src string) (*Expression, error) {
	env, err := newEnv()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	ast, iss := env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, apperror.NewValidation("invalid balance expression").
			WithDetail("expression", src).
			WithDetail("error", iss.Err().Error())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, apperror.NewValidation("balance expression must be boolean").
			WithDetail("expression", src).
			WithDetail("type", ast.OutputType().String())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, apperror.NewValidation("invalid balance expression").
			WithDetail("expression", src).
			WithDetail("error", err.Error())
	}
	return &Expression{source: src, program: prg}, nil
}

// Match evaluates the expression against b.
func (e *Expression) Match(b MaterialBalance) (bool, error) {
	out, _, err := e.program.Eval(map[string]any{
		"materialId":   b.MaterialID.String(),
		"materialName": b.MaterialName,
		"locationId":   b.LocationID.String(),
		"locationName": b.LocationName,
		"quantity":     b.Quantity.Float64(),
	})
	if err != nil {
		return false, apperror.NewValidation("balance expression failed").
			WithDetail("expression", e.source).
			WithDetail("error", err.Error())
	}
	v, ok := out.Value().(bool)
	return ok && v, nil
}

// String returns the source text.
func (e *Expression) String() string { return e.source }
