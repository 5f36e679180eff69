package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type builtin func(args []any) (any, error)

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"abs":   builtinAbs,
		"min":   func(args []any) (any, error) { return extreme("min", args, -1) },
		"max":   func(args []any) (any, error) { return extreme("max", args, 1) },
		"len":   builtinLen,
		"round": builtinRound,
		"int":   builtinInt,
		"float": builtinFloat,
		"bool":  builtinBool,
		"str":   builtinStr,
	}
}

func arity(name string, args []any, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return typeErr(name, "takes %d to %d arguments (%d given)", lo, hi, len(args))
	}
	return nil
}

func builtinAbs(args []any) (any, error) {
	if err := arity("abs", args, 1, 1); err != nil {
		return nil, err
	}
	n, ok := number(args[0])
	if !ok {
		return nil, typeErr("abs", "bad operand type: '%s'", typeName(args[0]))
	}
	if i, ok := n.(int64); ok {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	return math.Abs(n.(float64)), nil
}

func extreme(name string, args []any, sign int) (any, error) {
	items := args
	if len(args) == 1 {
		seq, ok := args[0].([]any)
		if !ok {
			return nil, typeErr(name, "'%s' object is not iterable", typeName(args[0]))
		}
		items = seq
	}
	if len(items) == 0 {
		return nil, typeErr(name, "arg is an empty sequence")
	}
	best := items[0]
	for _, it := range items[1:] {
		op := ">"
		if sign < 0 {
			op = "<"
		}
		better, err := compare(op, it, best)
		if err != nil {
			return nil, err
		}
		if better {
			best = it
		}
	}
	return best, nil
}

func builtinLen(args []any) (any, error) {
	if err := arity("len", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case string:
		return int64(len(v)), nil
	case []any:
		return int64(len(v)), nil
	case map[any]any:
		return int64(len(v)), nil
	case map[string]any:
		return int64(len(v)), nil
	}
	return nil, typeErr("len", "object of type '%s' has no len()", typeName(args[0]))
}

// builtinRound rounds half to even like Python 3.
func builtinRound(args []any) (any, error) {
	if err := arity("round", args, 1, 2); err != nil {
		return nil, err
	}
	n, ok := number(args[0])
	if !ok {
		return nil, typeErr("round", "type %s doesn't define __round__", typeName(args[0]))
	}
	if len(args) == 1 || args[1] == nil {
		if i, ok := n.(int64); ok {
			return i, nil
		}
		return int64(math.RoundToEven(n.(float64))), nil
	}
	digits, ok := args[1].(int64)
	if !ok {
		return nil, typeErr("round", "ndigits must be an integer")
	}
	if i, ok := n.(int64); ok && digits >= 0 {
		return i, nil
	}
	scale := math.Pow(10, float64(digits))
	return math.RoundToEven(toFloat(n)*scale) / scale, nil
}

func builtinInt(args []any) (any, error) {
	if err := arity("int", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &EvaluationError{Operator: "int", Message: fmt.Sprintf("invalid literal %q", v), Err: err}
		}
		return i, nil
	}
	n, ok := number(args[0])
	if !ok {
		return nil, typeErr("int", "argument must be a string or a number, not '%s'", typeName(args[0]))
	}
	if f, ok := n.(float64); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, typeErr("int", "cannot convert float %v to integer", f)
		}
		return int64(math.Trunc(f)), nil
	}
	return n, nil
}

func builtinFloat(args []any) (any, error) {
	if err := arity("float", args, 1, 1); err != nil {
		return nil, err
	}
	if s, ok := args[0].(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, &EvaluationError{Operator: "float", Message: fmt.Sprintf("could not convert %q", s), Err: err}
		}
		return f, nil
	}
	n, ok := number(args[0])
	if !ok {
		return nil, typeErr("float", "argument must be a string or a number, not '%s'", typeName(args[0]))
	}
	return toFloat(n), nil
}

func builtinBool(args []any) (any, error) {
	if err := arity("bool", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return false, nil
	}
	return Truthy(args[0]), nil
}

func builtinStr(args []any) (any, error) {
	if err := arity("str", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case string:
		return v, nil
	case nil:
		return "None", nil
	case bool:
		if v {
			return "True", nil
		}
		return "False", nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	}
	return fmt.Sprint(args[0]), nil
}
