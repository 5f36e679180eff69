package expr

import (
	"math"
	"strings"
)

func eval(n node, env Env) (any, error) {
	switch n := n.(type) {
	case literalNode:
		return n.value, nil
	case nameNode:
		v, ok := env.Lookup(n.ident)
		if !ok {
			return nil, &UndefinedError{Name: n.ident}
		}
		return normalize(v), nil
	case unaryNode:
		x, err := eval(n.x, env)
		if err != nil {
			return nil, err
		}
		return unary(n.op, x)
	case binaryNode:
		x, err := eval(n.x, env)
		if err != nil {
			return nil, err
		}
		y, err := eval(n.y, env)
		if err != nil {
			return nil, err
		}
		return arith(n.op, x, y)
	case boolNode:
		x, err := eval(n.x, env)
		if err != nil {
			return nil, err
		}
		if (n.op == "and") != Truthy(x) {
			return x, nil
		}
		return eval(n.y, env)
	case notNode:
		x, err := eval(n.x, env)
		if err != nil {
			return nil, err
		}
		return !Truthy(x), nil
	case compareNode:
		left, err := eval(n.first, env)
		if err != nil {
			return nil, err
		}
		for i, op := range n.ops {
			right, err := eval(n.rest[i], env)
			if err != nil {
				return nil, err
			}
			ok, err := compare(op, left, right)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
			left = right
		}
		return true, nil
	case indexNode:
		x, err := eval(n.x, env)
		if err != nil {
			return nil, err
		}
		idx, err := eval(n.index, env)
		if err != nil {
			return nil, err
		}
		return subscript(x, idx)
	case callNode:
		fn, ok := builtins[n.fn]
		if !ok {
			return nil, &UndefinedError{Name: n.fn}
		}
		args := make([]any, len(n.args))
		for i, a := range n.args {
			v, err := eval(a, env)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return fn(args)
	case seqNode:
		out := make([]any, len(n.elems))
		for i, e := range n.elems {
			v, err := eval(e, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, typeErr("", "unsupported node %T", n)
}

// normalize maps Go numeric types onto int64 / float64.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

// Truthy applies Python truthiness rules.
func Truthy(v any) bool {
	switch x := normalize(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[any]any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []any:
		return "list"
	case map[any]any, map[string]any:
		return "dict"
	}
	return "object"
}

// number returns v as int64 or float64; bools count as integers.
func number(v any) (any, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1), true
		}
		return int64(0), true
	case int64, float64:
		return x, true
	}
	return nil, false
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return math.NaN()
}

func unary(op string, x any) (any, error) {
	n, ok := number(x)
	if !ok {
		return nil, typeErr(op, "bad operand type for unary %s: '%s'", op, typeName(x))
	}
	if op == "+" {
		return n, nil
	}
	switch v := n.(type) {
	case int64:
		return -v, nil
	default:
		return -v.(float64), nil
	}
}

func arith(op string, x, y any) (any, error) {
	if op == "+" {
		if xs, ok := x.(string); ok {
			if ys, ok := y.(string); ok {
				return xs + ys, nil
			}
		}
		if xl, ok := x.([]any); ok {
			if yl, ok := y.([]any); ok {
				out := make([]any, 0, len(xl)+len(yl))
				return append(append(out, xl...), yl...), nil
			}
		}
	}
	a, aok := number(x)
	b, bok := number(y)
	if !aok || !bok {
		return nil, typeErr(op, "unsupported operand types: '%s' and '%s'", typeName(x), typeName(y))
	}
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return intArith(op, ai, bi)
	}
	return floatArith(op, toFloat(a), toFloat(b))
}

func intArith(op string, a, b int64) (any, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, typeErr(op, "division by zero")
		}
		return float64(a) / float64(b), nil
	case "//":
		if b == 0 {
			return nil, typeErr(op, "integer division by zero")
		}
		q := a / b
		if a%b != 0 && (a < 0) != (b < 0) {
			q--
		}
		return q, nil
	case "%":
		if b == 0 {
			return nil, typeErr(op, "integer modulo by zero")
		}
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	case "**":
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}
		result := int64(1)
		base := a
		for e := b; e > 0; e >>= 1 {
			if e&1 == 1 {
				result *= base
			}
			base *= base
		}
		return result, nil
	}
	return nil, typeErr(op, "unknown operator")
}

func floatArith(op string, a, b float64) (any, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, typeErr(op, "float division by zero")
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return nil, typeErr(op, "float floor division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, typeErr(op, "float modulo")
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	case "**":
		return math.Pow(a, b), nil
	}
	return nil, typeErr(op, "unknown operator")
}

func compare(op string, x, y any) (bool, error) {
	switch op {
	case "==":
		return equal(x, y), nil
	case "!=":
		return !equal(x, y), nil
	case "is":
		return identical(x, y), nil
	case "is not":
		return !identical(x, y), nil
	case "in":
		return contains(y, x)
	case "not in":
		ok, err := contains(y, x)
		return !ok, err
	}
	if a, ok := number(x); ok {
		if b, ok := number(y); ok {
			return numCompare(op, a, b), nil
		}
	}
	c, err := order(op, x, y)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, typeErr(op, "unknown comparison")
}

// numCompare orders two numbers; any comparison involving NaN is false.
func numCompare(op string, a, b any) bool {
	if isInt(a) && isInt(b) {
		ai, bi := a.(int64), b.(int64)
		switch op {
		case "<":
			return ai < bi
		case "<=":
			return ai <= bi
		case ">":
			return ai > bi
		}
		return ai >= bi
	}
	af, bf := toFloat(a), toFloat(b)
	switch op {
	case "<":
		return af < bf
	case "<=":
		return af <= bf
	case ">":
		return af > bf
	}
	return af >= bf
}

func identical(x, y any) bool {
	switch x.(type) {
	case nil, bool:
		return x == y
	}
	return equal(x, y)
}

func equal(x, y any) bool {
	if a, ok := number(x); ok {
		b, ok := number(y)
		if !ok {
			return false
		}
		return toFloat(a) == toFloat(b) || (isInt(a) && isInt(b) && a.(int64) == b.(int64))
	}
	switch xv := x.(type) {
	case nil:
		return y == nil
	case string:
		yv, ok := y.(string)
		return ok && xv == yv
	case []any:
		yv, ok := y.([]any)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for i := range xv {
			if !equal(xv[i], yv[i]) {
				return false
			}
		}
		return true
	case map[any]any:
		yv, ok := y.(map[any]any)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for k, v := range xv {
			w, ok := yv[k]
			if !ok || !equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

func isInt(v any) bool {
	_, ok := v.(int64)
	return ok
}

func order(op string, x, y any) (int, error) {
	if a, ok := number(x); ok {
		if b, ok := number(y); ok {
			if isInt(a) && isInt(b) {
				ai, bi := a.(int64), b.(int64)
				switch {
				case ai < bi:
					return -1, nil
				case ai > bi:
					return 1, nil
				}
				return 0, nil
			}
			af, bf := toFloat(a), toFloat(b)
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			}
			return 0, nil
		}
	}
	if xs, ok := x.(string); ok {
		if ys, ok := y.(string); ok {
			return strings.Compare(xs, ys), nil
		}
	}
	if xl, ok := x.([]any); ok {
		if yl, ok := y.([]any); ok {
			for i := 0; i < len(xl) && i < len(yl); i++ {
				if equal(xl[i], yl[i]) {
					continue
				}
				return order(op, xl[i], yl[i])
			}
			return len(xl) - len(yl), nil
		}
	}
	return 0, typeErr(op, "'%s' not supported between instances of '%s' and '%s'", op, typeName(x), typeName(y))
}

func contains(container, item any) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, typeErr("in", "'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case []any:
		for _, e := range c {
			if equal(e, item) {
				return true, nil
			}
		}
		return false, nil
	case map[any]any:
		for k := range c {
			if equal(k, item) {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		s, ok := item.(string)
		if !ok {
			return false, nil
		}
		_, found := c[s]
		return found, nil
	}
	return false, typeErr("in", "argument of type '%s' is not iterable", typeName(container))
}

func subscript(x, idx any) (any, error) {
	switch c := x.(type) {
	case []any:
		i, err := seqIndex(idx, len(c))
		if err != nil {
			return nil, err
		}
		return c[i], nil
	case string:
		i, err := seqIndex(idx, len(c))
		if err != nil {
			return nil, err
		}
		return c[i : i+1], nil
	case map[any]any:
		for k, v := range c {
			if equal(k, idx) {
				return v, nil
			}
		}
		return nil, typeErr("[]", "key error: %v", idx)
	case map[string]any:
		s, _ := idx.(string)
		v, ok := c[s]
		if !ok {
			return nil, typeErr("[]", "key error: %v", idx)
		}
		return normalize(v), nil
	}
	return nil, typeErr("[]", "'%s' object is not subscriptable", typeName(x))
}

func seqIndex(idx any, length int) (int, error) {
	var i int64
	switch v := idx.(type) {
	case int64:
		i = v
	case bool:
		if v {
			i = 1
		}
	default:
		return 0, typeErr("[]", "indices must be integers, not %s", typeName(idx))
	}
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, typeErr("[]", "index out of range")
	}
	return int(i), nil
}
