// Package expr compiles and evaluates watch formulas.
//
// Formulas use a Python-compatible subset: literals, names, arithmetic,
// chained comparisons, membership tests, subscripts, the boolean operators
// and a handful of builtin functions. Names are resolved case-insensitively
// against an Env at evaluation time; an absent name yields *UndefinedError.
package expr

import (
	"sort"
	"strings"
)

// Env resolves names during evaluation.
type Env interface {
	Lookup(name string) (any, bool)
}

// Map is an Env backed by a map with lower-cased keys.
type Map map[string]any

// Lookup implements Env.
func (m Map) Lookup(name string) (any, bool) {
	v, ok := m[lower(name)]
	return v, ok
}

// SetupEnv is the namespace of setup-scope formulas: every name is true
// exactly when a setup of that name is loaded.
type SetupEnv map[string]struct{}

// NewSetupEnv builds a SetupEnv from a list of setup names.
func NewSetupEnv(setups []string) SetupEnv {
	env := make(SetupEnv, len(setups))
	for _, s := range setups {
		env[lower(s)] = struct{}{}
	}
	return env
}

// Lookup implements Env; it never reports a missing name.
func (s SetupEnv) Lookup(name string) (any, bool) {
	_, ok := s[lower(name)]
	return ok, true
}

// Expr is a compiled formula.
type Expr struct {
	src   string
	root  node
	names []string
}

// Compile parses src into an Expr.
func Compile(src string) (*Expr, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	freeNames(root, set)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return &Expr{src: src, root: root, names: names}, nil
}

// String returns the formula source.
func (e *Expr) String() string { return e.src }

// Names returns the lower-cased free variables of the formula, sorted.
func (e *Expr) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Eval evaluates the formula in env.
func (e *Expr) Eval(env Env) (any, error) {
	return eval(e.root, env)
}

// EvalBool evaluates the formula and applies truthiness to the result.
func (e *Expr) EvalBool(env Env) (bool, error) {
	v, err := e.Eval(env)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

func lower(s string) string { return strings.ToLower(s) }
