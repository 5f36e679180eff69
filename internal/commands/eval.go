package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tripwire/internal/cacheproto"
	"github.com/dwsmith1983/tripwire/internal/engine"
	"github.com/dwsmith1983/tripwire/internal/expr"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// NewEvalCmd creates the eval command.
func NewEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <formula> [key=value...]",
		Short: "Evaluate a watch formula against literal values",
		Long: `Evaluates a condition formula the way the watchdog does. Values are cache
literals, e.g.  tripwire eval "t_value > 5 and t_status[0] == ok" t/value=6 "t/status=(200, 'idle')"`,
		Example: `  tripwire eval "abs(p_value - 1) < 0.1" p_value=1.05`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.OutOrStdout(), args[0], args[1:])
		},
	}
}

// evaluate compiles formula and evaluates it in a namespace built from
// key=value assignments on top of the status constants.
func evaluate(formula string, assignments []string) (any, error) {
	e, err := expr.Compile(formula)
	if err != nil {
		return nil, err
	}
	env := make(expr.Map, len(types.StatusConstants)+len(assignments))
	for name, v := range types.StatusConstants {
		env[name] = v
	}
	for _, a := range assignments {
		key, raw, err := parseAssignment(a)
		if err != nil {
			return nil, err
		}
		v, err := cacheproto.Decode(raw)
		if err != nil {
			return nil, err
		}
		env[engine.NormalizeKey("", key)] = v
	}
	return e.Eval(env)
}

func runEval(w io.Writer, formula string, assignments []string) error {
	v, err := evaluate(formula, assignments)
	if err != nil {
		return err
	}
	rendered, err := cacheproto.Encode(v)
	if err != nil {
		rendered = fmt.Sprint(v)
	}
	fmt.Fprintf(w, "%s\n", rendered)
	if expr.Truthy(v) {
		_, _ = color.New(color.FgRed, color.Bold).Fprintln(w, "condition triggered")
	} else {
		_, _ = color.New(color.FgGreen).Fprintln(w, "condition not triggered")
	}
	return nil
}
