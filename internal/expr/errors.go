package expr

import "fmt"

// SyntaxError reports a formula that cannot be parsed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// UndefinedError reports a name missing from the namespace during evaluation.
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("name %q is not defined", e.Name)
}

// EvaluationError reports any other failure while evaluating a formula,
// such as a type mismatch or a division by zero.
type EvaluationError struct {
	Operator string
	Message  string
	Err      error
}

func (e *EvaluationError) Error() string {
	msg := e.Message
	if e.Operator != "" {
		msg = fmt.Sprintf("%s: %s", e.Operator, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func typeErr(op string, format string, args ...any) error {
	return &EvaluationError{Operator: op, Message: fmt.Sprintf(format, args...)}
}
