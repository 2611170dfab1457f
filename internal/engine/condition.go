package engine

import (
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/seantiz/taskflow/internal/model"
)

// maxGateFanout bounds the goroutines used for one list of sibling conditions.
const maxGateFanout = 8

var errTypeMismatch = errors.New("operand types do not support operator")

// Evaluate reports whether every condition holds against c. An empty list
// holds. Sibling conditions only read c and are evaluated concurrently.
func Evaluate(c model.Context, conds []model.Condition) bool {
	for _, ok := range evaluateAll(c, conds) {
		if !ok {
			return false
		}
	}
	return true
}

// EvaluateCondition evaluates one condition tree. A path that does not
// resolve makes the comparison false. When the comparison holds, the and
// list (if any) decides the result; when it fails, the or list (if any) does.
func EvaluateCondition(c model.Context, cond model.Condition) bool {
	base := false
	if a, ok := c.Lookup(cond.A); ok {
		base = apply(cond.Op, a, cond.B)
	}

	if base && len(cond.And) > 0 {
		return Evaluate(c, cond.And)
	}
	if !base && len(cond.Or) > 0 {
		for _, ok := range evaluateAll(c, cond.Or) {
			if ok {
				return true
			}
		}
		return false
	}
	return base
}

func evaluateAll(c model.Context, conds []model.Condition) []bool {
	results := make([]bool, len(conds))
	if len(conds) == 1 {
		results[0] = EvaluateCondition(c, conds[0])
		return results
	}

	var g errgroup.Group
	g.SetLimit(maxGateFanout)
	for i, cond := range conds {
		g.Go(func() error {
			results[i] = EvaluateCondition(c, cond)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// apply runs op on a and b. Operands the operator cannot compare are retried
// as their text forms; if that fails too the result is false.
func apply(op model.Operator, a, b model.Value) bool {
	ok, err := compare(op, a, b)
	if err == nil {
		return ok
	}
	ok, err = compare(op, model.String(a.Text()), model.String(b.Text()))
	if err != nil {
		return false
	}
	return ok
}

func compare(op model.Operator, a, b model.Value) (bool, error) {
	switch op {
	case model.OpGT:
		n, err := order(a, b)
		return n > 0, err
	case model.OpLT:
		n, err := order(a, b)
		return n < 0, err
	case model.OpEQ, model.OpIs:
		return a.Equal(b), nil
	case model.OpIsNot:
		return !a.Equal(b), nil
	case model.OpContains:
		return contains(a, b)
	default:
		return false, errTypeMismatch
	}
}

// order compares two numbers (booleans count as 0 and 1) or two strings.
func order(a, b model.Value) (int, error) {
	if x, ok := numeric(a); ok {
		if y, ok := numeric(b); ok {
			switch {
			case x > y:
				return 1, nil
			case x < y:
				return -1, nil
			default:
				return 0, nil
			}
		}
	}
	if x, ok := a.AsString(); ok {
		if y, ok := b.AsString(); ok {
			return strings.Compare(x, y), nil
		}
	}
	return 0, errTypeMismatch
}

func numeric(v model.Value) (float64, bool) {
	if n, ok := v.AsNumber(); ok {
		return n, true
	}
	if b, ok := v.AsBool(); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// contains reports whether b is a member of a: a substring of a string, an
// element of a sequence or a key of a mapping.
func contains(a, b model.Value) (bool, error) {
	switch a.Kind() {
	case model.KindString:
		s, _ := a.AsString()
		sub, ok := b.AsString()
		if !ok {
			return false, errTypeMismatch
		}
		return strings.Contains(s, sub), nil
	case model.KindList:
		l, _ := a.AsList()
		for _, e := range l {
			if e.Equal(b) {
				return true, nil
			}
		}
		return false, nil
	case model.KindMap:
		switch b.Kind() {
		case model.KindMap, model.KindList:
			return false, errTypeMismatch
		}
		key, ok := b.AsString()
		if !ok {
			return false, nil
		}
		_, found := a.Get(key)
		return found, nil
	default:
		return false, errTypeMismatch
	}
}
