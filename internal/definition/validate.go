package definition

import (
	"fmt"
	"strings"

	"github.com/seantiz/taskflow/internal/model"
)

// Validate checks the structural rules of a pipeline. Unknown step actions
// are allowed; the executor skips them.
func Validate(p *model.Pipeline) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: pipeline %q has no steps", ErrInvalid, p.Name)
	}
	for i, step := range p.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("%w: step %d: %v", ErrInvalid, i+1, err)
		}
	}
	return nil
}

func validateStep(s model.Step) error {
	if s.Action == "" {
		return fmt.Errorf("action is required")
	}
	for i, c := range s.If {
		if err := validateCondition(c, fmt.Sprintf("if[%d]", i)); err != nil {
			return err
		}
	}
	for i, r := range s.Extract {
		if r.Name == "" {
			return fmt.Errorf("extract[%d]: name is required", i)
		}
		if !r.Fulltext && r.JQ == "" {
			return fmt.Errorf("extract[%d] %q: jq or fulltext is required", i, r.Name)
		}
		if !r.Type.Valid() {
			return fmt.Errorf("extract[%d] %q: unknown type %q", i, r.Name, r.Type)
		}
	}
	return nil
}

func validateCondition(c model.Condition, where string) error {
	if c.A == "" {
		return fmt.Errorf("%s: attribute path a is required", where)
	}
	if !c.Op.Valid() {
		return fmt.Errorf("%s: unknown operator %q", where, c.Op)
	}
	for i, n := range c.And {
		if err := validateCondition(n, fmt.Sprintf("%s.and[%d]", where, i)); err != nil {
			return err
		}
	}
	for i, n := range c.Or {
		if err := validateCondition(n, fmt.Sprintf("%s.or[%d]", where, i)); err != nil {
			return err
		}
	}
	return nil
}
