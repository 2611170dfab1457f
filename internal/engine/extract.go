package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/seantiz/taskflow/internal/model"
)

// Extract applies rules to a step response and returns the context entries
// they produce. In JSON mode the response is parsed first; a parse failure
// returns ErrExtraction and no entries at all. Rules whose source is missing
// produce nothing.
func Extract(response string, rules []model.ExtractRule, jsonMode bool) (map[string]model.Value, error) {
	var parsed model.Value
	if jsonMode {
		v, err := model.ParseJSON([]byte(response))
		if err != nil {
			return nil, fmt.Errorf("%w: parse json response: %v", ErrExtraction, err)
		}
		parsed = v
	}

	updates := make(map[string]model.Value, len(rules))
	for _, rule := range rules {
		var (
			v  model.Value
			ok bool
		)
		switch {
		case rule.Fulltext:
			v, ok = model.String(response), true
		case rule.JQ != "" && jsonMode:
			v, ok = selectPath(parsed, rule.JQ)
		}
		if !ok {
			continue
		}
		updates[rule.Name] = Coerce(v, rule.Type)
	}
	return updates, nil
}

// selectPath resolves a jq-style path: "." is the whole document, otherwise
// leading and trailing dots are dropped and the rest is a dot-path.
func selectPath(doc model.Value, path string) (model.Value, bool) {
	if path == "." {
		return doc, !doc.IsNull()
	}
	return doc.Lookup(strings.Trim(path, "."))
}

// Coerce converts v to the rule type. Numbers that cannot be parsed become 0;
// booleans are true for the text forms "true", "1" and "yes". Other types
// leave v unchanged.
func Coerce(v model.Value, t model.ValueType) model.Value {
	switch t {
	case model.TypeNumber:
		return model.Number(toNumber(v))
	case model.TypeBoolean:
		switch strings.ToLower(v.Text()) {
		case "true", "1", "yes":
			return model.Bool(true)
		default:
			return model.Bool(false)
		}
	default:
		return v
	}
}

func toNumber(v model.Value) float64 {
	switch v.Kind() {
	case model.KindNumber:
		n, _ := v.AsNumber()
		return n
	case model.KindBool:
		if b, _ := v.AsBool(); b {
			return 1
		}
		return 0
	case model.KindString:
		s, _ := v.AsString()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0
		}
		return f
	default:
		return 0
	}
}
