package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LLMPrefix marks capabilities that serve language-model requests.
const LLMPrefix = "LLM::"

// ErrNoCapability is returned when no suitable capability is online.
var ErrNoCapability = errors.New("no suitable capability online")

// Picker chooses the capability a query is submitted to. requested and lang
// are the model and language hints from the step; a Picker may ignore them.
type Picker interface {
	Pick(ctx context.Context, requested, lang string) (string, error)
}

// FirstPicker picks the first online LLM capability regardless of the
// requested model.
type FirstPicker struct {
	lister CapabilityLister
}

// NewFirstPicker creates a FirstPicker backed by l.
func NewFirstPicker(l CapabilityLister) *FirstPicker {
	return &FirstPicker{lister: l}
}

// Pick implements Picker.
func (p *FirstPicker) Pick(ctx context.Context, _, _ string) (string, error) {
	caps, err := onlineLLMs(ctx, p.lister)
	if err != nil {
		return "", err
	}
	return caps[0], nil
}

// ExactPicker picks LLMPrefix+requested when it is online and otherwise
// falls back to the first online LLM capability.
type ExactPicker struct {
	lister CapabilityLister
}

// NewExactPicker creates an ExactPicker backed by l.
func NewExactPicker(l CapabilityLister) *ExactPicker {
	return &ExactPicker{lister: l}
}

// Pick implements Picker.
func (p *ExactPicker) Pick(ctx context.Context, requested, _ string) (string, error) {
	caps, err := onlineLLMs(ctx, p.lister)
	if err != nil {
		return "", err
	}
	if requested != "" {
		want := requested
		if !strings.HasPrefix(want, LLMPrefix) {
			want = LLMPrefix + requested
		}
		for _, c := range caps {
			if c == want {
				return c, nil
			}
		}
	}
	return caps[0], nil
}

// onlineLLMs lists online capabilities carrying LLMPrefix, in backend order.
func onlineLLMs(ctx context.Context, l CapabilityLister) ([]string, error) {
	all, err := l.Capabilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	var caps []string
	for _, c := range all {
		if strings.HasPrefix(c, LLMPrefix) {
			caps = append(caps, c)
		}
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("%w: %d capabilities online, none with prefix %q", ErrNoCapability, len(all), LLMPrefix)
	}
	return caps, nil
}
