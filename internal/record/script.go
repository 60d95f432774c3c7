// Package record drives a scripted procedure against a headless virtual
// terminal and produces a deterministic dump. Grounded on
// internal/config/config.go's yaml.v3 loading pattern, generalized from a
// static config document to an ordered script with a polled wait step.
package record

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Default dimensions and wait timing, per the script schema.
const (
	DefaultCols       = 80
	DefaultRows       = 24
	DefaultScrollback = 24
	DefaultTimeoutMs  = 10000
	DefaultPollMs     = 50
)

// Script is the parsed record script: the command to spawn plus an
// ordered list of steps to execute against it.
type Script struct {
	Command    []string          `yaml:"command"`
	Env        map[string]string `yaml:"env"`
	Cols       int               `yaml:"cols"`
	Rows       int               `yaml:"rows"`
	Scrollback int               `yaml:"scrollback"`
	Steps      []Step            `yaml:"steps"`
}

// CursorCond waits until the cursor's visibility matches Visible.
type CursorCond struct {
	Visible bool `yaml:"visible"`
}

// WaitCond is a step's wait condition: exactly one of Content, Stable, or
// Cursor is set.
type WaitCond struct {
	Content   string      `yaml:"content"`
	StableMs  int64       `yaml:"stable"`
	Cursor    *CursorCond `yaml:"cursor"`
	TimeoutMs int64       `yaml:"timeout_ms"`
	PollMs    int64       `yaml:"poll_ms"`
}

// StepKind discriminates the three step shapes a record script may use.
type StepKind int

const (
	StepInput StepKind = iota
	StepWait
	StepSnapshot
)

// Step is one script step: input (write bytes), wait (poll a condition),
// or the literal "snapshot" (capture and persist).
type Step struct {
	Kind  StepKind
	Input string
	Wait  WaitCond
}

// rawStep mirrors the three YAML shapes a step may take: a bare scalar
// ("snapshot"), or a mapping with an "input" or "wait" key.
type rawStep struct {
	Input *string   `yaml:"input"`
	Wait  *WaitCond `yaml:"wait"`
}

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var literal string
		if err := value.Decode(&literal); err != nil {
			return err
		}
		if literal != "snapshot" {
			return fmt.Errorf("record: unrecognized scalar step %q (expected \"snapshot\")", literal)
		}
		s.Kind = StepSnapshot
		return nil
	}

	var raw rawStep
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.Input != nil:
		s.Kind = StepInput
		s.Input = *raw.Input
	case raw.Wait != nil:
		s.Kind = StepWait
		s.Wait = *raw.Wait
	default:
		return fmt.Errorf("record: step has neither input nor wait nor \"snapshot\"")
	}
	return nil
}

// ParseScript parses a record script document, applying the schema's
// defaults for dimensions and wait timing.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("record: parse script: %w", err)
	}
	if len(s.Command) == 0 {
		return nil, fmt.Errorf("record: script requires a non-empty command")
	}
	if s.Cols == 0 {
		s.Cols = DefaultCols
	}
	if s.Rows == 0 {
		s.Rows = DefaultRows
	}
	if s.Scrollback == 0 {
		s.Scrollback = DefaultScrollback
	}
	for i := range s.Steps {
		if s.Steps[i].Kind != StepWait {
			continue
		}
		if s.Steps[i].Wait.TimeoutMs == 0 {
			s.Steps[i].Wait.TimeoutMs = DefaultTimeoutMs
		}
		if s.Steps[i].Wait.PollMs == 0 {
			s.Steps[i].Wait.PollMs = DefaultPollMs
		}
	}
	return &s, nil
}
