package automation

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Step is the sealed union of sequence step kinds. The executor switches on
// the concrete type; an unhandled kind is a decode error, not a silent no-op.
type Step interface {
	StepKind() string
}

// EmailStep decides that and what to send; delivery belongs to the mail
// collaborator. Locale, when set, overrides the learner's locale for template
// selection.
type EmailStep struct {
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	TemplateKey string `json:"template_key,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

func (EmailStep) StepKind() string { return "email" }

// DelayStep is a pure gate: it consumes no side effect.
type DelayStep struct {
	DelayDays  int `json:"delay_days"`
	DelayHours int `json:"delay_hours"`
}

func (DelayStep) StepKind() string { return "delay" }

// ConditionStep branches on one user attribute comparison. A true outcome
// advances normally; a false outcome skips the immediately following step.
type ConditionStep struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

func (ConditionStep) StepKind() string { return "condition" }

type stepEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"-"`
}

// DecodeSteps parses the stored JSON step array into the typed union.
func DecodeSteps(raw datatypes.JSON) ([]Step, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var envelopes []json.RawMessage
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return nil, fmt.Errorf("decode step array: %w", err)
	}
	steps := make([]Step, 0, len(envelopes))
	for i, env := range envelopes {
		var head stepEnvelope
		if err := json.Unmarshal(env, &head); err != nil {
			return nil, fmt.Errorf("decode step %d: %w", i, err)
		}
		switch head.Type {
		case "email":
			var s EmailStep
			if err := json.Unmarshal(env, &s); err != nil {
				return nil, fmt.Errorf("decode email step %d: %w", i, err)
			}
			steps = append(steps, s)
		case "delay":
			var s DelayStep
			if err := json.Unmarshal(env, &s); err != nil {
				return nil, fmt.Errorf("decode delay step %d: %w", i, err)
			}
			steps = append(steps, s)
		case "condition":
			var s ConditionStep
			if err := json.Unmarshal(env, &s); err != nil {
				return nil, fmt.Errorf("decode condition step %d: %w", i, err)
			}
			steps = append(steps, s)
		default:
			return nil, fmt.Errorf("step %d: unknown step type %q", i, head.Type)
		}
	}
	return steps, nil
}

// EncodeSteps renders the typed union back into the stored JSON form.
func EncodeSteps(steps []Step) (datatypes.JSON, error) {
	out := make([]map[string]interface{}, 0, len(steps))
	for i, step := range steps {
		raw, err := json.Marshal(step)
		if err != nil {
			return nil, fmt.Errorf("encode step %d: %w", i, err)
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("encode step %d: %w", i, err)
		}
		m["type"] = step.StepKind()
		out = append(out, m)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
