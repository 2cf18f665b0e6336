package validate

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/model"
)

// Severity of a consistency finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule is a cross-field check over numeric values. When is an expr expression
// over the field ids in Fields; a true result means the rule fires.
type Rule struct {
	Name     string
	When     string
	Fields   []model.FieldID
	Severity Severity
	Message  func(values map[model.FieldID]float64) string
}

// Finding is one rule that fired for a batch of extractions
type Finding struct {
	Rule     string          `json:"rule"`
	Fields   []model.FieldID `json:"fields"`
	Severity Severity        `json:"severity"`
	Message  string          `json:"message"`
}

// DefaultRules are the clinical consistency checks run on every transcript
var DefaultRules = []Rule{
	{
		Name:     "bp_order",
		When:     "bp_systolic <= bp_diastolic",
		Fields:   []model.FieldID{catalog.BPSystolic, catalog.BPDiastolic},
		Severity: SeverityError,
		Message: func(v map[model.FieldID]float64) string {
			return fmt.Sprintf("Systolic pressure (%s) must be greater than diastolic pressure (%s)",
				FormatNumber(v[catalog.BPSystolic]), FormatNumber(v[catalog.BPDiastolic]))
		},
	},
	{
		Name:     "febrile_bradycardia",
		When:     "temperature > 38.5 && pulse < 60",
		Fields:   []model.FieldID{catalog.Temperature, catalog.Pulse},
		Severity: SeverityWarning,
		Message: func(v map[model.FieldID]float64) string {
			return fmt.Sprintf("Fever (%s°C) with a slow pulse (%s bpm) is clinically atypical; please verify",
				FormatNumber(v[catalog.Temperature]), FormatNumber(v[catalog.Pulse]))
		},
	},
}

type compiledRule struct {
	Rule
	program *vm.Program
}

// Checker evaluates compiled consistency rules
type Checker struct {
	rules []compiledRule
}

// NewChecker compiles rules. Every identifier in a rule must be one of its Fields.
func NewChecker(rules []Rule) (*Checker, error) {
	c := &Checker{}
	for _, r := range rules {
		env := make(map[string]interface{}, len(r.Fields))
		for _, id := range r.Fields {
			env[string(id)] = 0.0
		}
		program, err := expr.Compile(r.When, expr.Env(env), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compiling rule %s: %w", r.Name, err)
		}
		c.rules = append(c.rules, compiledRule{Rule: r, program: program})
	}
	return c, nil
}

var (
	defaultCheckerOnce sync.Once
	defaultChecker     *Checker
)

// MustDefaultChecker returns the checker for DefaultRules, compiled once
func MustDefaultChecker() *Checker {
	defaultCheckerOnce.Do(func() {
		c, err := NewChecker(DefaultRules)
		if err != nil {
			panic(err)
		}
		defaultChecker = c
	})
	return defaultChecker
}

// Check runs every rule whose fields all carry a numeric value, records errors and
// warnings on the involved extractions in place, and returns the rules that fired.
func (c *Checker) Check(items []model.ValidatedExtraction) []Finding {
	values := make(map[model.FieldID]float64)
	index := make(map[model.FieldID]int)
	for i, it := range items {
		n, ok := ParseNumber(it.Validation.NormalizedValue)
		if !ok {
			n, ok = ParseNumber(it.Value)
		}
		if ok {
			values[it.FieldID] = n
			index[it.FieldID] = i
		}
	}

	var findings []Finding
	for _, r := range c.rules {
		env := make(map[string]interface{}, len(r.Fields))
		complete := true
		for _, id := range r.Fields {
			n, ok := values[id]
			if !ok {
				complete = false
				break
			}
			env[string(id)] = n
		}
		if !complete {
			continue
		}

		out, err := expr.Run(r.program, env)
		if err != nil {
			continue
		}
		if fired, _ := out.(bool); !fired {
			continue
		}

		msg := r.Message(values)
		for _, id := range r.Fields {
			res := &items[index[id]].Validation
			if r.Severity == SeverityError {
				res.AddError(msg)
			} else {
				res.AddWarning(msg)
			}
		}
		findings = append(findings, Finding{Rule: r.Name, Fields: r.Fields, Severity: r.Severity, Message: msg})
	}
	return findings
}

// Conflicts counts findings of error severity
func Conflicts(findings []Finding) int {
	n := 0
	for _, f := range findings {
		if f.Severity == SeverityError {
			n++
		}
	}
	return n
}
