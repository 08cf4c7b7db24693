package internal

import (
	"fmt"
	"log"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
	"gopkg.in/yaml.v3"
)

// EmitList is a list of mirror topics. In YAML it accepts either a single
// scalar or a sequence.
type EmitList []string

func (e *EmitList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*e = EmitList{single}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*e = EmitList(list)
	return nil
}

// Rule matches events by expression. A matching rule emits the event to
// the listed mirror topics and, when Mute is set, suppresses the chat
// notification for it.
type Rule struct {
	When    string   `yaml:"when"`
	Emit    EmitList `yaml:"emit"`
	Mute    bool     `yaml:"mute"`
	Drivers []string `yaml:"drivers"`
}

// RuleMatch is one (topic, drivers) pair produced by a matching rule.
// Mute-only rules produce a single match with an empty topic.
type RuleMatch struct {
	Topic   string
	Drivers []string
	Mute    bool
}

// RulesConfig represents the rule-specific parts of the configuration.
type RulesConfig struct {
	Rules  []Rule
	Strict bool
	Logger *log.Logger
}

type compiledRule struct {
	emit     []string
	drivers  []string
	mute     bool
	expr     *govaluate.EvaluableExpression
	bindings map[string]string
}

// RuleEngine evaluates configured rules against events. When expressions
// reference payload fields either as bare identifiers ("action"), dotted
// paths ("pull_request.draft") or jsonpath ("$.commits[0].id"); dotted
// and jsonpath references are compiled down to jsonpath lookups against
// the decoded payload. The identifiers "event", "action" and
// "repository" always carry the event's classification metadata.
type RuleEngine struct {
	rules  []compiledRule
	strict bool
	logger *log.Logger
}

func NewRuleEngine(cfg RulesConfig) (*RuleEngine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	rules := make([]compiledRule, 0, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		rewritten, bindings := rewriteExpression(rule.When)
		expr, err := govaluate.NewEvaluableExpression(rewritten)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, compiledRule{
			emit:     rule.Emit,
			drivers:  rule.Drivers,
			mute:     rule.Mute,
			expr:     expr,
			bindings: bindings,
		})
	}

	return &RuleEngine{rules: rules, strict: cfg.Strict, logger: logger}, nil
}

// Evaluate returns the matches for the event. A rule whose expression
// references a missing field does not match; in strict mode the miss is
// logged.
func (r *RuleEngine) Evaluate(event Event) []RuleMatch {
	if len(r.rules) == 0 {
		return nil
	}

	matches := make([]RuleMatch, 0, 1)
	for _, rule := range r.rules {
		params := make(map[string]interface{}, len(event.Data)+len(rule.bindings)+3)
		params["event"] = event.Name
		params["action"] = event.Action
		params["repository"] = event.Repository
		for key, value := range event.Data {
			params[key] = value
		}

		missing := false
		for name, path := range rule.bindings {
			value, err := jsonpath.Get(path, event.RawObject)
			if err != nil {
				missing = true
				break
			}
			params[name] = value
		}
		if missing {
			if r.strict {
				r.logger.Printf("rule %q references missing field", rule.expr.String())
			}
			continue
		}

		result, err := rule.expr.Evaluate(params)
		if err != nil {
			if r.strict {
				r.logger.Printf("rule eval failed: %v", err)
			}
			continue
		}
		ok, _ := result.(bool)
		if !ok {
			continue
		}

		for _, topic := range rule.emit {
			matches = append(matches, RuleMatch{Topic: topic, Drivers: rule.drivers, Mute: rule.mute})
		}
		if len(rule.emit) == 0 && rule.mute {
			matches = append(matches, RuleMatch{Mute: true})
		}
	}
	return matches
}

// rewriteExpression replaces dotted-path and jsonpath field references
// with synthesized parameter names so govaluate can parse the result.
// The returned bindings map parameter names to jsonpath expressions.
func rewriteExpression(expr string) (string, map[string]string) {
	var out strings.Builder
	bindings := make(map[string]string)
	byPath := make(map[string]string)
	inString := false

	for i := 0; i < len(expr); {
		ch := expr[i]
		if ch == '"' {
			inString = !inString
			out.WriteByte(ch)
			i++
			continue
		}
		if inString || !tokenStart(expr, i) {
			out.WriteByte(ch)
			i++
			continue
		}

		j := i
		if ch == '$' {
			j += 2
		}
		for j < len(expr) && isPathChar(expr[j]) {
			j++
		}
		token := strings.TrimRight(expr[i:j], ".")
		j = i + len(token)

		path, bindable := bindingPath(token)
		if !bindable {
			out.WriteString(token)
			i = j
			continue
		}
		param, ok := byPath[path]
		if !ok {
			param = fmt.Sprintf("jp%d", len(bindings))
			byPath[path] = param
			bindings[param] = path
		}
		out.WriteString(param)
		i = j
	}

	return out.String(), bindings
}

// bindingPath normalizes a captured token into a jsonpath expression.
// Bare identifiers without dots or indexes are not bound; they resolve
// from the flattened payload directly.
func bindingPath(token string) (string, bool) {
	if strings.HasPrefix(token, "$.") {
		return token, true
	}
	if !strings.ContainsAny(token, ".[") {
		return "", false
	}
	return "$." + token, true
}

func tokenStart(expr string, i int) bool {
	ch := expr[i]
	if ch == '$' {
		return i+1 < len(expr) && expr[i+1] == '.'
	}
	if i > 0 && isPathChar(expr[i-1]) {
		return false
	}
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isPathChar(ch byte) bool {
	return ch == '_' || ch == '.' || ch == '[' || ch == ']' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
