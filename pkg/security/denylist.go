package security

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/ce-data-e/opencodex/pkg/debug"
	"github.com/ce-data-e/opencodex/pkg/observability"
)

// Decision is the outcome of a deny list check.
type Decision int

const (
	// Allowed commands proceed to the normal approval flow.
	Allowed Decision = iota
	// RequiresApproval commands need approval even when approvals are
	// otherwise skipped.
	RequiresApproval
	// Forbidden commands are rejected.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case RequiresApproval:
		return "requires_approval"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Result is the decision for a command and the pattern that caused it.
// MatchedPattern is empty for Allowed.
type Result struct {
	Decision       Decision
	MatchedPattern string
}

// Policy holds the compiled patterns. The zero value allows everything.
type Policy struct {
	deny      []*regexp.Regexp
	forbidden []*regexp.Regexp
}

// NewPolicy compiles the deny and forbidden patterns. Patterns that are not
// valid regular expressions are logged and skipped.
func NewPolicy(deny, forbidden []string) *Policy {
	return &Policy{
		deny:      compile("deny", deny),
		forbidden: compile("forbidden", forbidden),
	}
}

func compile(list string, patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			slog.Warn("skipping invalid security pattern", "list", list, "pattern", p, "error", err)
			continue
		}
		out = append(out, re)
	}
	return out
}

// DenyPatterns returns the compiled deny patterns' source text.
func (p *Policy) DenyPatterns() []string { return sources(p.deny) }

// ForbiddenPatterns returns the compiled forbidden patterns' source text.
func (p *Policy) ForbiddenPatterns() []string { return sources(p.forbidden) }

func sources(res []*regexp.Regexp) []string {
	out := make([]string, len(res))
	for i, re := range res {
		out[i] = re.String()
	}
	return out
}

// Check decides whether argv may run under policy. A shell wrapper is
// decomposed into its plain commands; each command is joined with spaces
// and matched in order, forbidden patterns before deny patterns. The first
// match decides.
func Check(argv []string, policy *Policy) Result {
	res := check(argv, policy)
	observability.SecurityDecisionsTotal.WithLabelValues(res.Decision.String()).Inc()
	if res.Decision != Allowed {
		debug.Log("security", "command matched pattern",
			"decision", res.Decision.String(),
			"pattern", res.MatchedPattern,
			"argv", strings.Join(argv, " "),
		)
	}
	return res
}

func check(argv []string, policy *Policy) Result {
	if policy == nil {
		return Result{Decision: Allowed}
	}

	commands, ok := ShellCommands(argv)
	if !ok {
		commands = [][]string{argv}
	}

	for _, cmd := range commands {
		line := strings.Join(cmd, " ")
		if re := firstMatch(line, policy.forbidden); re != nil {
			return Result{Decision: Forbidden, MatchedPattern: re.String()}
		}
		if re := firstMatch(line, policy.deny); re != nil {
			return Result{Decision: RequiresApproval, MatchedPattern: re.String()}
		}
	}
	return Result{Decision: Allowed}
}

func firstMatch(s string, patterns []*regexp.Regexp) *regexp.Regexp {
	for _, re := range patterns {
		if re.MatchString(s) {
			return re
		}
	}
	return nil
}
