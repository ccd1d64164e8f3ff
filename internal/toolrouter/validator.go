package toolrouter

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/brandlll-lee/cokra/internal/exec"
)

// Decision is the validator's verdict for one tool call, before dispatch.
type Decision string

const (
	DecisionApproved         Decision = "approved"
	DecisionDenied           Decision = "denied"
	DecisionRequiresApproval Decision = "requires_approval"
)

// ApprovalMode selects how the validator resolves a call that isn't
// outright denied (spec.md §4.7): Auto never asks, Ask always asks
// unless denied, Never denies anything not already approved elsewhere.
type ApprovalMode string

const (
	ApprovalAuto  ApprovalMode = "auto"
	ApprovalAsk   ApprovalMode = "ask"
	ApprovalNever ApprovalMode = "never"
)

// ReasonApprovalModeNever is the Evaluate reason string for the one denial
// cause that must abort the turn rather than surface as a Tool message
// (§7: PermissionDenied under never-mode). Every other denial reason is
// recoverable by the model.
const ReasonApprovalModeNever = "approval mode never"

// pathTraversalTokens mirrors the two traversal spellings spec.md calls
// out explicitly: POSIX ".." segments and their Windows backslash form.
var pathTraversalTokens = []string{"../", "..\\"}

// shellDenylist is grounded on internal/tools/security/shell_parser.go's
// dangerous-pattern detection style, narrowed to the destructive command
// shapes spec.md §4.7 names by example.
var shellDenylist = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*\s+/(\s|$)`),
	regexp.MustCompile(`rm\s+-[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*\s+/(\s|$)`),
	regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`\bdd\s+if=`),
	regexp.MustCompile(`\bshutdown\b`),
	regexp.MustCompile(`\breboot\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`), // classic fork bomb
}

// Validator enforces the path-traversal and shell-denylist checks, then
// resolves an approval-mode decision.
type Validator struct {
	Mode ApprovalMode
	// AutoApprove, when non-nil, is consulted before ApprovalMode for
	// tools an operator has pre-approved regardless of mode (e.g. a
	// read-only tool under Ask mode). Grounded on ApprovalChecker's
	// allow/deny/require-approval cascade.
	AutoApprove map[string]bool
	AutoDeny    map[string]bool
}

func NewValidator(mode ApprovalMode) *Validator {
	return &Validator{Mode: mode, AutoApprove: map[string]bool{}, AutoDeny: map[string]bool{}}
}

// ContainsPathTraversal reports whether arguments (a JSON object, scanned
// recursively through every string leaf in nested objects/arrays) contains
// a traversal token.
func ContainsPathTraversal(arguments string) bool {
	var v any
	if err := json.Unmarshal([]byte(arguments), &v); err != nil {
		return stringHasTraversal(arguments)
	}
	return valueHasTraversal(v)
}

func valueHasTraversal(v any) bool {
	switch t := v.(type) {
	case string:
		return stringHasTraversal(t)
	case map[string]any:
		for _, child := range t {
			if valueHasTraversal(child) {
				return true
			}
		}
	case []any:
		for _, child := range t {
			if valueHasTraversal(child) {
				return true
			}
		}
	}
	return false
}

func stringHasTraversal(s string) bool {
	for _, tok := range pathTraversalTokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// MatchesShellDenylist reports whether a command string matches one of
// the destructive shell patterns.
func MatchesShellDenylist(command string) bool {
	for _, re := range shellDenylist {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// Evaluate runs the path-traversal and shell-denylist checks, then
// resolves an approval decision for calls that pass. toolName and
// arguments/command are pulled from the ToolCall by the router.
func (v *Validator) Evaluate(toolName, arguments, shellCommand string) (Decision, string) {
	if ContainsPathTraversal(arguments) {
		return DecisionDenied, "path traversal in tool arguments"
	}
	if shellCommand != "" {
		if MatchesShellDenylist(shellCommand) {
			return DecisionDenied, "command matches the destructive-shell denylist"
		}
		tokens := strings.Fields(shellCommand)
		if len(tokens) > 0 && !exec.IsSafeExecutableValue(tokens[0]) {
			return DecisionDenied, "command's executable token fails safety validation"
		}
		if len(tokens) > 1 {
			if _, err := exec.SanitizeArguments(tokens[1:]); err != nil {
				return DecisionDenied, "command argument fails safety validation: " + err.Error()
			}
		}
	}
	if v.AutoDeny[toolName] {
		return DecisionDenied, "tool denied by operator policy"
	}
	if v.AutoApprove[toolName] {
		return DecisionApproved, "tool pre-approved by operator policy"
	}

	switch v.Mode {
	case ApprovalAuto:
		return DecisionApproved, "approval mode auto"
	case ApprovalNever:
		return DecisionDenied, ReasonApprovalModeNever
	case ApprovalAsk:
		return DecisionRequiresApproval, "approval mode ask"
	default:
		return DecisionRequiresApproval, "approval mode unset, defaulting to ask"
	}
}
