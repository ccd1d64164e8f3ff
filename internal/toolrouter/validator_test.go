package toolrouter

import "testing"

// TestContainsPathTraversal_NestedValues is invariant 5 from spec.md §8:
// path traversal is detected even when the token is buried in a nested
// object or array, not just a top-level string.
func TestContainsPathTraversal_NestedValues(t *testing.T) {
	cases := []struct {
		name string
		args string
		want bool
	}{
		{"flat", `{"path":"../etc/passwd"}`, true},
		{"windows", `{"path":"..\\windows\\system32"}`, true},
		{"nested object", `{"opts":{"targets":["ok.txt","../../secret"]}}`, true},
		{"nested array of objects", `{"items":[{"path":"a"},{"path":"../b"}]}`, true},
		{"clean", `{"path":"docs/readme.md"}`, false},
		{"not json falls back to substring scan", `../etc/passwd`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ContainsPathTraversal(tc.args); got != tc.want {
				t.Fatalf("ContainsPathTraversal(%q) = %v, want %v", tc.args, got, tc.want)
			}
		})
	}
}

func TestMatchesShellDenylist(t *testing.T) {
	cases := []struct {
		cmd  string
		want bool
	}{
		{"rm -rf /", true},
		{"rm -fr /", true},
		{"rm -rf /home/user/project", false},
		{"mkfs.ext4 /dev/sda1", true},
		{"dd if=/dev/zero of=/dev/sda", true},
		{"shutdown -h now", true},
		{"reboot", true},
		{":(){ :|:& };:", true},
		{"ls -la", false},
	}
	for _, tc := range cases {
		if got := MatchesShellDenylist(tc.cmd); got != tc.want {
			t.Fatalf("MatchesShellDenylist(%q) = %v, want %v", tc.cmd, got, tc.want)
		}
	}
}

func TestValidator_Evaluate_DeniesUnsafeExecutable(t *testing.T) {
	v := NewValidator(ApprovalAuto)
	if d, _ := v.Evaluate("shell", `{}`, "-rf /tmp/data"); d != DecisionDenied {
		t.Fatalf("expected DecisionDenied for an unsafe (option-injection) executable token, got %v", d)
	}
}

func TestValidator_Evaluate_DeniesUnsafeArgument(t *testing.T) {
	v := NewValidator(ApprovalAuto)
	if d, _ := v.Evaluate("shell", `{}`, "echo hello; touch x"); d != DecisionDenied {
		t.Fatalf("expected DecisionDenied for an argument carrying shell metacharacters, got %v", d)
	}
}

func TestValidator_Evaluate_AllowsSafeShellCommand(t *testing.T) {
	v := NewValidator(ApprovalAuto)
	if d, _ := v.Evaluate("shell", `{}`, "ls -la /home/user/project"); d != DecisionApproved {
		t.Fatalf("expected DecisionApproved for a clean shell command, got %v", d)
	}
}

func TestValidator_Evaluate_DenyTrumpsApprovalMode(t *testing.T) {
	v := NewValidator(ApprovalAuto)
	decision, _ := v.Evaluate("read_file", `{"path":"../secret"}`, "")
	if decision != DecisionDenied {
		t.Fatalf("expected path traversal to deny even under auto mode, got %s", decision)
	}
}

func TestValidator_Evaluate_ApprovalModes(t *testing.T) {
	auto := NewValidator(ApprovalAuto)
	if d, _ := auto.Evaluate("list_files", `{}`, ""); d != DecisionApproved {
		t.Fatalf("expected auto mode to approve, got %s", d)
	}

	ask := NewValidator(ApprovalAsk)
	if d, _ := ask.Evaluate("list_files", `{}`, ""); d != DecisionRequiresApproval {
		t.Fatalf("expected ask mode to require approval, got %s", d)
	}

	never := NewValidator(ApprovalNever)
	if d, _ := never.Evaluate("list_files", `{}`, ""); d != DecisionDenied {
		t.Fatalf("expected never mode to deny, got %s", d)
	}
}

func TestValidator_Evaluate_OperatorOverridesApplyBeforeMode(t *testing.T) {
	v := NewValidator(ApprovalAsk)
	v.AutoApprove["list_files"] = true
	if d, _ := v.Evaluate("list_files", `{}`, ""); d != DecisionApproved {
		t.Fatalf("expected operator allowlist to bypass ask mode, got %s", d)
	}

	v.AutoDeny["rm_file"] = true
	if d, _ := v.Evaluate("rm_file", `{}`, ""); d != DecisionDenied {
		t.Fatalf("expected operator denylist to bypass ask mode, got %s", d)
	}
}
