package policy

import "time"

// GetBuiltinPolicies returns the policies that ship with the agent. They
// guard against corrective actions that commonly brick a host.
func GetBuiltinPolicies() []Policy {
	now := time.Now()
	return []Policy{
		{
			Name:        "protected_packages",
			Description: "Denies removal of packages the host depends on for remote access and booting",
			Severity:    SeverityError,
			Enabled:     true,
			Tags:        []string{"builtin", "safety"},
			CreatedAt:   now,
			Rego: `package puppet.policies.protected_packages

import rego.v1

protected := {
	"openssh-server",
	"sudo",
	"systemd",
	"kernel",
	"linux-image-generic",
}

deny contains msg if {
	input.action == "remove"
	input.title in protected
	msg := sprintf("removal of protected package '%s' is forbidden", [input.title])
}
`,
		},
		{
			Name:        "held_packages",
			Description: "Denies version changes on resources tagged 'hold'",
			Severity:    SeverityError,
			Enabled:     true,
			Tags:        []string{"builtin", "safety"},
			CreatedAt:   now,
			Rego: `package puppet.policies.held_packages

import rego.v1

deny contains msg if {
	input.action in {"update", "install"}
	input.observed != "absent"
	some tag in input.tags
	tag == "hold"
	msg := sprintf("package '%s' is held, refusing to change version %s", [input.title, input.observed])
}
`,
		},
	}
}
