// Package policy gates corrective actions with Open Policy Agent.
//
// Policies are Rego modules whose deny rules receive the planned action
// (resource type, title, action, observed and desired values, provider)
// as input. Any deny from an error-severity policy blocks the action; the
// engine records the denial as an audit event and skips the resource.
//
// Two built-in policies ship with the agent: protected_packages refuses
// to remove packages required for remote access, and held_packages
// refuses version changes on resources tagged "hold". Additional .rego
// files can be loaded from disk with Engine.LoadPolicies.
package policy
