// Package pkgmgr registers the built-in exec-backed package provider kinds:
// dpkg and apt for Debian-family platforms, rpm, yum and dnf for Red Hat
// family platforms, and sun for Solaris. Kinds inherit capabilities along
// their natural tool chains (apt overrides dpkg, yum overrides rpm, dnf
// overrides yum).
//
// All commands run through a small Runner interface so tests substitute
// doubles for the real package managers.
package pkgmgr
