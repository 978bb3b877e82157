// Package catalog loads resource declarations from CUE manifests.
//
// A manifest declares the desired state of a host under the resources
// key:
//
//	site: name: "web"
//
//	resources: packages: {
//		nginx: ensure:  "latest"
//		vim: ensure:    true
//		telnet: ensure: false
//		postgresql: {
//			ensure: "15.4-1"
//			tags: ["database", "hold"]
//		}
//	}
//
// Ensure values follow the package resource conventions: true or
// "present" or "installed" mean installed at any version, false or
// "absent" mean not installed, "latest" tracks the newest available
// version, and any other string is an exact version. A list declares
// several acceptable values; the first entry is the one corrective
// actions aim for.
//
// Manifests can be single .cue files or directories loaded as a CUE
// package. Parse and validation errors carry file and line positions.
package catalog
