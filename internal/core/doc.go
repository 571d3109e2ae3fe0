// Package core is the expansion engine: it locates the repository, runs the
// version-control tool with a fixed argument set, sanitizes the output into an
// embeddable literal, describes initialized submodules, and reports the
// metadata paths whose change must trigger regeneration.
//
// # Components
//
//	Executor    runs the tool and captures its output (CommandRunner)
//	Locator     finds the working-tree root and its metadata directories
//	Formatter   builds describe arguments and escapes the result
//	Enumerator  lists and describes initialized submodules
//	TriggerPaths computes the rebuild-trigger set
//	Expander    composes the above into the four entry points
//
// Every call is synchronous and independent. Results are not cached; given an
// unchanged working tree, repeated calls return identical values.
package core
