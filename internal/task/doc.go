// Package task provides the registry and scheduler for renconstruct's
// pluggable build tasks.
//
// The Registry is responsible for mapping compiled-in task types to their
// runtime names, validating each enabled task's configuration subtree, and
// producing a conflict-free, priority-ordered run list. The Scheduler walks
// that list for one of the two pipeline stages, instantiating each task
// immediately before its first use and aborting the whole run on the first
// failure: tasks mutate shared installation state, so partial continuation
// would leave that state inconsistent for later tasks and reruns.
package task
