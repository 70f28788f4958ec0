// Package app wires renconstruct together: it owns the logger, the loaded
// configuration model and the task registry, and drives one full build run
// around the external renutil tool.
package app
