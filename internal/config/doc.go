// Package config loads the renconstruct HCL configuration file into a
// typed model. Per-task configuration blocks are kept as raw HCL bodies;
// each task decodes and validates its own subtree during registry
// resolution and stores the normalized result back into the model.
package config
