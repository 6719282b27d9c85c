// Package query classifies raw search strings into typed patterns.
// Parsing is pure: no I/O, no state, and classification order is a fixed
// policy because the pattern shapes overlap.
package query
