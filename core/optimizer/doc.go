// Package optimizer turns a density estimate into a variable speed limit
// recommendation. The policy is a deterministic decision rule built on the
// fundamental diagram, not a provably optimal controller.
package optimizer
