// Package driven defines the interfaces the core depends on: the AST
// cache, copybook resolution, and configuration storage. Adapters under
// internal/adapters/driven implement them.
package driven
