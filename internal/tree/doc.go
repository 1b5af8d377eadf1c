// Package tree declares scope trees in TOML and reconciles a live tree
// against a declaration.
//
// A definition names scopes and, for each scope, the value listeners it
// carries:
//
//	[[listener]]
//	key = "settings"
//	values = { theme = "dark" }
//
//	[[scope]]
//	name = "session"
//
//	  [[scope.listener]]
//	  key = "cart"
//	  values = { items = 0 }
//
// Apply creates missing scopes, registers one ValueListener per declared key
// and destroys live scopes that are no longer declared.
package tree
