// Package domain holds the error values shared by the scopesync host and its
// internal packages. The root package re-exports them.
package domain
