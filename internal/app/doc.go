// Package app holds the host run state machine shared by the scopesync root
// package.
package app
