// Package security checks commands against configured deny and forbidden
// patterns. The check applies regardless of the approval mode a caller
// runs in: a forbidden command is rejected, a denied command always needs
// explicit approval.
//
// Shell wrappers such as `bash -lc "a && b"` are decomposed into their
// plain commands first, so that a dangerous command cannot hide behind a
// harmless one.
package security
