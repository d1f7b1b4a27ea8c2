// Package pin verifies submitted PINs against stored secrets and generates
// replacement PINs.
//
// A stored secret is either a bcrypt hash (recognized by its $2a$, $2b$, $2x$
// or $2y$ prefix) or a plaintext PIN. Freshly rotated PINs are kept as
// plaintext because they only ever live in process memory.
package pin
