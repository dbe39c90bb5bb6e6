// Package mockgen synthesizes GraphQL values from a schema.
//
// A Generator walks the type graph following an optional selection set.
// Without a seed, built-in scalars get fixed values (Int 42, Float 4.2,
// String "Hello World", Boolean true, ID a UUID derived from the response
// path) and enums their first value. With a seed, values come from a PRNG
// keyed by seed and path, so they vary per field yet repeat exactly across
// runs. Lists have DefaultListSize elements unless configured.
//
// Overrides replace generated data per "Type" or per "Type.field"; see
// Override for the lookup order. Output objects are *Object values that
// marshal with their keys in selection order.
package mockgen
