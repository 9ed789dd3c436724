// Package ir provides the type graph consumed by tag resolution and codec
// generation.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal except value (for field defaults).
// The graph is built once by the front end and is read-only afterwards, so
// it can be shared freely between generation workers.
//
// Key design constraints:
//   - Type and FormBody are sealed interfaces (closed sum types)
//   - Arity of generic instances is checked before a graph reaches here
//   - Declaration order of fields, values, clauses and descendants is wire
//     order and must never be re-sorted
package ir
