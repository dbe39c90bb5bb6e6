// Package operation catalogs, prints and discovers GraphQL client
// operations.
//
// Parse splits raw documents into top-level definitions grouped by kind.
// Syntax errors and dangling fragment spreads are collected per document in
// Catalog.Errors so one broken file never hides the others. Print and
// PrintBatch render definitions in a canonical form through gqlparser's
// formatter and need no schema. Discover derives a catalog from a schema
// when no operation files are configured.
package operation
