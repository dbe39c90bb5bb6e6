// Package cli provides the command-line interface for qiufen.
//
// Commands:
//   - serve: Load the schema and operations and run the mock server until
//     interrupted; SIGHUP reloads everything
//   - operations: Print the operation catalog in canonical form or as JSON
//   - schema: Print the mocked schema as SDL or introspection JSON
//   - init: Create a qiufen.yaml, interactively when flags are omitted
//   - version: Show qiufen version
package cli
