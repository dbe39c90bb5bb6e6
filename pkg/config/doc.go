// Package config loads and validates the qiufen configuration file.
//
// A configuration is YAML (.yaml, .yml) or JSON (anything else):
//
//	port: 9406
//	endpoint:
//	  url: https://api.example.com/graphql
//	  headers:
//	    Authorization: Bearer ${API_TOKEN}
//	operations:
//	  - "src/**/*.graphql"
//	listSize: 3
//	seed: 42
//	overrides:
//	  User.name: "Ada"
//	  User.email:
//	    expr: 'path + "@example.com"'
//	  Post:
//	    title: "Pinned"
//
// ${VAR} and ${VAR:-default} are expanded from the environment before
// parsing. The document is checked against an embedded JSON Schema, then
// Validate checks the values themselves.
package config
