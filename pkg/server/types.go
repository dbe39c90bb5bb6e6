package server

// Request is a GraphQL request as sent over HTTP or inside a subscribe
// message.
type Request struct {
	// Query is the GraphQL document. It may be empty when OperationName
	// names a cataloged operation.
	Query string `json:"query"`
	// OperationName selects the operation in a multi-operation document.
	OperationName string `json:"operationName,omitempty"`
	// Variables are the variable values for the operation.
	Variables map[string]interface{} `json:"variables,omitempty"`
	// Extensions are accepted and ignored.
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Response is the GraphQL response envelope. Data is always present; it is
// null when the request failed before any field was generated.
type Response struct {
	Data   interface{} `json:"data"`
	Errors []Error     `json:"errors,omitempty"`
}

// Error is one entry of the response errors list.
type Error struct {
	// Message is the error message.
	Message string `json:"message"`
	// Locations points into the request document.
	Locations []Location `json:"locations,omitempty"`
	// Path is the response path of the failing field.
	Path []interface{} `json:"path,omitempty"`
	// Extensions carries a machine-readable "code".
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Location is a 1-based position in the request document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}
