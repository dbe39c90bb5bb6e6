// Package schema loads GraphQL schemas into an immutable in-memory type graph.
//
// A Schema is built either from an introspection result, fetched from a live
// endpoint by a Loader or read from a JSON file, or from SDL parsed with
// gqlparser. Both inputs go through the same two-pass builder: all named
// types are registered first and references are then resolved by name, so
// forward and cyclic references are allowed while dangling ones are
// rejected.
//
// Basic usage:
//
//	loader := schema.NewLoader(schema.WithTimeout(5 * time.Second))
//	s, err := loader.Load(ctx, "https://api.example.com/graphql")
//	if err != nil {
//	    var fetchErr *schema.FetchError
//	    if errors.As(err, &fetchErr) {
//	        // endpoint unreachable
//	    }
//	    return err
//	}
//	user := s.Type("User")
//
// A Schema is never mutated after construction. Reloading means building a
// new Schema and swapping it in.
package schema
