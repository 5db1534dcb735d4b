// Package engine implements the mutation and read paths over a project
// store.
//
// Writes go through the mutation engine: every operation validates its
// input against the schema registry before touching storage, then
// applies all of its row inserts and deactivations in one transaction.
// A batch that fails validation writes nothing.
//
// Reads go through the materializer, which reassembles a unit and its
// descendants into a single nested tree: confirmed feature values,
// competing suggestion sets, and children (full subtrees for primary
// relations, bare ids for secondary ones). Recursion carries a visited
// set and fails fast on relation or reference cycles instead of looping.
//
// All engine errors are *OpError values with a machine-readable code;
// the transport layer maps error classes to HTTP status codes.
package engine
