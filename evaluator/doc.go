// Package evaluator folds partial predicate results into the result of a
// whole expression.
//
// A [State] tracks, per predicate position, the hits reported so far and
// evaluates the expression over them after every response: conjunctions
// intersect, disjunctions unite and predicates without a response
// contribute nothing. Every evaluation is a superset of the previous one,
// so the client receives only the new ids as deltas. Once all expected
// responses arrived the client receives a single Done.
//
// An [Evaluator] drives a State: it sends each curried predicate to the
// indexer of its column and serializes the responses through a mailbox.
package evaluator
