// Package engine runs pipelines. The Executor walks a pipeline's steps in
// order against a per-execution Context: it gates each step with the
// condition evaluator, resolves prompt templates, hands the query to a
// Dispatcher and folds extracted values back into the context. Engine wraps
// the Executor with pipeline loading, execution records and progress events.
package engine
