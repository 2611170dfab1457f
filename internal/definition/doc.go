// Package definition decodes and validates pipeline definitions. Definitions
// are YAML documents (JSON is accepted as a YAML subset) naming a pipeline and
// its ordered steps. A Pipeline returned by this package has passed Validate
// and is safe to share between concurrent executions.
package definition
