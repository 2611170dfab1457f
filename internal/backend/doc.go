// Package backend talks to the OffloadMQ task queue that runs model requests
// out of process. Client speaks the HTTP protocol (capability listing, task
// submission, task polling); Waiter polls a task to a terminal status; a
// Picker chooses the capability for a query; Dispatcher ties them together
// and satisfies engine.Dispatcher.
package backend
