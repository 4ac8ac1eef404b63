/*
Package lifecycle implements the validator request lifecycle engine.

A request moves through a small state machine: it is created in started
status synchronously during submission, then a single background unit
generates and persists its keys one by one and flips the request to
successful, or to failed on the first generation or storage error. Terminal
states are final.

Background units run on a bounded worker pool fed by a queue, which caps the
number of concurrent key generations and gives shutdown and tests an explicit
drain point. Errors inside a background unit are recorded on the request and
observed by polling; they are never returned to the submitter.
*/
package lifecycle
