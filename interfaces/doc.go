// Package interfaces defines the shared types and contracts of the validator
// provisioning service: the request and key entities, the lifecycle status
// enum, the persistence contract, and the key generator capability. Keeping
// these in a leaf package lets storage backends, the lifecycle engine, and
// the HTTP layer depend on the contracts without depending on each other.
package interfaces
