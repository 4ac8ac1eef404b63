// Package keygen provides validator key generator implementations: a random
// mock with hardware-like pacing, and a seed-derived deterministic variant
// for reproducible environments. Real key derivation plugs in behind
// interfaces.KeyGenerator without touching the lifecycle engine.
package keygen
