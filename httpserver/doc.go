/*
Package httpserver implements the HTTP API of the validator provisioning
service.

It exposes three application endpoints:

  - POST /validators accepts a request for N validator keys and returns 202
    with a request identifier before any key is generated
  - GET /validators/{request_id} polls the request state: started,
    successful with the ordered key list, or failed with an error message
  - GET /health reports persistence reachability

plus the usual orchestration endpoints (livez, readyz, drain, undrain), an
optional pprof mount, and a Prometheus metrics sidecar on a separate listen
address.

The package is a thin adapter: it validates field formats, maps engine
errors onto HTTP status codes, and serializes results. All lifecycle
semantics live in the lifecycle package.
*/
package httpserver
