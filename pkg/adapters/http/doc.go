/*
Package http exposes a companion App over HTTP.

The contract lives in api/openapi.yaml; api.gen.go is generated from it with
go generate. Routes:

	GET  /health   liveness
	GET  /info     app and contract versions
	GET  /state    current state, API key redacted
	POST /intents  [{"type": "...", "payload": {...}}, ...] applied as one transaction
	POST /queries  {"text": "...", "kind": "text|image"} appends an entry and starts its side effect
	GET  /events   server-sent state diffs, optionally filtered with ?watch=conversations,settings,ui
	GET  /metrics  when a metrics handler is configured
	GET  /openapi.yaml, /swagger  the embedded contract and a browser for it
*/
package http
