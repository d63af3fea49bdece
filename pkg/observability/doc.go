/*
Package observability provides tools for monitoring the Companion state core.

It exposes Prometheus collectors for dispatches, side effects and persistence
writes, plus executor lifecycle hooks that feed them.
*/
package observability
