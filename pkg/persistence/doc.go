/*
Package persistence keeps the saved copy of the application state in step
with the store.

The Observer only reacts to permanent changes, and only writes when the encoded
bytes differ from the previous state. After the first failed write it stops
writing and reports the failure through Err; the in-memory state is never
affected.

Manager serializes access per key and can add a distributed lock when several
processes share one blob store.
*/
package persistence
