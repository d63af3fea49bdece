/*
Package store holds the single authoritative application state.

Intents are applied in batches through Dispatch. A batch is reduced as one
transaction under a mutex, so concurrent dispatchers are serialized and no
update is lost. After the commit, a Change is queued for every observer.

Each observer owns an unbounded FIFO queue drained by its own goroutine:

  - a slow observer never delays Dispatch,
  - every observer sees changes in commit order.

Observers may dispatch from their callback. They must not call Flush from it.
*/
package store
