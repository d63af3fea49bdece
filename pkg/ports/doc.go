/*
Package ports defines the driven ports (interfaces) of the Companion state core.

These interfaces decouple the store, executor and persistence observer from
concrete network, storage and serialization implementations.

# Key Interfaces

  - Transport: Sends HTTP requests to the upstream API (e.g., resty, fakes in tests).
  - Codec: Encodes the persisted part of the state to bytes and back.
  - BlobStore: Persists the encoded state (memory, file, redis, sqlite).
  - DistributedLocker: Serializes writes across processes sharing a BlobStore.
  - Dispatcher: Accepts intent batches (implemented by the store).
*/
package ports
