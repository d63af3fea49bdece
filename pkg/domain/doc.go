/*
Package domain contains the core domain models of the Companion state core.

It defines the single application state, the intents that are the only way to
change it, and the side-effect descriptors that the executor turns into network
calls. This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - AppState: The root entity (Conversations, API settings, ephemeral UI sub-state, classification).
  - Conversation: An ordered list of Entries plus a favorite flag.
  - Entry: One query and its Response (ongoing until finalized exactly once).
  - Intent: An immutable command; reducing a batch of intents yields the next state.
  - SideEffect: A description of asynchronous work keyed by the Entry it will finalize.
*/
package domain
