/*
Package effects performs the asynchronous, network-bound side effects of a query.

Every effect first posts the prompt to the moderation endpoint. A flagged
prompt ends the effect. Otherwise the kind-specific endpoint is called:

  - text: chat completion, the first choice becomes the answer,
  - image: image generation, then one download per returned URL.

Whatever happens, the entry is finalized through the Dispatcher, with a
failure response when anything went wrong. The typed *Error is reported on
the Result channel.
*/
package effects
