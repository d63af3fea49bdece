package ports

import "github.com/aretw0/companion/pkg/domain"

// Codec converts the persisted projection of the state to and from bytes.
// Decode must tolerate missing top-level fields.
type Codec interface {
	Encode(state domain.AppState) ([]byte, error)
	Decode(data []byte) (domain.AppState, error)
}
