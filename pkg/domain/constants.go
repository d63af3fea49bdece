package domain

// DefaultStorageKey is the fixed blob-store key under which the application state is saved.
const DefaultStorageKey = "companion_app_state"
