// Package codec serializes the persisted part of the application state.
package codec
