// Package transport provides the HTTP implementation of ports.Transport.
package transport
