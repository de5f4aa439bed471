// Package natsx connects to NATS the way every chorus binary does.
package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// ClientName identifies chorus connections on the server.
const ClientName = "chorus"

// NewClient connects to the server at url, falling back to NATS_URL and then to the NATS
// default URL. Without opts the connection is named ClientName and compressed.
func NewClient(url string, opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name(ClientName), nats.Compression(true))
	}
	return nats.Connect(ResolveURL(url), opts...)
}

// ResolveURL picks the server address NewClient dials.
func ResolveURL(url string) string {
	if url != "" {
		return url
	}
	if env := os.Getenv("NATS_URL"); env != "" {
		return env
	}
	return nats.DefaultURL
}
