// Package api holds the contracts shared between models, providers and the aggregator.
package api

import "github.com/casualjim/chorus/provider"

// Model is a named model served by a provider.
type Model interface {
	Name() string
	Provider() provider.Provider
}
