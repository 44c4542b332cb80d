package httpapi

import (
	"context"

	"github.com/rs/zerolog"

	"tutord/internal/config"
)

// defaultMaxBodyBytes bounds form submissions when Options.MaxBodyBytes is unset.
const defaultMaxBodyBytes int64 = 1 << 20

// Options configures the HTTP layer. The zero value is usable.
type Options struct {
	// MaxBodyBytes bounds the POST body; <= 0 selects 1 MiB.
	MaxBodyBytes int64
	// CORS is opt-in. If disabled, no CORS middleware is added.
	CORS config.CORSConfig
	// BaseContext is canceled on shutdown; in-flight inference is canceled with it.
	BaseContext context.Context
	Logger      zerolog.Logger
}

func (o Options) maxBody() int64 {
	if o.MaxBodyBytes <= 0 {
		return defaultMaxBodyBytes
	}
	return o.MaxBodyBytes
}

func (o Options) baseContext() context.Context {
	if o.BaseContext == nil {
		return context.Background()
	}
	return o.BaseContext
}
