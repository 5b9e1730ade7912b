package sqlmap

import "go.uber.org/fx"

// Module provides an *Executor to an fx application. The application
// supplies the Pool; Dialect and Config are optional. Without a supplied
// Dialect the Executor renders markers for Postgres, the zero Dialect.
var Module = fx.Module("sqlmap",
	fx.Provide(NewFromParams),
)

// Params are the dependencies Module resolves.
type Params struct {
	fx.In

	Pool Pool
	// Dialect defaults to Postgres when not supplied.
	Dialect Dialect `optional:"true"`
	Config  Config  `optional:"true"`
}

// NewFromParams builds an Executor from injected dependencies.
func NewFromParams(p Params) *Executor {
	return New(p.Pool, p.Dialect, p.Config)
}
