package console

import (
	"github.com/ghaggin/accountconsole/internal/middleware"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		New,
		middleware.NewSessionManager,
	),
	fx.Invoke(RegisterHooks),
)
