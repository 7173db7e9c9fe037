package config

import "go.uber.org/fx"

// Module loads server configuration and exposes the SMTP section to the mailer.
var Module = fx.Provide(
	Load,
	func(c *Config) SMTP { return c.SMTP },
)
