package config

const (
	defaultDataDir           = "~/.local/share/aplose"
	defaultStaticDir         = "~/.local/share/aplose/static"
	defaultBind              = "127.0.0.1:8000"
	defaultStaticURL         = "/backend/static/"
	defaultReadHeaderTimeout = 5
	defaultReadTimeout       = 15
	defaultWriteTimeout      = 30
	defaultIdleTimeout       = 60
	defaultShutdownTimeout   = 5
	defaultBusyTimeoutMillis = 5000
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultMetricsEnabled    = true
	defaultMetricsPath       = "/metrics"
	defaultNewsPageSize      = 20
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			StaticDir: defaultStaticDir,
		},
		Server: Server{
			Bind:              defaultBind,
			StaticURL:         defaultStaticURL,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			ReadTimeout:       defaultReadTimeout,
			WriteTimeout:      defaultWriteTimeout,
			IdleTimeout:       defaultIdleTimeout,
			ShutdownTimeout:   defaultShutdownTimeout,
			NewsPageSize:      defaultNewsPageSize,
		},
		Database: Database{
			BusyTimeoutMillis: defaultBusyTimeoutMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Enabled: defaultMetricsEnabled,
			Path:    defaultMetricsPath,
		},
	}
}
