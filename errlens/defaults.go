package errlens

// Application-wide defaults referenced by the config package.
const (
	DefaultAppName    = "errlens"
	DefaultConfigPath = "/etc/errlens"
	DefaultCacheDir   = ".errlens"

	// DefaultArchiveDSN is the embedded libsql database used for the
	// optional transcript archive. Empty disables archiving.
	DefaultArchiveDSN = ""
)
