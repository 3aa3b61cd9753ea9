package consul

// Config configures the consul-backed Resolver.
type Config struct {
	// Addr is the consul agent address (host:port). Default: "localhost:8500".
	Addr string `mapstructure:"addr"`

	// Scheme is the URI scheme for the consul agent ("http" or "https").
	Scheme string `mapstructure:"scheme"`

	// Token is the consul ACL token, if any.
	Token string `mapstructure:"token"`

	// Datacenter is the consul datacenter name, if not the agent default.
	Datacenter string `mapstructure:"datacenter"`

	// ServiceNameFormat builds the catalog name from {service} and
	// {version}. Default: "{service}-{version}".
	ServiceNameFormat string `mapstructure:"service_name_format"`

	// UnversionedServiceNameFormat is used when the version is empty.
	// Default: "{service}".
	UnversionedServiceNameFormat string `mapstructure:"unversioned_service_name_format"`

	// ServiceScheme is the scheme assumed for discovered services.
	// Default: "http".
	ServiceScheme string `mapstructure:"service_scheme"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:8500"
	}
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	if c.ServiceNameFormat == "" {
		c.ServiceNameFormat = "{service}-{version}"
	}
	if c.UnversionedServiceNameFormat == "" {
		c.UnversionedServiceNameFormat = "{service}"
	}
	if c.ServiceScheme == "" {
		c.ServiceScheme = "http"
	}
}
