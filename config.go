package signalr

import (
	"fmt"
	"time"
)

// Credentials is a closed set of supported credential kinds: none, bearer
// token, or HTTP basic.
type Credentials interface {
	isCredentials()
}

// NoCredentials carries no authentication.
type NoCredentials struct{}

func (NoCredentials) isCredentials() {}

// BearerCredentials carries an opaque bearer token, forwarded as
// `Authorization: Bearer <token>`.
type BearerCredentials struct {
	Token string
}

func (BearerCredentials) isCredentials() {}

// BasicCredentials carries a username/password pair, forwarded as
// `Authorization: Basic <base64>`.
type BasicCredentials struct {
	User     string
	Password string
}

func (BasicCredentials) isCredentials() {}

// Config is the immutable, validated configuration produced by
// [ConfigBuilder.Build]. Every field is read-only after construction (spec
// §3 "Configuration: created by builder; frozen at connect").
type Config struct {
	Host        string
	Port        uint16
	Secure      bool
	Hub         string
	Credentials Credentials
	Protocol    HubProtocol
	KeepAlive   time.Duration
	Reconnect   ReconnectionPolicy
	OnDisconnect func(*ReconnectionHandler)
	Logger      SLogger
	Clock       Clock
}

func (c *Config) httpScheme() string {
	if c.Secure {
		return "https"
	}
	return "http"
}

func (c *Config) wsScheme() string {
	if c.Secure {
		return "wss"
	}
	return "ws"
}

func (c *Config) hostPort() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) httpBaseURL() string {
	return fmt.Sprintf("%s://%s/%s", c.httpScheme(), c.hostPort(), c.Hub)
}

// ConfigBuilder builds a [Config]. Fields are set via the With* methods and
// validated at Build.
type ConfigBuilder struct {
	host         string
	port         uint16
	secure       bool
	hub          string
	credentials  Credentials
	protocol     HubProtocol
	keepAlive    time.Duration
	reconnect    ReconnectionPolicy
	onDisconnect func(*ReconnectionHandler)
	logger       SLogger
	clock        Clock
}

// NewConfigBuilder creates a builder for a hub at host/hub, secure
// (https/wss) by default, on the default port for the scheme.
func NewConfigBuilder(host, hub string) *ConfigBuilder {
	return &ConfigBuilder{
		host:        host,
		hub:         hub,
		secure:      true,
		port:        443,
		credentials: NoCredentials{},
		protocol:    JSONProtocol,
		keepAlive:   15 * time.Second,
		reconnect:   NoReconnection(),
	}
}

// WithPort overrides the default port for the scheme.
func (b *ConfigBuilder) WithPort(port uint16) *ConfigBuilder {
	b.port = port
	return b
}

// Insecure selects http/ws instead of the default https/wss, and resets
// the port to 80 unless WithPort is called afterward.
func (b *ConfigBuilder) Insecure() *ConfigBuilder {
	b.secure = false
	b.port = 80
	return b
}

// WithBearer sets a bearer token credential.
func (b *ConfigBuilder) WithBearer(token string) *ConfigBuilder {
	b.credentials = BearerCredentials{Token: token}
	return b
}

// WithBasic sets a basic-auth credential.
func (b *ConfigBuilder) WithBasic(user, password string) *ConfigBuilder {
	b.credentials = BasicCredentials{User: user, Password: password}
	return b
}

// WithMessagePack selects the MessagePack hub protocol instead of the
// default JSON.
func (b *ConfigBuilder) WithMessagePack() *ConfigBuilder {
	b.protocol = MessagePackProtocol
	return b
}

// WithKeepAlive sets the idle-send interval after which a Ping is emitted.
func (b *ConfigBuilder) WithKeepAlive(d time.Duration) *ConfigBuilder {
	b.keepAlive = d
	return b
}

// WithReconnection sets the reconnection policy. Default is [NoReconnection].
func (b *ConfigBuilder) WithReconnection(p ReconnectionPolicy) *ConfigBuilder {
	b.reconnect = p
	return b
}

// WithDisconnectionHandler switches the connection into manual reconnect
// mode: handler is invoked on disconnect instead of the core retrying on
// its own (spec §4.6).
func (b *ConfigBuilder) WithDisconnectionHandler(handler func(*ReconnectionHandler)) *ConfigBuilder {
	b.onDisconnect = handler
	return b
}

// WithLogger sets the [SLogger] used for lifecycle and protocol logging.
func (b *ConfigBuilder) WithLogger(logger SLogger) *ConfigBuilder {
	b.logger = logger
	return b
}

// WithClock overrides the [Clock] used for reconnect backoff sleeps and
// timestamps. Intended for tests.
func (b *ConfigBuilder) WithClock(clock Clock) *ConfigBuilder {
	b.clock = clock
	return b
}

// Build validates the builder state and produces an immutable [Config].
func (b *ConfigBuilder) Build() (*Config, error) {
	if b.host == "" {
		return nil, &ConfigurationError{Reason: "host must not be empty"}
	}
	if b.hub == "" {
		return nil, &ConfigurationError{Reason: "hub path must not be empty"}
	}
	if b.keepAlive <= 0 {
		return nil, &ConfigurationError{Reason: "keep-alive interval must be positive"}
	}

	logger := b.logger
	if logger == nil {
		logger = DefaultSLogger()
	}
	clock := b.clock
	if clock == nil {
		clock = SystemClock{}
	}
	reconnect := b.reconnect
	if reconnect == nil {
		reconnect = NoReconnection()
	}

	return &Config{
		Host:         b.host,
		Port:         b.port,
		Secure:       b.secure,
		Hub:          b.hub,
		Credentials:  b.credentials,
		Protocol:     b.protocol,
		KeepAlive:    b.keepAlive,
		Reconnect:    reconnect,
		OnDisconnect: b.onDisconnect,
		Logger:       logger,
		Clock:        clock,
	}, nil
}
