// Package config reads the process-wide environment configuration Aiko
// components need: the namespace, the broker address, the transport kind
// and the logging level.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Transport names the wire protocol used to reach the message broker.
type Transport string

const (
	TransportTCP       Transport = "tcp"
	TransportWebSocket Transport = "websocket"
)

// Config holds the environment-derived configuration shared by every
// process that starts a Service, Pipeline or Registrar.
type Config struct {
	Namespace     string
	BrokerHost    string
	BrokerPort    int
	Transport     Transport
	Username      string
	Password      string
	LogLevel      string
	LogJSON       bool
}

const (
	envNamespace  = "AIKO_NAMESPACE"
	envBrokerHost = "AIKO_MQTT_HOST"
	envBrokerPort = "AIKO_MQTT_PORT"
	envTransport  = "AIKO_MQTT_TRANSPORT"
	envUsername   = "AIKO_MQTT_USERNAME"
	envPassword   = "AIKO_MQTT_PASSWORD"
	envLogLevel   = "AIKO_LOG_LEVEL"
	envLogJSON    = "AIKO_LOG_JSON"
)

// defaultBrokerHosts lists candidate broker hosts. When AIKO_MQTT_HOST is
// unset, New uses the first entry; the remaining entries are not tried.
var defaultBrokerHosts = []string{"localhost", "mqtt", "broker"}

// New builds a Config from the process environment, applying the defaults
// spec.md §6 allows (namespace default, first default broker host).
func New() (*Config, error) {
	cfg := &Config{
		Namespace:  getenv(envNamespace, "aiko"),
		BrokerHost: getenv(envBrokerHost, defaultBrokerHosts[0]),
		Transport:  Transport(getenv(envTransport, string(TransportTCP))),
		Username:   os.Getenv(envUsername),
		Password:   os.Getenv(envPassword),
		LogLevel:   getenv(envLogLevel, "info"),
		LogJSON:    os.Getenv(envLogJSON) == "true",
	}

	portStr := getenv(envBrokerPort, "1883")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", envBrokerPort, portStr, err)
	}
	cfg.BrokerPort = port

	if cfg.Transport != TransportTCP && cfg.Transport != TransportWebSocket {
		return nil, fmt.Errorf("unsupported %s %q", envTransport, cfg.Transport)
	}

	return cfg, nil
}

// BrokerAddress formats the host:port (or ws(s) URL) the transport dials.
func (c *Config) BrokerAddress() string {
	switch c.Transport {
	case TransportWebSocket:
		return fmt.Sprintf("ws://%s:%d/mqtt", c.BrokerHost, c.BrokerPort)
	default:
		return fmt.Sprintf("tcp://%s:%d", c.BrokerHost, c.BrokerPort)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
