package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Socket configuration structs (shared by server and client)
// --------------------------------------------------------------------------

// SocketConf holds the socket buffer settings
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket settings (ignored for unix sockets)
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// ServerTransportConfig holds the settings of the server transport layer
type ServerTransportConfig struct {
	SocketConf
	TCPConf

	// ReadTimeoutSecond closes connections that did not deliver a full request in time (0 = never)
	ReadTimeoutSecond int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a device server.
type ServerConfig struct {
	// DeviceName identifies the device in logs, metrics and the info snapshot
	DeviceName string

	// Endpoint is the address to listen on (host:port or socket path)
	Endpoint string

	// TimeoutSecond bounds how long a command request waits for the executor
	TimeoutSecond float64

	// SelectTimeoutMillisecond bounds a single wait of the event loop, so pending
	// command timeouts are observed without socket activity
	SelectTimeoutMillisecond int

	// ReadIntervalMillisecond is the period of the ReadValue poller (0 disables it)
	ReadIntervalMillisecond int

	// MaxContentLength is the largest accepted payload in bytes (0 = frame default)
	MaxContentLength uint32

	// Transport holds the socket settings
	Transport ServerTransportConfig

	// MetricsEndpoint is the address of the prometheus endpoint (empty disables it)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// Timeout returns the command timeout as a duration
func (c *ServerConfig) Timeout() time.Duration {
	return secondsToDuration(c.TimeoutSecond)
}

// SelectTimeout returns the bounded event loop wait, at least one millisecond
func (c *ServerConfig) SelectTimeout() time.Duration {
	return time.Duration(max(c.SelectTimeoutMillisecond, 1)) * time.Millisecond
}

// ReadInterval returns the ReadValue poll interval (0 if disabled)
func (c *ServerConfig) ReadInterval() time.Duration {
	return time.Duration(max(c.ReadIntervalMillisecond, 0)) * time.Millisecond
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Device
	addSection("Device")
	addField("Name", c.DeviceName)

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Command Timeout", fmt.Sprintf("%s sec", formatSeconds(c.TimeoutSecond)))
	addField("Select Timeout", fmt.Sprintf("%d ms", c.SelectTimeoutMillisecond))
	addField("Read Interval", fmt.Sprintf("%d ms", c.ReadIntervalMillisecond))
	addField("Max Content Length", fmt.Sprintf("%d bytes", c.MaxContentLength))

	// Socket settings
	addSection("Socket")
	addField("Read Timeout", fmt.Sprintf("%d sec", c.Transport.ReadTimeoutSecond))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))

	// Logging and metrics
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the settings of the client transport layer
type ClientTransportConfig struct {
	SocketConf
	TCPConf

	// Endpoints are used round robin, one connection per request
	Endpoints []string
}

// ClientConfig holds all configuration parameters of a device client.
type ClientConfig struct {
	// TimeoutSecond bounds a whole request/response exchange (0 = no timeout)
	TimeoutSecond float64

	// MaxContentLength is the largest accepted response payload (0 = frame default)
	MaxContentLength uint32

	Transport ClientTransportConfig
}

// Timeout returns the response timeout as a duration
func (c *ClientConfig) Timeout() time.Duration {
	return secondsToDuration(c.TimeoutSecond)
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%s sec", formatSeconds(c.TimeoutSecond)))
	addField("Max Content Length", fmt.Sprintf("%d bytes", c.MaxContentLength))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func secondsToDuration(sec float64) time.Duration {
	if sec <= 0 || math.IsNaN(sec) {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

// formatSeconds renders seconds without trailing zeros (e.g. 2, 0.5)
func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
