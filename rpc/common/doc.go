// Package common contains the data structures shared by the sockdev RPC packages:
//
//   - The request and response payloads (Request, Response, Action)
//
//   - The server and client configuration structs (ServerConfig, ClientConfig)
//     including a human readable String() dump used at startup
//
//   - The logger factory. All packages log through named loggers obtained from
//     dragonboat's logger package (logger.GetLogger("rpc"), ...). InitLoggers installs
//     a factory backed by log/slog that writes JSON lines, or colored console output
//     when the ENV environment variable is set to "development".
//
// Wire format of the payloads (content-type text/json):
//
//	request:  {"action": "query" | "command" | "info", "value": "<string>"}
//	response: {"result": <any>} or {"error": "<string>"}
package common
