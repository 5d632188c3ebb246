// Package client implements the client side of the device RPC protocol.
//
// Key Components:
//
//   - DeviceClient: sends query, command and info requests. It implements
//     call.ICaller, so a call.Wrapper can run device methods remotely.
//
//   - NewPowerSupplyProxy: a sim.IPowerSupply that forwards every method through a
//     call.Wrapper. Code written against sim.IPowerSupply works the same with the
//     local driver and the proxy.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		TimeoutSecond: 5,
//		Transport: common.ClientTransportConfig{
//			Endpoints: []string{"localhost:65432"},
//		},
//	}
//
//	c, _ := client.NewDeviceClient(config, tcp.NewTCPClientTransport(), serializer.NewJSONSerializer())
//
//	reading, _ := c.Query(ctx, "ReadValue")
//	result, _ := c.Command(ctx, "SetVoltage(5.0)")
//
//	supply := client.NewPowerSupplyProxy("psu", c)
//	volts, _ := supply.GetVoltage()
//
// Every request opens its own connection (the protocol carries one request per
// connection). Requests are never retried automatically.
package client
