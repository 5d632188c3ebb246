package device

import (
	"github.com/ValentinKolb/sockdev/cmd/util"
	"github.com/ValentinKolb/sockdev/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcDevice *client.DeviceClient

	// DeviceCommands represents the device command group
	DeviceCommands = &cobra.Command{
		Use:               "device",
		Short:             "Talk to a running device server",
		PersistentPreRunE: setupDeviceClient,
	}
)

func init() {
	// Add common RPC flags to the device command
	util.SetupRPCClientFlags(DeviceCommands)

	// Add subcommands
	DeviceCommands.AddCommand(queryCmd)
	DeviceCommands.AddCommand(commandCmd)
	DeviceCommands.AddCommand(callCmd)
	DeviceCommands.AddCommand(infoCmd)
	DeviceCommands.AddCommand(rawCmd)
	DeviceCommands.AddCommand(shellCmd)
	DeviceCommands.AddCommand(perfTestCmd)
}

// setupDeviceClient initializes the RPC device client
func setupDeviceClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	// Create the device client
	rpcDevice, err = client.NewDeviceClient(
		*config,
		t,
		s,
	)

	return err
}
