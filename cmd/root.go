package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/sockdev/cmd/device"
	"github.com/ValentinKolb/sockdev/cmd/serve"
	"github.com/ValentinKolb/sockdev/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "sockdev",
		Short: "remote device control over sockets",
		Long: fmt.Sprintf(`sockdev (v%s)

Serve a lab device over a TCP or Unix socket and call its methods
remotely as if the driver were local. Commands are executed one at a
time, status values are served from a snapshot without touching the device.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of sockdev",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sockdev v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(device.DeviceCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use for requests (json, cbor)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
