package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/sockdev/cmd/util"
	"github.com/ValentinKolb/sockdev/lib/device/sim"
	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig  = &common.ServerConfig{}
	serveCmdProfile = sim.DefaultProfile()
	ServeCmd        = &cobra.Command{
		Use:     "serve",
		Short:   "Start a device server",
		Long:    `Start a device server for a simulated power supply with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is SOCKDEV_<flag> (e.g. SOCKDEV_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "profile"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Path to a yaml profile of the simulated power supply (name, model, serial, max_voltage, load_ohm, noise_volt, time_offset, initial_voltage, output_on). Empty uses the built-in default"))

	key = "device-name"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Name of the device in logs and metrics. Empty uses the name of the profile"))

	key = "timeout"
	ServeCmd.PersistentFlags().Float64(key, 2, cmdUtil.WrapString("Timeout in seconds a command request waits for the device before it is answered with a timeout result"))

	key = "select-timeout"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("Upper bound in milliseconds of a single wait of the event loop. Bounds how late a command timeout is answered"))

	key = "read-interval"
	ServeCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("Interval in milliseconds at which ReadValue is called to refresh the snapshot (0 disables polling)"))

	key = "max-content-length"
	ServeCmd.PersistentFlags().Uint32(key, 0, cmdUtil.WrapString("The largest accepted request payload in bytes (0 = default)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:8080, /tmp/psu.sock, ...)"))

	key = "read-timeout"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Seconds after which a connection that did not deliver a complete request is closed (0 = never)"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("The size of the write buffer for the transport (in KB)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("The size of the read buffer for the transport (in KB)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time for the transport (in seconds, only for tcp)"))

	key = "metrics"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the prometheus metrics endpoint (e.g. localhost:9100). Empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// load the device profile
	if path := viper.GetString("profile"); path != "" {
		profile, err := sim.LoadProfile(path)
		if err != nil {
			return err
		}
		serveCmdProfile = profile
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.DeviceName = viper.GetString("device-name")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetFloat64("timeout")
	serveCmdConfig.SelectTimeoutMillisecond = viper.GetInt("select-timeout")
	serveCmdConfig.ReadIntervalMillisecond = viper.GetInt("read-interval")
	serveCmdConfig.MaxContentLength = viper.GetUint32("max-content-length")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		ReadTimeoutSecond: viper.GetInt("read-timeout"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
	}

	if serveCmdConfig.TimeoutSecond <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", serveCmdConfig.TimeoutSecond)
	}
	return nil
}

// run starts the device server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {

	// Parse the transport
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	supply, err := sim.New(serveCmdProfile)
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		supply,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serv.Serve(ctx)
}
