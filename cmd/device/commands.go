package device

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ValentinKolb/sockdev/lib/call"
	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/spf13/cobra"
)

var (
	queryCmd = &cobra.Command{
		Use:   "query [key]",
		Short: "Reads a value of the device snapshot (e.g. ReadValue, verification)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if value, err := rpcDevice.Query(cmd.Context(), key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, value=%v\n", key, value)
			}
			return nil
		},
	}
	commandCmd = &cobra.Command{
		Use:   "command [text]",
		Short: "Executes a command such as 'SetVoltage(5.0)' and prints the result tuple",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if r, err := rpcDevice.Command(cmd.Context(), text); err != nil {
				return err
			} else {
				printResult(r)
			}
			return nil
		},
	}
	callCmd = &cobra.Command{
		Use:   "call [text]",
		Short: "Executes a command through the call wrapper and prints only its value",
		Long:  "Executes a command like a local method call: exceptions print the failure value, timeouts return an error.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := device.ParseCommand(strings.Join(args, " "))
			if err != nil {
				return err
			}
			w := call.NewWrapper("remote", rpcDevice)
			if value, err := w.InvokeCommand(cmd.Context(), c); err != nil {
				return err
			} else {
				fmt.Println(device.FormatValue(value))
			}
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the static device info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if info, err := rpcDevice.Info(cmd.Context()); err != nil {
				return err
			} else {
				printInfo(info)
			}
			return nil
		},
	}
	rawCmd = &cobra.Command{
		Use:   "raw [content-type] [payload]",
		Short: "Sends a payload with an arbitrary content type and prints the response frame",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f, err := rpcDevice.SendRaw(cmd.Context(), args[0], "binary", []byte(args[1])); err != nil {
				return err
			} else {
				fmt.Printf("content-type=%s, content-encoding=%s\n%s\n", f.Header.ContentType, f.Header.ContentEncoding, f.Payload)
			}
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func printResult(r device.Result) {
	status := "ok"
	switch {
	case r.IsTimeout():
		status = "timeout"
	case r.IsException():
		status = "exception"
	}
	fmt.Printf("%s %s -> %s (%s)\n", r.Timestamp.Format("15:04:05.000"), r.Command, device.FormatValue(r.Value), status)
}

func printInfo(info any) {
	m, ok := info.(map[string]any)
	if !ok {
		fmt.Printf("%v\n", info)
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-12s: %v\n", k, m[k])
	}
}

