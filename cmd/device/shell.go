package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell for a device server",
	Long: `Starts an interactive shell. Every line is sent as a command (e.g. SetVoltage(5.0)),
except for the shell commands listed by 'help'.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, _ []string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "device> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("info"),
			readline.PcItem("query",
				readline.PcItem(device.KeyReadValue),
				readline.PcItem(device.KeyVerification),
				readline.PcItem(device.KeyInfo),
			),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	printShellHelp(out)

	for {
		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		fields := strings.Fields(input)
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "help":
			printShellHelp(out)
		case "info":
			if info, err := rpcDevice.Info(cmd.Context()); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			} else {
				printInfo(info)
			}
		case "query":
			if len(fields) != 2 {
				fmt.Fprintln(out, "Usage: query <key>")
				continue
			}
			if value, err := rpcDevice.Query(cmd.Context(), fields[1]); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			} else {
				fmt.Fprintf(out, "%s = %s\n", fields[1], device.FormatValue(value))
			}
		default:
			shellCommand(cmd.Context(), out, input)
		}
	}
}

func shellCommand(ctx context.Context, out io.Writer, text string) {
	if _, err := device.ParseCommand(text); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	r, err := rpcDevice.Command(ctx, text)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	printResult(r)
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, `
Commands:
  <Method>(<args>)   execute a device method, e.g. SetVoltage(5.0)
  query <key>        read a snapshot value (ReadValue, verification, info)
  info               print the device info
  help               show this help
  exit               leave the shell`)
}
