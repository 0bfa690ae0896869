package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// ============================================================================
// bear-ctl - Command-line IPC Client
// ============================================================================
// Sends requests to the bearbridge daemon over its unix socket.
//
// Usage:
//   bear-ctl mode 2
//   bear-ctl reset
//   bear-ctl send '{"data":"3"}'
//   bear-ctl wake
//   bear-ctl status
//   bear-ctl bind --name BearObject --scale 1.5
//   bear-ctl unbind
// ============================================================================

// Wire types (duplicated from the daemon for a standalone binary)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type bridgeMessage struct {
	Payload string `json:"payload"`
}

type vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type bindActor struct {
	Name      string `json:"name,omitempty"`
	BaseScale *vec3  `json:"base_scale,omitempty"`
}

type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

var (
	socketPath string
	timeout    time.Duration

	bindName  string
	bindScale float64
)

var rootCmd = &cobra.Command{
	Use:           "bear-ctl",
	Short:         "Control a running bearbridge daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var modeCmd = &cobra.Command{
	Use:   "mode <1|2|3>",
	Short: "Switch the bear into a mode",
	Long: `Switch the bear into one of its three modes:

  1 - study focus
  2 - rest
  3 - activity

The command goes through the same bridge path as a host message.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > 3 {
			return fmt.Errorf("mode must be 1, 2 or 3 (got %q)", args[0])
		}
		return sendBridge(strconv.Itoa(n))
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return the bear to its neutral pose",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendBridge("RESET")
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <payload>",
	Short: "Send a raw bridge payload",
	Long: `Send a raw payload exactly as a host would, for example:

  bear-ctl send 2
  bear-ctl send '{"data":"RESET"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendBridge(args[0])
	},
}

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Ask the host to nudge the user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := request("wake", nil)
		return printOK(err)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the daemon's scene state as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := request("state", nil)
		if err != nil {
			return err
		}
		var pretty map[string]any
		if err := json.Unmarshal(resp.State, &pretty); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Bind the actor (resets it to neutral)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data := bindActor{Name: bindName}
		if cmd.Flags().Changed("scale") {
			data.BaseScale = &vec3{X: bindScale, Y: bindScale, Z: bindScale}
		}
		_, err := request("bind_actor", data)
		return printOK(err)
	},
}

var unbindCmd = &cobra.Command{
	Use:   "unbind",
	Short: "Release the actor; commands are skipped until it is bound again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := request("unbind_actor", nil)
		return printOK(err)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/tmp/bearbridge.sock", "Unix domain socket path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Second, "Request timeout")

	bindCmd.Flags().StringVar(&bindName, "name", "", "Actor name (default: keep current)")
	bindCmd.Flags().Float64Var(&bindScale, "scale", 1, "Uniform base scale")

	rootCmd.AddCommand(modeCmd, resetCmd, sendCmd, wakeCmd, statusCmd, bindCmd, unbindCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func sendBridge(payload string) error {
	_, err := request("bridge_message", bridgeMessage{Payload: payload})
	return printOK(err)
}

func printOK(err error) error {
	if err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func request(typ string, data any) (ipcResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	env := envelope{Type: typ}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return ipcResponse{}, fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Data = b
	}
	line, err := json.Marshal(env)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("marshal envelope: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return ipcResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return ipcResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}
