// Command hamrctl is a one-shot control client for hamrd: it opens a single
// connection, registers (as a ui session for open, query and select, as a
// control session for rescan and status), issues one RPC, prints the JSON
// result, and exits.
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamr/hamrd/internal/rpc"
)

func main() {
	var socketPath string

	root := &cobra.Command{Use: "hamrctl"}
	root.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(), "path to hamrd's control socket")

	root.AddCommand(
		simpleCommand("rescan", "rescan_plugins", nil, &socketPath),
		simpleCommand("status", "status", nil, &socketPath),
		&cobra.Command{
			Use:   "query <text>",
			Short: "run a query as if typed into the launcher (registers as ui)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(socketPath, rpc.RoleUI, "query_changed", map[string]string{"query": args[0]})
			},
		},
		&cobra.Command{
			Use:   "select <item-id> [action]",
			Short: "select an item in the active plugin flow",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				action := "activate"
				if len(args) == 2 {
					action = args[1]
				}
				return call(socketPath, rpc.RoleUI, "item_selected", map[string]string{"item_id": args[0], "action": action})
			},
		},
		&cobra.Command{
			Use:   "open",
			Short: "signal that the launcher window was opened",
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(socketPath, rpc.RoleUI, "launcher_opened", nil)
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// simpleCommand builds a subcommand that registers as a control session and
// issues one fixed RPC method with no arguments.
func simpleCommand(use, method string, params any, socketPath *string) *cobra.Command {
	role := rpc.RoleControl
	return &cobra.Command{
		Use:   use,
		Short: "call " + method,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(*socketPath, role, method, params)
		},
	}
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/hamr.sock"
	}
	return "/tmp/hamr.sock"
}

// call opens one connection, registers with the given role, issues method
// with params, and prints the JSON result (or error) to stdout.
func call(socketPath string, role rpc.ClientRole, method string, params any) error {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return fmt.Errorf("hamrctl: connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	codec := rpc.NewCodec(conn)

	if err := sendRequest(codec, rpc.NewRequestID(1), "register", rpc.RegisterParams{Role: role}); err != nil {
		return err
	}
	if _, err := readResponse(codec); err != nil {
		return fmt.Errorf("hamrctl: register failed: %w", err)
	}

	if err := sendRequest(codec, rpc.NewRequestID(2), method, params); err != nil {
		return err
	}
	result, err := readResponse(codec)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}

func sendRequest(codec *rpc.Codec, id rpc.RequestID, method string, params any) error {
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return err
		}
		raw = encoded
	}
	req := rpc.Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return codec.WriteFrame(payload)
}

func readResponse(codec *rpc.Codec) (json.RawMessage, error) {
	frame, err := codec.ReadFrame()
	if err != nil {
		return nil, err
	}
	msg, err := rpc.ParseMessage(frame)
	if err != nil {
		return nil, err
	}
	if msg.Response == nil {
		return readResponse(codec) // a stray notification arrived first; skip it
	}
	if msg.Response.Error != nil {
		return nil, msg.Response.Error
	}
	return msg.Response.Result, nil
}
