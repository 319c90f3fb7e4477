/*
Package fakecli implements a tiny cita-cli replacement used in tests to
exercise the CLI transport without the real binary.
*/
package fakecli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Parameter slots of cita-cli rpc subcommands. An empty name is the call
// object built from --from, --to and --data, "filter" is the log filter
// object built from --address, --topic, --from and --to.
var cliParams = map[string][]string{
	"peerCount":             nil,
	"blockNumber":           nil,
	"newBlockFilter":        nil,
	"getBalance":            {"--address", "--height"},
	"sendRawTransaction":    {"--byte-code"},
	"getTransactionReceipt": {"--hash"},
	"getTransaction":        {"--hash"},
	"getTransactionProof":   {"--hash"},
	"getTransactionCount":   {"--address", "--height"},
	"getCode":               {"--address", "--height"},
	"getBlockByNumber":      {"--height", "--with-txs"},
	"getBlockByHash":        {"--hash", "--with-txs"},
	"getBlockHeader":        {"--height"},
	"call":                  {"", "--height"},
	"getStorageAt":          {"--address", "--key", "--height"},
	"getStateProof":         {"--address", "--key", "--height"},
	"getLogs":               {"filter"},
	"newFilter":             {"filter"},
	"getFilterChanges":      {"--id"},
	"uninstallFilter":       {"--id"},
}

// Flags that can be repeated.
var cliMultiFlags = map[string]bool{
	"--address": true,
	"--topic":   true,
}

var cliBoolFlags = map[string]bool{
	"--with-txs": true,
	"--no-color": true,
}

// Run is a minimal cita-cli replacement for tests. It accepts
//
//	rpc --url <endpoint> [--no-color] <method> [--flag value ...]
//
// posts the corresponding JSON-RPC request to the endpoint and prints the
// response. It returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	req, url, err := parseCLI(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	body, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	cli := &http.Client{Timeout: 10 * time.Second}
	resp, err := cli.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, string(bytes.TrimSpace(out)))
	return 0
}

type cliRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

func parseCLI(args []string) (*cliRequest, string, error) {
	if len(args) == 0 || args[0] != "rpc" {
		return nil, "", errors.New("usage: rpc --url <url> <method> [flags]")
	}
	var (
		url    string
		method string
		flags  = make(map[string]string)
		multi  = make(map[string][]string)
	)
	for i := 1; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--url":
			if i+1 >= len(args) {
				return nil, "", errors.New("--url needs a value")
			}
			url = args[i+1]
			i++
		case cliBoolFlags[a]:
			flags[a] = "true"
		case len(a) > 2 && a[:2] == "--":
			if i+1 >= len(args) {
				return nil, "", fmt.Errorf("%s needs a value", a)
			}
			flags[a] = args[i+1]
			if cliMultiFlags[a] {
				multi[a] = append(multi[a], args[i+1])
			}
			i++
		case method == "":
			method = a
		default:
			return nil, "", fmt.Errorf("unexpected argument %q", a)
		}
	}
	if url == "" || method == "" {
		return nil, "", errors.New("url and method are mandatory")
	}
	slots, ok := cliParams[method]
	if !ok {
		return nil, "", fmt.Errorf("unknown method %s", method)
	}
	params := make([]interface{}, 0, len(slots))
	for _, slot := range slots {
		switch {
		case slot == "":
			obj := make(map[string]string)
			for _, f := range []string{"from", "to", "data"} {
				if v, ok := flags["--"+f]; ok {
					obj[f] = v
				}
			}
			params = append(params, obj)
		case slot == "filter":
			params = append(params, filterObject(flags, multi))
		case cliBoolFlags[slot]:
			params = append(params, flags[slot] == "true")
		default:
			if v, ok := flags[slot]; ok {
				params = append(params, v)
			}
		}
	}
	return &cliRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1}, url, nil
}

func filterObject(flags map[string]string, multi map[string][]string) map[string]interface{} {
	obj := make(map[string]interface{})
	switch addrs := multi["--address"]; len(addrs) {
	case 0:
	case 1:
		obj["address"] = addrs[0]
	default:
		obj["address"] = addrs
	}
	if topics := multi["--topic"]; len(topics) != 0 {
		ts := make([]interface{}, len(topics))
		for i, t := range topics {
			if t != "null" {
				ts[i] = t
			}
		}
		obj["topics"] = ts
	}
	if v, ok := flags["--from"]; ok {
		obj["fromBlock"] = v
	}
	if v, ok := flags["--to"]; ok {
		obj["toBlock"] = v
	}
	return obj
}
