package cmdargs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli"
)

// ParamsParsingDoc is a documentation for parameters parsing.
const ParamsParsingDoc = `   Every parameter that is valid JSON (number, boolean, null, quoted string,
   object or array) is passed as is, everything else is passed as a string.
   Use 'str:' prefix to pass a string that looks like JSON, e.g. 'str:true'.
   Hex values like heights and addresses don't need quoting, '0x10' is not
   valid JSON and becomes a string.`

// StringPrefix forces parameter to be a string.
const StringPrefix = "str:"

// ParseParams converts command line arguments into JSON-RPC parameters.
func ParseParams(args []string) []interface{} {
	params := make([]interface{}, 0, len(args))
	for _, a := range args {
		params = append(params, ParseParam(a))
	}
	return params
}

// ParseParam converts a single argument.
func ParseParam(a string) interface{} {
	if s, ok := strings.CutPrefix(a, StringPrefix); ok {
		return s
	}
	switch a {
	case "true":
		return true
	case "false":
		return false
	}
	if json.Valid([]byte(a)) {
		return json.RawMessage(a)
	}
	return a
}

// EnsureNone returns an error if there are any positional arguments present.
// It can be used to check for them in commands that don't accept arguments.
func EnsureNone(ctx *cli.Context) *cli.ExitError {
	if ctx.Args().Present() {
		return cli.NewExitError("additional arguments given while this command expects none", 1)
	}
	return nil
}

// GetHashFromContext parses the first argument as a 32-byte hex hash.
func GetHashFromContext(ctx *cli.Context, what string) (common.Hash, *cli.ExitError) {
	if !ctx.Args().Present() {
		return common.Hash{}, cli.NewExitError(fmt.Sprintf("%s is missing", what), 1)
	}
	arg := ctx.Args().First()
	b, err := hexutil.Decode(arg)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, cli.NewExitError(fmt.Sprintf("invalid %s: %s", what, arg), 1)
	}
	return common.BytesToHash(b), nil
}
