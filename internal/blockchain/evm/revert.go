package evm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// knownNodeErrors are node rejection messages reduced to their short form
var knownNodeErrors = []string{
	"insufficient funds",
	"nonce too low",
	"replacement transaction underpriced",
	"intrinsic gas too low",
}

const revertPrefix = "execution reverted: "

// TxError is a failed contract interaction together with a human-readable
// reason suitable for display.
type TxError struct {
	Op     string
	reason string
	Err    error
}

func newTxError(op string, err error) *TxError {
	return &TxError{Op: op, reason: RevertReason(err), Err: err}
}

func (e *TxError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.reason)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// Reason returns the display reason of the failure
func (e *TxError) Reason() string {
	return e.reason
}

// RevertReason extracts a short reason from a transaction error.
//
// Revert payloads carried by JSON-RPC data errors are ABI-decoded
// (Error(string) and Panic(uint256)); node rejections such as
// "insufficient funds for gas * price + value" are shortened; anything else
// falls back to the error message.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}

	var txErr *TxError
	if errors.As(err, &txErr) && txErr.reason != "" {
		return txErr.reason
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := unpackRevertData(dataErr.ErrorData()); ok {
			return reason
		}
	}

	msg := err.Error()
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		msg = rpcErr.Error()
	}

	for _, known := range knownNodeErrors {
		if strings.Contains(msg, known) {
			return known
		}
	}

	if i := strings.Index(msg, revertPrefix); i >= 0 {
		return msg[i+len(revertPrefix):]
	}

	return msg
}

func unpackRevertData(data interface{}) (string, bool) {
	hexData, ok := data.(string)
	if !ok {
		return "", false
	}

	raw, err := hexutil.Decode(hexData)
	if err != nil {
		return "", false
	}

	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}
