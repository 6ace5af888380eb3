// Bridge contract ABI definitions shared by the escrow and release services.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// BridgeABIJSON is the interface of the Bridge escrow/release contract deployed
// on every supported chain. deposit locks funds on the origin chain and emits
// DepositReceived; withdraw pays out on the destination chain and is restricted
// to the relayer key on-chain.
const BridgeABIJSON = `[
	{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[
		{"name":"asset","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"account","type":"address"},
		{"name":"data","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[
		{"name":"asset","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"account","type":"address"},
		{"name":"data","type":"bytes32"}],"outputs":[]},
	{"type":"event","name":"DepositReceived","anonymous":false,"inputs":[
		{"name":"asset","type":"address","indexed":true},
		{"name":"account","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"data","type":"bytes32","indexed":false}]},
	{"type":"event","name":"WithdrawExecuted","anonymous":false,"inputs":[
		{"name":"asset","type":"address","indexed":true},
		{"name":"account","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"data","type":"bytes32","indexed":false}]}
]`

// FaucetABIJSON is the testnet token dispenser interface.
const FaucetABIJSON = `[
	{"type":"function","name":"supply","stateMutability":"nonpayable","inputs":[
		{"name":"assets","type":"address[]"},
		{"name":"amounts","type":"uint256[]"},
		{"name":"account","type":"address"}],"outputs":[]}
]`

var (
	bridgeABI  abi.ABI
	faucetABI  abi.ABI
	abiOnce    sync.Once
	abiInitErr error
)

func parseABIs() {
	var err error
	bridgeABI, err = abi.JSON(strings.NewReader(BridgeABIJSON))
	if err != nil {
		abiInitErr = fmt.Errorf("failed to parse bridge ABI: %w", err)
		return
	}
	faucetABI, err = abi.JSON(strings.NewReader(FaucetABIJSON))
	if err != nil {
		abiInitErr = fmt.Errorf("failed to parse faucet ABI: %w", err)
	}
}

// BridgeABI returns the parsed Bridge contract ABI
func BridgeABI() (abi.ABI, error) {
	abiOnce.Do(parseABIs)
	return bridgeABI, abiInitErr
}

// FaucetABI returns the parsed Faucet contract ABI
func FaucetABI() (abi.ABI, error) {
	abiOnce.Do(parseABIs)
	return faucetABI, abiInitErr
}
