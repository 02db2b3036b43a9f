package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Op names one contract write operation. The value is the contract
// function name as it appears in the ABI.
type Op string

const (
	OpRegisterProduct Op = "registerProduct"
	OpUpdateStatus    Op = "updateProductStatus"
	OpAddTraceRecord  Op = "addTraceRecord"

	fnGetProduct = "getProduct"
)

// defaultGasLimit is used when gas estimation fails. Estimation fails
// often on testnets for transactions that would still succeed, so the
// submitter falls back instead of aborting.
var defaultGasLimit = map[Op]uint64{
	OpRegisterProduct: 300000,
	OpUpdateStatus:    200000,
	OpAddTraceRecord:  250000,
}

const registryABIJSON = `[
  {
    "inputs": [
      {"name": "productId", "type": "string"},
      {"name": "name", "type": "string"},
      {"name": "batch", "type": "string"},
      {"name": "manufacturer", "type": "string"}
    ],
    "name": "registerProduct",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "productId", "type": "string"},
      {"name": "newStatus", "type": "string"}
    ],
    "name": "updateProductStatus",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "productId", "type": "string"},
      {"name": "stage", "type": "string"},
      {"name": "company", "type": "string"},
      {"name": "location", "type": "string"}
    ],
    "name": "addTraceRecord",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"name": "productId", "type": "string"}],
    "name": "getProduct",
    "outputs": [
      {"name": "", "type": "string"},
      {"name": "", "type": "string"},
      {"name": "", "type": "string"},
      {"name": "", "type": "string"},
      {"name": "", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "productId", "type": "string"},
      {"indexed": false, "name": "name", "type": "string"},
      {"indexed": false, "name": "manufacturer", "type": "string"}
    ],
    "name": "ProductRegistered",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "productId", "type": "string"},
      {"indexed": false, "name": "newStatus", "type": "string"}
    ],
    "name": "ProductStatusUpdated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "productId", "type": "string"},
      {"indexed": false, "name": "stage", "type": "string"},
      {"indexed": false, "name": "company", "type": "string"}
    ],
    "name": "TraceRecordAdded",
    "type": "event"
  }
]`

var registryABI = mustParseABI(registryABIJSON)

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic("chain: bad contract ABI: " + err.Error())
	}
	return parsed
}
