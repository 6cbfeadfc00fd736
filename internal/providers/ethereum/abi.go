package ethereum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/feral-file/ff-marketplace-sync/internal/adapter"
	"github.com/feral-file/ff-marketplace-sync/internal/domain"
)

// defaultPurchaseABI describes the escrow contract purchase event
const defaultPurchaseABI = `[{
	"anonymous": false,
	"type": "event",
	"name": "NFTPurchased",
	"inputs": [
		{"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
		{"indexed": true, "internalType": "address", "name": "buyer", "type": "address"},
		{"indexed": true, "internalType": "address", "name": "seller", "type": "address"},
		{"indexed": false, "internalType": "uint256", "name": "price", "type": "uint256"}
	]
}]`

// Names of the event inputs the source reads
const (
	inputTokenID = "tokenId"
	inputBuyer   = "buyer"
	inputSeller  = "seller"
	inputPrice   = "price"
)

// truffleArtifact is the compiled contract JSON produced by truffle and hardhat
type truffleArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadEventABI loads the purchase event definition.
// An empty path selects the built-in NFTPurchased definition. The file may hold
// a raw ABI array or a compiled artifact with an "abi" key.
func LoadEventABI(fs adapter.FileSystem, path, eventName string) (*abi.Event, error) {
	if eventName == "" {
		eventName = domain.DEFAULT_PURCHASE_EVENT_NAME
	}

	raw := []byte(defaultPurchaseABI)
	if path != "" {
		data, err := fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read ABI file %s: %w", path, err)
		}
		raw = data
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var artifact truffleArtifact
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return nil, fmt.Errorf("failed to parse contract artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return nil, fmt.Errorf("contract artifact %s has no abi key", path)
		}
		trimmed = artifact.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(trimmed))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	event, ok := parsed.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("event %s not found in ABI", eventName)
	}

	if err := validateEventInputs(event); err != nil {
		return nil, err
	}

	return &event, nil
}

// validateEventInputs checks the event carries the inputs a purchase needs
func validateEventInputs(event abi.Event) error {
	expected := map[string]string{
		inputTokenID: "uint256",
		inputBuyer:   "address",
		inputSeller:  "address",
		inputPrice:   "uint256",
	}

	for _, input := range event.Inputs {
		if want, ok := expected[input.Name]; ok {
			if input.Type.String() != want {
				return fmt.Errorf("event %s input %s has type %s, expected %s", event.Name, input.Name, input.Type.String(), want)
			}
			delete(expected, input.Name)
		}
	}

	if len(expected) > 0 {
		missing := make([]string, 0, len(expected))
		for name := range expected {
			missing = append(missing, name)
		}
		return fmt.Errorf("event %s is missing inputs: %s", event.Name, strings.Join(missing, ", "))
	}

	return nil
}
