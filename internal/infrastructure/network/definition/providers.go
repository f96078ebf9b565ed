package networkdefinition

import (
	"fmt"
	"sort"
	"strings"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// NetworkDefinitionProvider labels network ids and binds contract descriptors
// to the detected network.
type NetworkDefinitionProvider struct {
	logger         port.Logger
	allNetworkDefs map[entity.NetworkID]entity.NetworkDefinition
	activeIDs      []entity.NetworkID
}

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.NetworkDefinition{
		ID:               1,
		Name:             "Ethereum Mainnet",
		Identifier:       "ethereum",
		NativeSymbol:     "ETH",
		BlockExplorerURL: "https://etherscan.io",
	}
	Ropsten = entity.NetworkDefinition{
		ID:               3,
		Name:             "Ropsten Testnet",
		Identifier:       "ropsten",
		NativeSymbol:     "ETH",
		BlockExplorerURL: "https://ropsten.etherscan.io",
	}
	Rinkeby = entity.NetworkDefinition{
		ID:               4,
		Name:             "Rinkeby Testnet",
		Identifier:       "rinkeby",
		NativeSymbol:     "ETH",
		BlockExplorerURL: "https://rinkeby.etherscan.io",
	}
	Goerli = entity.NetworkDefinition{
		ID:               5,
		Name:             "Goerli Testnet",
		Identifier:       "goerli",
		NativeSymbol:     "ETH",
		BlockExplorerURL: "https://goerli.etherscan.io",
	}
	Kovan = entity.NetworkDefinition{
		ID:               42,
		Name:             "Kovan Testnet",
		Identifier:       "kovan",
		NativeSymbol:     "ETH",
		BlockExplorerURL: "https://kovan.etherscan.io",
	}
	Sepolia = entity.NetworkDefinition{
		ID:               11155111,
		Name:             "Sepolia Testnet",
		Identifier:       "sepolia",
		NativeSymbol:     "ETH",
		BlockExplorerURL: "https://sepolia.etherscan.io",
	}
	GanacheCLI = entity.NetworkDefinition{
		ID:           1337,
		Name:         "Ganache CLI",
		Identifier:   "ganache-cli",
		NativeSymbol: "ETH",
	}
	Ganache = entity.NetworkDefinition{
		ID:           5777,
		Name:         "Ganache",
		Identifier:   "ganache",
		NativeSymbol: "ETH",
	}
)

// allKnownDefinitions is a helper to quickly access all hardcoded definitions.
var allKnownDefinitions = map[entity.NetworkID]entity.NetworkDefinition{
	Ethereum.ID:   Ethereum,
	Ropsten.ID:    Ropsten,
	Rinkeby.ID:    Rinkeby,
	Goerli.ID:     Goerli,
	Kovan.ID:      Kovan,
	Sepolia.ID:    Sepolia,
	GanacheCLI.ID: GanacheCLI,
	Ganache.ID:    Ganache,
}

// NewNetworkDefinitionProvider creates a provider. A network is active when at
// least one descriptor carries a deployment for it.
func NewNetworkDefinitionProvider(log port.Logger, descriptors map[entity.ContractRole]entity.ContractDescriptor) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger:         log,
		allNetworkDefs: allKnownDefinitions,
	}

	seen := make(map[entity.NetworkID]struct{})
	for _, d := range descriptors {
		for id := range d.Networks {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			p.activeIDs = append(p.activeIDs, id)
		}
	}
	sort.Slice(p.activeIDs, func(i, j int) bool { return p.activeIDs[i] < p.activeIDs[j] })

	if len(p.activeIDs) == 0 {
		p.logger.Warn("No deployments found in contract artifacts. Every contract will be reported as not deployed.")
	} else {
		p.logger.Info(fmt.Sprintf("NetworkDefinitionProvider initialized. Networks with deployments: %d", len(p.activeIDs)))
		for _, id := range p.activeIDs {
			p.logger.Debug(fmt.Sprintf("  - Deployment network: %s (ID: %s)", p.Lookup(id).Name, id))
		}
	}

	return p
}

// Lookup returns the definition for id. Unknown ids get a generic label.
func (p *NetworkDefinitionProvider) Lookup(id entity.NetworkID) entity.NetworkDefinition {
	if p != nil {
		if def, ok := p.allNetworkDefs[id]; ok {
			return def
		}
	}
	return entity.NetworkDefinition{
		ID:           id,
		Name:         fmt.Sprintf("Network %s", id),
		Identifier:   "network-" + id.String(),
		NativeSymbol: "ETH",
	}
}

// ActiveNetworkIDs returns the ids present in any deployment table, ascending.
func (p *NetworkDefinitionProvider) ActiveNetworkIDs() []entity.NetworkID {
	if p == nil {
		return []entity.NetworkID{}
	}
	out := make([]entity.NetworkID, len(p.activeIDs))
	copy(out, p.activeIDs)
	return out
}

// IsActive reports whether any descriptor is deployed on id.
func (p *NetworkDefinitionProvider) IsActive(id entity.NetworkID) bool {
	for _, active := range p.ActiveNetworkIDs() {
		if active == id {
			return true
		}
	}
	return false
}

// Bind binds descriptor to networkID. A missing or malformed deployment entry
// yields *entity.ContractNotDeployedError.
func Bind(descriptor entity.ContractDescriptor, networkID entity.NetworkID, caller bind.ContractCaller) (*entity.ContractHandle, error) {
	dep, ok := descriptor.DeploymentFor(networkID)
	if !ok {
		return nil, &entity.ContractNotDeployedError{Name: descriptor.Name, NetworkID: networkID}
	}

	raw := strings.TrimSpace(dep.Address)
	if !common.IsHexAddress(raw) {
		return nil, &entity.ContractNotDeployedError{
			Name:      descriptor.Name,
			NetworkID: networkID,
			Reason:    fmt.Sprintf("malformed address %q", dep.Address),
		}
	}
	address := common.HexToAddress(raw)
	if address == (common.Address{}) {
		return nil, &entity.ContractNotDeployedError{
			Name:      descriptor.Name,
			NetworkID: networkID,
			Reason:    "zero address",
		}
	}

	return &entity.ContractHandle{
		Name:      descriptor.Name,
		Role:      descriptor.Role,
		Address:   address,
		NetworkID: networkID,
		ABI:       descriptor.ABI,
		Bound:     bind.NewBoundContract(address, descriptor.ABI, caller, nil, nil),
	}, nil
}
