package entity

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ContractRole is the logical position a contract takes in the farm.
type ContractRole string

const (
	// RoleStakingToken is the token users deposit (approve + stake).
	RoleStakingToken ContractRole = "stakingToken"
	// RoleRewardToken is the token the farm pays out.
	RoleRewardToken ContractRole = "rewardToken"
	// RoleFarm is the staking contract.
	RoleFarm ContractRole = "farm"
)

// AllRoles lists the three contracts resolved at startup.
var AllRoles = []ContractRole{RoleStakingToken, RoleRewardToken, RoleFarm}

// Deployment is one entry of an artifact's per-network table.
type Deployment struct {
	Address         string `json:"address"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// ContractDescriptor is a build artifact: ABI plus per-network deployments.
// Descriptors are immutable once loaded.
type ContractDescriptor struct {
	Name     string
	Role     ContractRole
	ABI      abi.ABI
	Networks map[NetworkID]Deployment
}

// DeploymentFor returns the deployment for the network, if any.
func (d ContractDescriptor) DeploymentFor(id NetworkID) (Deployment, bool) {
	dep, ok := d.Networks[id]
	return dep, ok
}

// ContractHandle is a descriptor bound to the active network.
type ContractHandle struct {
	Name      string
	Role      ContractRole
	Address   common.Address
	NetworkID NetworkID
	ABI       abi.ABI
	Bound     *bind.BoundContract
}
