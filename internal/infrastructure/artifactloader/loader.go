// Package artifactloader reads contract build artifacts (Truffle JSON) and
// turns them into descriptors.
package artifactloader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	jsoniter "github.com/json-iterator/go"
)

const defaultArtifactDirectoryPath = "src/abis"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// requiredMethods lists the ABI methods the client calls for each role.
var requiredMethods = map[entity.ContractRole][]string{
	entity.RoleStakingToken: {"balanceOf", "approve"},
	entity.RoleRewardToken:  {"balanceOf"},
	entity.RoleFarm:         {"stakingBalance", "stakeTokens", "unstakeTokens"},
}

// artifactFile is the subset of a Truffle artifact the client needs.
type artifactFile struct {
	ContractName string                       `json:"contractName"`
	ABI          jsoniter.RawMessage          `json:"abi"`
	Networks     map[string]entity.Deployment `json:"networks"`
}

// ArtifactFileLoader implements port.ArtifactSource over a local directory.
type ArtifactFileLoader struct {
	artifactDirPath string
	loggerInfo      func(msg string, args ...any)
	loggerWarn      func(msg string, args ...any)
}

// NewArtifactLoader creates a loader reading <dir>/<Name>.json.
func NewArtifactLoader(dir string, loggerInfo func(msg string, args ...any), loggerWarn func(msg string, args ...any)) port.ArtifactSource {
	if dir == "" {
		dir = defaultArtifactDirectoryPath
	}
	return &ArtifactFileLoader{
		artifactDirPath: dir,
		loggerInfo:      loggerInfo,
		loggerWarn:      loggerWarn,
	}
}

// LoadArtifact implements port.ArtifactSource.
func (l *ArtifactFileLoader) LoadArtifact(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid artifact name %q", name)
	}

	filePath := filepath.Join(l.artifactDirPath, name+".json")
	data, err := os.ReadFile(filePath)
	if err != nil {
		if l.loggerWarn != nil {
			l.loggerWarn("Failed to read artifact file", "path", filePath, "error", err)
		}
		return nil, fmt.Errorf("failed to read artifact %s: %w", filePath, err)
	}
	if l.loggerInfo != nil {
		l.loggerInfo("Loaded artifact file", "path", filePath, "bytes", len(data))
	}
	return data, nil
}

// ParseArtifact decodes a Truffle artifact into a descriptor for role. The abi
// must declare every method the role is called with. Deployment keys that are
// not numeric network ids are skipped.
func ParseArtifact(data []byte, role entity.ContractRole) (entity.ContractDescriptor, error) {
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return entity.ContractDescriptor{}, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	if file.ContractName == "" {
		return entity.ContractDescriptor{}, fmt.Errorf("artifact has no contractName")
	}
	if len(file.ABI) == 0 {
		return entity.ContractDescriptor{}, fmt.Errorf("artifact %s has no abi", file.ContractName)
	}

	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return entity.ContractDescriptor{}, fmt.Errorf("artifact %s: invalid abi: %w", file.ContractName, err)
	}
	for _, method := range requiredMethods[role] {
		if _, ok := parsed.Methods[method]; !ok {
			return entity.ContractDescriptor{}, fmt.Errorf("artifact %s: abi has no %s method required for %s", file.ContractName, method, role)
		}
	}

	networks := make(map[entity.NetworkID]entity.Deployment, len(file.Networks))
	for key, dep := range file.Networks {
		id, err := entity.ParseNetworkID(key)
		if err != nil {
			continue
		}
		networks[id] = dep
	}

	return entity.ContractDescriptor{
		Name:     file.ContractName,
		Role:     role,
		ABI:      parsed,
		Networks: networks,
	}, nil
}
