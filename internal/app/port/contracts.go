package port

import (
	"context"

	"token_farm/internal/domain/entity"
)

// DescriptorSet is the outcome of loading the artifact of every role. A role
// appears in exactly one of Descriptors and Failures.
type DescriptorSet struct {
	Descriptors map[entity.ContractRole]entity.ContractDescriptor
	Failures    map[entity.ContractRole]*entity.ArtifactLoadError
}

// DescriptorProvider supplies the static contract artifacts.
type DescriptorProvider interface {
	// GetDescriptors loads every role independently. The error is reserved for
	// failures that affect all roles, such as a cancelled context.
	GetDescriptors(ctx context.Context) (DescriptorSet, error)
}

// ArtifactSource loads a raw build artifact by contract name.
type ArtifactSource interface {
	LoadArtifact(ctx context.Context, name string) ([]byte, error)
}
