package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
	"token_farm/internal/infrastructure/artifactloader"

	"golang.org/x/sync/errgroup"
)

type descriptorProviderImpl struct {
	source port.ArtifactSource
	names  map[entity.ContractRole]string
	logger port.Logger

	mu              sync.Mutex
	descriptorCache map[entity.ContractRole]entity.ContractDescriptor
}

// NewDescriptorProvider creates a DescriptorProvider loading one artifact per role.
func NewDescriptorProvider(source port.ArtifactSource, names map[entity.ContractRole]string, logger port.Logger) port.DescriptorProvider {
	return &descriptorProviderImpl{
		source:          source,
		names:           names,
		logger:          logger,
		descriptorCache: make(map[entity.ContractRole]entity.ContractDescriptor, len(entity.AllRoles)),
	}
}

// GetDescriptors loads and parses the artifact of every role concurrently.
// Successful loads are cached; failed roles are retried on the next call.
func (p *descriptorProviderImpl) GetDescriptors(ctx context.Context) (port.DescriptorSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := port.DescriptorSet{
		Descriptors: make(map[entity.ContractRole]entity.ContractDescriptor, len(entity.AllRoles)),
		Failures:    make(map[entity.ContractRole]*entity.ArtifactLoadError),
	}
	var resultMu sync.Mutex

	eg, _ := errgroup.WithContext(ctx)
	for _, role := range entity.AllRoles {
		if d, ok := p.descriptorCache[role]; ok {
			set.Descriptors[role] = d
			continue
		}
		role := role
		eg.Go(func() error {
			d, err := p.load(ctx, role)
			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				set.Failures[role] = err
				return nil
			}
			set.Descriptors[role] = d
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil && len(set.Failures) > 0 {
		return port.DescriptorSet{}, fmt.Errorf("load artifacts: %w", err)
	}

	for role, d := range set.Descriptors {
		p.descriptorCache[role] = d
	}
	p.logger.Info("Contract descriptors loaded", "loaded", len(set.Descriptors), "failed", len(set.Failures))
	return set, nil
}

func (p *descriptorProviderImpl) load(ctx context.Context, role entity.ContractRole) (entity.ContractDescriptor, *entity.ArtifactLoadError) {
	name := p.names[role]
	if name == "" {
		return entity.ContractDescriptor{}, &entity.ArtifactLoadError{Role: role, Name: string(role), Err: errors.New("no artifact configured")}
	}

	p.logger.Debug("Loading contract artifact", "role", string(role), "name", name)
	data, err := p.source.LoadArtifact(ctx, name)
	if err != nil {
		p.logger.Warn("Failed to load contract artifact", "name", name, "error", err)
		return entity.ContractDescriptor{}, &entity.ArtifactLoadError{Role: role, Name: name, Err: err}
	}

	d, err := artifactloader.ParseArtifact(data, role)
	if err != nil {
		p.logger.Warn("Failed to parse contract artifact", "name", name, "error", err)
		return entity.ContractDescriptor{}, &entity.ArtifactLoadError{Role: role, Name: name, Err: err}
	}
	if d.Name != name {
		p.logger.Warn("Artifact contractName differs from configured name", "configured", name, "artifact", d.Name)
	}
	return d, nil
}
