package service

import (
	"context"
	"testing"

	"token_farm/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractRegistry_ResolvesAllDeployed(t *testing.T) {
	f := newFixture(t)
	registry := NewContractRegistry(f.store, f.log)

	results := registry.Resolve(context.Background(), testDescriptors(t), testNetwork, f.provider.Caller())

	require.Len(t, results, 3)
	st := f.store.Snapshot()
	for _, role := range entity.AllRoles {
		res := results[role]
		require.NoError(t, res.Err)
		require.NotNil(t, res.Handle)
		assert.Equal(t, contractAddrs[role], res.Handle.Address)
		assert.Equal(t, testNetwork, res.Handle.NetworkID)
		assert.Same(t, res.Handle, registry.Handle(role))
		assert.Same(t, res.Handle, st.Contract(role))
	}
	assert.Empty(t, st.Notices)
}

func TestContractRegistry_AbsentEntryIsIsolated(t *testing.T) {
	for _, absent := range entity.AllRoles {
		t.Run(string(absent), func(t *testing.T) {
			f := newFixture(t)
			registry := NewContractRegistry(f.store, f.log)

			results := registry.Resolve(context.Background(), testDescriptors(t, absent), testNetwork, f.provider.Caller())

			require.Len(t, results, 3)
			assert.True(t, results[absent].Absent())
			assert.Nil(t, results[absent].Handle)
			assert.Nil(t, registry.Handle(absent))

			var notDeployed *entity.ContractNotDeployedError
			require.ErrorAs(t, results[absent].Err, &notDeployed)
			assert.Equal(t, contractNames[absent], notDeployed.Name)

			for _, role := range entity.AllRoles {
				if role == absent {
					continue
				}
				assert.NoError(t, results[role].Err)
				assert.NotNil(t, results[role].Handle)
			}

			st := f.store.Snapshot()
			assert.Nil(t, st.Contract(absent))
			assert.Equal(t,
				[]string{contractNames[absent] + " contract not deployed to detected network."},
				noticeMessages(st))
		})
	}
}

func TestContractRegistry_MalformedAddressIsAbsent(t *testing.T) {
	f := newFixture(t)
	descriptors := testDescriptors(t)
	farm := descriptors[entity.RoleFarm]
	farm.Networks = map[entity.NetworkID]entity.Deployment{testNetwork: {Address: "0xnothex"}}
	descriptors[entity.RoleFarm] = farm

	results := NewContractRegistry(f.store, f.log).Resolve(context.Background(), descriptors, testNetwork, f.provider.Caller())

	assert.True(t, results[entity.RoleFarm].Absent())
	assert.NotNil(t, results[entity.RoleStakingToken].Handle)
}

func TestContractRegistry_HandlesCreatedOnce(t *testing.T) {
	f := newFixture(t)
	registry := NewContractRegistry(f.store, f.log)

	first := registry.Resolve(context.Background(), testDescriptors(t), testNetwork, f.provider.Caller())
	second := registry.Resolve(context.Background(), testDescriptors(t), testNetwork, f.provider.Caller())

	for _, role := range entity.AllRoles {
		assert.Same(t, first[role].Handle, second[role].Handle)
	}
}
