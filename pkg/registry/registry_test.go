package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/policyforge/policyforge/pkg/artifact"
	"github.com/policyforge/policyforge/pkg/blob"
	"github.com/policyforge/policyforge/pkg/store"
)

type fakeProvider struct {
	funcs []artifact.FunctionDescriptor
}

func (p *fakeProvider) AvailableFunctions() []artifact.FunctionDescriptor { return p.funcs }

func travelFunctions() []artifact.FunctionDescriptor {
	return []artifact.FunctionDescriptor{
		{
			Name:        "check_flight_approval",
			Description: "Check whether a flight cost is within the approval limit",
			Parameters:  map[string]string{"cost": "number", "employee_level": "string"},
		},
		{
			Name:        "get_booking_window",
			Description: "Minimum advance booking days for a trip",
			Parameters:  map[string]string{"is_emergency": "boolean"},
		},
	}
}

func newFileRegistry(t *testing.T) (*FileRegistry, *blob.FileStore) {
	t.Helper()
	backend, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewFileRegistry(backend), backend
}

func TestFileRegistryRegisterAndGet(t *testing.T) {
	reg, _ := newFileRegistry(t)
	ctx := context.Background()

	record, err := reg.Register(ctx, "acme corp", &fakeProvider{funcs: travelFunctions()})
	require.NoError(t, err)
	require.Equal(t, "ACME_CORP", record.EntityID)
	require.False(t, record.RegisteredAt.IsZero())
	require.Len(t, record.Functions, 2)

	got, err := reg.Get(ctx, "Acme Corp")
	require.NoError(t, err)
	require.Equal(t, record.EntityID, got.EntityID)
	require.Equal(t, travelFunctions(), got.Functions)
}

func TestFileRegistryGetMissing(t *testing.T) {
	reg, _ := newFileRegistry(t)

	_, err := reg.Get(context.Background(), "GHOST")
	require.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestFileRegistryRejectsSourceWithoutContract(t *testing.T) {
	reg, _ := newFileRegistry(t)
	ctx := context.Background()

	// Seed a valid record first.
	_, err := reg.Register(ctx, "ACME", &fakeProvider{funcs: travelFunctions()})
	require.NoError(t, err)

	_, err = reg.Register(ctx, "ACME", struct{}{})
	var regErr *artifact.RegistrationError
	require.ErrorAs(t, err, &regErr)
	require.Equal(t, "ACME", regErr.EntityID)
	require.Contains(t, regErr.Reason, "discovery contract")

	// The failed registration must not disturb the prior record.
	got, err := reg.Get(ctx, "ACME")
	require.NoError(t, err)
	require.Len(t, got.Functions, 2)
}

func TestFileRegistryReplacesRecordWholesale(t *testing.T) {
	reg, _ := newFileRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "ACME", &fakeProvider{funcs: travelFunctions()})
	require.NoError(t, err)

	replacement := []artifact.FunctionDescriptor{
		{Name: "get_max_baggage", Description: "Included baggage allowance"},
	}
	_, err = reg.Register(ctx, "ACME", &fakeProvider{funcs: replacement})
	require.NoError(t, err)

	got, err := reg.Get(ctx, "ACME")
	require.NoError(t, err)
	require.Equal(t, replacement, got.Functions)
}

func TestFileRegistryListSorted(t *testing.T) {
	reg, _ := newFileRegistry(t)
	ctx := context.Background()

	for _, id := range []string{"ZETA", "ACME", "MIDWAY"} {
		_, err := reg.Register(ctx, id, &fakeProvider{funcs: travelFunctions()})
		require.NoError(t, err)
	}

	entities, err := reg.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"ACME", "MIDWAY", "ZETA"}, entities)
}

func TestFileRegistrySearch(t *testing.T) {
	reg, _ := newFileRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "ZETA", &fakeProvider{funcs: []artifact.FunctionDescriptor{
		{Name: "check_flight_approval", Description: "Approval limit for flights"},
	}})
	require.NoError(t, err)
	_, err = reg.Register(ctx, "ACME", &fakeProvider{funcs: travelFunctions()})
	require.NoError(t, err)

	hits, err := reg.Search(ctx, "FLIGHT")
	require.NoError(t, err)
	// Entity order first, declaration order within an entity.
	require.Len(t, hits, 2)
	require.Equal(t, "ACME", hits[0].EntityID)
	require.Equal(t, "check_flight_approval", hits[0].Function.Name)
	require.Equal(t, "ZETA", hits[1].EntityID)

	// Description-only match.
	hits, err = reg.Search(ctx, "advance booking")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "get_booking_window", hits[0].Function.Name)

	// Empty keyword matches every descriptor.
	hits, err = reg.Search(ctx, "")
	require.NoError(t, err)
	require.Len(t, hits, 3)

	hits, err = reg.Search(ctx, "payroll")
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestFileRegistryRecordRemovedByStoreDelete(t *testing.T) {
	backend, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg := NewFileRegistry(backend)
	s := store.New(backend)
	ctx := context.Background()

	_, err = s.Save(ctx, "ACME", []byte("{}"), nil)
	require.NoError(t, err)
	_, err = reg.Register(ctx, "ACME", &fakeProvider{funcs: travelFunctions()})
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, "ACME")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = reg.Get(ctx, "ACME")
	require.True(t, errors.Is(err, artifact.ErrNotFound))
}

func TestFileRegistryRejectsInvalidEntityID(t *testing.T) {
	reg, _ := newFileRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "   ", &fakeProvider{})
	require.Error(t, err)

	_, err = reg.Register(ctx, "a/b", &fakeProvider{})
	require.Error(t, err)
}
