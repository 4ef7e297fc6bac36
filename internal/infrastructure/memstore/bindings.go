package memstore

import (
	"context"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
)

func (s *Store) AddVlanBinding(ctx context.Context, vlanID int, vlanName, networkID string) (*domain.VlanBinding, error) {
	if !domain.IsValidVlanID(vlanID) {
		return nil, domain.InvalidVlanRange(vlanID, vlanID)
	}
	binding := &domain.VlanBinding{VlanID: vlanID, VlanName: vlanName, NetworkID: networkID}
	err := s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tableVlanBindings, indexVlan, vlanID)
		if err != nil {
			return errors.Wrap(err, "failed to check vlan binding")
		}
		if existing != nil {
			return domain.NetworkVlanBindingAlreadyExists(vlanID, networkID)
		}
		existing, err = txn.First(tableVlanBindings, indexID, networkID)
		if err != nil {
			return errors.Wrap(err, "failed to check vlan binding")
		}
		if existing != nil {
			return domain.NetworkVlanBindingAlreadyExists(vlanID, networkID)
		}
		return txn.Insert(tableVlanBindings, binding)
	})
	if err != nil {
		return nil, err
	}
	copied := *binding
	return &copied, nil
}

func getVlanBinding(txn *memdb.Txn, networkID string) (*domain.VlanBinding, error) {
	obj, err := txn.First(tableVlanBindings, indexID, networkID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get vlan binding")
	}
	if obj == nil {
		return nil, domain.NetworkNotFound(networkID)
	}
	b := *obj.(*domain.VlanBinding)
	return &b, nil
}

func (s *Store) GetVlanBinding(ctx context.Context, networkID string) (*domain.VlanBinding, error) {
	return getVlanBinding(s.read(), networkID)
}

func (s *Store) ListVlanBindings(ctx context.Context) ([]*domain.VlanBinding, error) {
	it, err := s.read().Get(tableVlanBindings, indexVlan)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list vlan bindings")
	}
	bindings := []*domain.VlanBinding{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		b := *obj.(*domain.VlanBinding)
		bindings = append(bindings, &b)
	}
	return bindings, nil
}

func (s *Store) RemoveVlanBinding(ctx context.Context, networkID string) error {
	return s.update(func(txn *memdb.Txn) error {
		_, err := txn.DeleteAll(tableVlanBindings, indexID, networkID)
		return err
	})
}

func (s *Store) UpdateVlanBinding(ctx context.Context, networkID string, update domain.VlanBindingUpdate) (*domain.VlanBinding, error) {
	if update.VlanID != nil && !domain.IsValidVlanID(*update.VlanID) {
		return nil, domain.InvalidVlanRange(*update.VlanID, *update.VlanID)
	}
	var updated *domain.VlanBinding
	err := s.update(func(txn *memdb.Txn) error {
		b, err := getVlanBinding(txn, networkID)
		if err != nil {
			return err
		}
		if update.VlanID != nil && *update.VlanID != b.VlanID {
			other, err := txn.First(tableVlanBindings, indexVlan, *update.VlanID)
			if err != nil {
				return errors.Wrap(err, "failed to check vlan binding")
			}
			if other != nil {
				return domain.NetworkVlanBindingAlreadyExists(*update.VlanID, networkID)
			}
			b.VlanID = *update.VlanID
		}
		if update.VlanName != nil {
			b.VlanName = *update.VlanName
		}
		updated = b
		return txn.Insert(tableVlanBindings, b)
	})
	if err != nil {
		return nil, err
	}
	copied := *updated
	return &copied, nil
}
