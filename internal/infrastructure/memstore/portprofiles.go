package memstore

import (
	"context"

	"github.com/google/uuid"
	memdb "github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
)

func (s *Store) AddPortProfile(ctx context.Context, name string, vlanID int, qos string) (*domain.PortProfile, error) {
	profile := &domain.PortProfile{
		UUID:   uuid.New().String(),
		Name:   name,
		VlanID: vlanID,
		QoS:    qos,
	}
	err := s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tablePortProfiles, indexName, name)
		if err != nil {
			return errors.Wrap(err, "failed to check port profile name")
		}
		if existing != nil {
			return domain.PortProfileAlreadyExists(name)
		}
		return txn.Insert(tablePortProfiles, profile)
	})
	if err != nil {
		return nil, err
	}
	copied := *profile
	return &copied, nil
}

func getPortProfile(txn *memdb.Txn, id string) (*domain.PortProfile, error) {
	obj, err := txn.First(tablePortProfiles, indexID, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get port profile")
	}
	if obj == nil {
		return nil, domain.PortProfileNotFound(id)
	}
	p := *obj.(*domain.PortProfile)
	return &p, nil
}

func (s *Store) GetPortProfile(ctx context.Context, id string) (*domain.PortProfile, error) {
	return getPortProfile(s.read(), id)
}

func (s *Store) ListPortProfiles(ctx context.Context) ([]*domain.PortProfile, error) {
	it, err := s.read().Get(tablePortProfiles, indexName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list port profiles")
	}
	profiles := []*domain.PortProfile{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		p := *obj.(*domain.PortProfile)
		profiles = append(profiles, &p)
	}
	return profiles, nil
}

func (s *Store) RemovePortProfile(ctx context.Context, id string) error {
	return s.update(func(txn *memdb.Txn) error {
		_, err := txn.DeleteAll(tablePortProfiles, indexID, id)
		return err
	})
}

func (s *Store) UpdatePortProfile(ctx context.Context, id string, update domain.PortProfileUpdate) (*domain.PortProfile, error) {
	var updated domain.PortProfile
	err := s.update(func(txn *memdb.Txn) error {
		p, err := getPortProfile(txn, id)
		if err != nil {
			return err
		}
		if update.Name != nil && *update.Name != p.Name {
			other, err := txn.First(tablePortProfiles, indexName, *update.Name)
			if err != nil {
				return errors.Wrap(err, "failed to check port profile name")
			}
			if other != nil {
				return domain.PortProfileAlreadyExists(*update.Name)
			}
			p.Name = *update.Name
		}
		if update.VlanID != nil {
			p.VlanID = *update.VlanID
		}
		if update.QoS != nil {
			p.QoS = *update.QoS
		}
		updated = *p
		return txn.Insert(tablePortProfiles, p)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) AddPortProfileBinding(ctx context.Context, tenantID, portID, portProfileID string, isDefault bool) (*domain.PortProfileBinding, error) {
	binding := domain.PortProfileBinding{
		TenantID:      tenantID,
		PortID:        portID,
		PortProfileID: portProfileID,
		Default:       isDefault,
	}
	err := s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tablePortProfileBindings, indexID, portProfileID)
		if err != nil {
			return errors.Wrap(err, "failed to check port profile binding")
		}
		if existing != nil {
			return domain.PortProfileBindingAlreadyExists(portProfileID, portID)
		}
		stored := binding
		return txn.Insert(tablePortProfileBindings, &stored)
	})
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

func (s *Store) GetPortProfileBinding(ctx context.Context, portProfileID string) (*domain.PortProfileBinding, error) {
	obj, err := s.read().First(tablePortProfileBindings, indexID, portProfileID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get port profile binding")
	}
	if obj == nil {
		return nil, nil
	}
	b := *obj.(*domain.PortProfileBinding)
	return &b, nil
}

func (s *Store) ListPortProfileBindings(ctx context.Context) ([]*domain.PortProfileBinding, error) {
	it, err := s.read().Get(tablePortProfileBindings, indexID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list port profile bindings")
	}
	bindings := []*domain.PortProfileBinding{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		b := *obj.(*domain.PortProfileBinding)
		bindings = append(bindings, &b)
	}
	return bindings, nil
}

func (s *Store) RemovePortProfileBinding(ctx context.Context, portProfileID, portID string) error {
	return s.update(func(txn *memdb.Txn) error {
		obj, err := txn.First(tablePortProfileBindings, indexID, portProfileID)
		if err != nil {
			return errors.Wrap(err, "failed to get port profile binding")
		}
		if obj == nil || obj.(*domain.PortProfileBinding).PortID != portID {
			return nil
		}
		return txn.Delete(tablePortProfileBindings, obj)
	})
}

func (s *Store) UpdatePortProfileBinding(ctx context.Context, portProfileID string, update domain.PortProfileBindingUpdate) (*domain.PortProfileBinding, error) {
	var updated domain.PortProfileBinding
	err := s.update(func(txn *memdb.Txn) error {
		obj, err := txn.First(tablePortProfileBindings, indexID, portProfileID)
		if err != nil {
			return errors.Wrap(err, "failed to get port profile binding")
		}
		if obj == nil {
			return domain.PortProfileNotFound(portProfileID)
		}
		b := *obj.(*domain.PortProfileBinding)
		if update.TenantID != nil {
			b.TenantID = *update.TenantID
		}
		if update.PortID != nil {
			b.PortID = *update.PortID
		}
		if update.Default != nil {
			b.Default = *update.Default
		}
		updated = b
		return txn.Insert(tablePortProfileBindings, &b)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
