// Package memstore keeps the l2network tables in an in-process go-memdb
// database. Write transactions are serialised by memdb, which makes every
// read-modify-write below atomic without further locking.
package memstore

import (
	"context"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
)

const (
	tableVlanIDs             = "vlan_ids"
	tableVlanBindings        = "vlan_bindings"
	tablePortProfiles        = "portprofiles"
	tablePortProfileBindings = "portprofile_bindings"

	indexID   = "id"
	indexUsed = "used"
	indexVlan = "vlan"
	indexName = "name"
)

var _ domain.L2NetworkRepository = (*Store)(nil)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableVlanIDs: {
				Name: tableVlanIDs,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: vlanIndexer{},
					},
					indexUsed: {
						Name:    indexUsed,
						Indexer: &memdb.BoolFieldIndex{Field: "Used"},
					},
				},
			},
			tableVlanBindings: {
				Name: tableVlanBindings,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "NetworkID"},
					},
					indexVlan: {
						Name:    indexVlan,
						Unique:  true,
						Indexer: vlanIndexer{},
					},
				},
			},
			tablePortProfiles: {
				Name: tablePortProfiles,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "UUID"},
					},
					indexName: {
						Name:    indexName,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
			tablePortProfileBindings: {
				Name: tablePortProfileBindings,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "PortProfileID"},
					},
				},
			},
		},
	}
}

// Store implements domain.L2NetworkRepository in memory. Objects held by
// memdb are never mutated; updates insert a modified copy.
type Store struct {
	db *memdb.MemDB
}

func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create memdb")
	}
	return &Store{db: db}, nil
}

func (s *Store) read() *memdb.Txn {
	return s.db.Txn(false)
}

// update runs cb in a write transaction and commits it when cb succeeds.
func (s *Store) update(cb func(txn *memdb.Txn) error) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := cb(txn); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) InitializeVlanIDs(ctx context.Context, start, end int) error {
	if err := domain.ValidateVlanRange(start, end); err != nil {
		return err
	}
	return s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tableVlanIDs, indexID)
		if err != nil {
			return errors.Wrap(err, "failed to check vlan pool")
		}
		if existing != nil {
			return nil
		}
		for id := start; id <= end; id++ {
			if err := txn.Insert(tableVlanIDs, &domain.VlanID{VlanID: id}); err != nil {
				return errors.Wrap(err, "failed to populate vlan ids")
			}
		}
		return nil
	})
}

func (s *Store) ListVlanIDs(ctx context.Context) ([]*domain.VlanID, error) {
	it, err := s.read().Get(tableVlanIDs, indexID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list vlan ids")
	}
	vlanIDs := []*domain.VlanID{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		v := *obj.(*domain.VlanID)
		vlanIDs = append(vlanIDs, &v)
	}
	return vlanIDs, nil
}

func getVlanID(txn *memdb.Txn, vlanID int) (*domain.VlanID, error) {
	if !domain.IsValidVlanID(vlanID) {
		return nil, domain.VlanIDNotFound(vlanID)
	}
	obj, err := txn.First(tableVlanIDs, indexID, vlanID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get vlan id")
	}
	if obj == nil {
		return nil, domain.VlanIDNotFound(vlanID)
	}
	v := *obj.(*domain.VlanID)
	return &v, nil
}

func (s *Store) IsVlanIDUsed(ctx context.Context, vlanID int) (bool, error) {
	v, err := getVlanID(s.read(), vlanID)
	if err != nil {
		return false, err
	}
	return v.Used, nil
}

func (s *Store) ReleaseVlanID(ctx context.Context, vlanID int) error {
	return s.update(func(txn *memdb.Txn) error {
		v, err := getVlanID(txn, vlanID)
		if err != nil {
			return err
		}
		v.Used = false
		return txn.Insert(tableVlanIDs, v)
	})
}

func (s *Store) DeleteVlanID(ctx context.Context, vlanID int) error {
	if !domain.IsValidVlanID(vlanID) {
		return nil
	}
	return s.update(func(txn *memdb.Txn) error {
		_, err := txn.DeleteAll(tableVlanIDs, indexID, vlanID)
		return err
	})
}

// ReserveVlanID picks the lowest unused ID. The "used" index orders entries
// sharing a value by primary key.
func (s *Store) ReserveVlanID(ctx context.Context) (int, error) {
	var reserved int
	err := s.update(func(txn *memdb.Txn) error {
		obj, err := txn.First(tableVlanIDs, indexUsed, false)
		if err != nil {
			return errors.Wrap(err, "failed to find unused vlan id")
		}
		if obj == nil {
			return domain.VlanIDNotAvailable()
		}
		v := *obj.(*domain.VlanID)
		v.Used = true
		reserved = v.VlanID
		return txn.Insert(tableVlanIDs, &v)
	})
	if err != nil {
		return 0, err
	}
	return reserved, nil
}
