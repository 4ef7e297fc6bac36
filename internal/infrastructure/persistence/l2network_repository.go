package persistence

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
	"github.com/zinrai/l2network-mvp-go/internal/infrastructure/db"
	"github.com/zinrai/l2network-mvp-go/internal/logger"
)

const uniqueViolation = "23505"

var _ domain.L2NetworkRepository = (*L2NetworkRepository)(nil)

type L2NetworkRepository struct {
	db *db.DB
}

func NewL2NetworkRepository(db *db.DB) *L2NetworkRepository {
	return &L2NetworkRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (r *L2NetworkRepository) InitializeVlanIDs(ctx context.Context, start, end int) error {
	if err := domain.ValidateVlanRange(start, end); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	// Two processes starting at once must not both see an empty table.
	if _, err := tx.ExecContext(ctx, "LOCK TABLE vlan_ids IN EXCLUSIVE MODE"); err != nil {
		return errors.Wrap(err, "failed to lock vlan_ids")
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM vlan_ids").Scan(&count); err != nil {
		return errors.Wrap(err, "failed to count vlan ids")
	}
	if count > 0 {
		logger.G(ctx).WithField("count", count).Debug("VLAN pool already initialized")
		return nil
	}

	query := `INSERT INTO vlan_ids (vlan_id, vlan_used) SELECT generate_series($1::integer, $2::integer), false`
	if _, err := tx.ExecContext(ctx, query, start, end); err != nil {
		return errors.Wrap(err, "failed to populate vlan ids")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	logger.G(ctx).WithField("start", start).WithField("end", end).Info("Initialized VLAN pool")
	return nil
}

func (r *L2NetworkRepository) ListVlanIDs(ctx context.Context) ([]*domain.VlanID, error) {
	query := `SELECT vlan_id, vlan_used FROM vlan_ids ORDER BY vlan_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list vlan ids")
	}
	defer rows.Close()

	vlanIDs := []*domain.VlanID{}
	for rows.Next() {
		var vlanID domain.VlanID
		if err := rows.Scan(&vlanID.VlanID, &vlanID.Used); err != nil {
			return nil, errors.Wrap(err, "failed to scan vlan id row")
		}
		vlanIDs = append(vlanIDs, &vlanID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate vlan id rows")
	}
	return vlanIDs, nil
}

func (r *L2NetworkRepository) IsVlanIDUsed(ctx context.Context, vlanID int) (bool, error) {
	if !domain.IsValidVlanID(vlanID) {
		return false, domain.VlanIDNotFound(vlanID)
	}
	query := `SELECT vlan_used FROM vlan_ids WHERE vlan_id = $1`
	var used bool
	err := r.db.QueryRowContext(ctx, query, vlanID).Scan(&used)
	if err == sql.ErrNoRows {
		return false, domain.VlanIDNotFound(vlanID)
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to get vlan id")
	}
	return used, nil
}

func (r *L2NetworkRepository) ReleaseVlanID(ctx context.Context, vlanID int) error {
	if !domain.IsValidVlanID(vlanID) {
		return domain.VlanIDNotFound(vlanID)
	}
	query := `UPDATE vlan_ids SET vlan_used = false WHERE vlan_id = $1`
	result, err := r.db.ExecContext(ctx, query, vlanID)
	if err != nil {
		return errors.Wrap(err, "failed to release vlan id")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return domain.VlanIDNotFound(vlanID)
	}
	return nil
}

func (r *L2NetworkRepository) DeleteVlanID(ctx context.Context, vlanID int) error {
	if !domain.IsValidVlanID(vlanID) {
		return nil
	}
	query := `DELETE FROM vlan_ids WHERE vlan_id = $1`
	if _, err := r.db.ExecContext(ctx, query, vlanID); err != nil {
		return errors.Wrap(err, "failed to delete vlan id")
	}
	return nil
}

// ReserveVlanID marks the lowest unused VLAN ID as used in a single
// statement. Rows locked by a concurrent reservation are skipped, so two
// callers never receive the same ID.
func (r *L2NetworkRepository) ReserveVlanID(ctx context.Context) (int, error) {
	query := `
		UPDATE vlan_ids SET vlan_used = true
		WHERE vlan_id = (
			SELECT vlan_id FROM vlan_ids
			WHERE vlan_used = false
			ORDER BY vlan_id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING vlan_id
	`
	var vlanID int
	err := r.db.QueryRowContext(ctx, query).Scan(&vlanID)
	if err == sql.ErrNoRows {
		return 0, domain.VlanIDNotAvailable()
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to reserve vlan id")
	}
	return vlanID, nil
}

func (r *L2NetworkRepository) AddVlanBinding(ctx context.Context, vlanID int, vlanName, networkID string) (*domain.VlanBinding, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, "SELECT network_id FROM vlan_bindings WHERE vlan_id = $1", vlanID).Scan(&existing)
	if err != sql.ErrNoRows {
		if err == nil {
			return nil, domain.NetworkVlanBindingAlreadyExists(vlanID, networkID)
		}
		return nil, errors.Wrap(err, "failed to check vlan binding")
	}

	query := `INSERT INTO vlan_bindings (vlan_id, vlan_name, network_id) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, vlanID, vlanName, networkID); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NetworkVlanBindingAlreadyExists(vlanID, networkID)
		}
		return nil, errors.Wrap(err, "failed to add vlan binding")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	return &domain.VlanBinding{VlanID: vlanID, VlanName: vlanName, NetworkID: networkID}, nil
}

func (r *L2NetworkRepository) GetVlanBinding(ctx context.Context, networkID string) (*domain.VlanBinding, error) {
	query := `SELECT vlan_id, vlan_name, network_id FROM vlan_bindings WHERE network_id = $1`
	var binding domain.VlanBinding
	err := r.db.QueryRowContext(ctx, query, networkID).Scan(&binding.VlanID, &binding.VlanName, &binding.NetworkID)
	if err == sql.ErrNoRows {
		return nil, domain.NetworkNotFound(networkID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get vlan binding")
	}
	return &binding, nil
}

func (r *L2NetworkRepository) ListVlanBindings(ctx context.Context) ([]*domain.VlanBinding, error) {
	query := `SELECT vlan_id, vlan_name, network_id FROM vlan_bindings ORDER BY vlan_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list vlan bindings")
	}
	defer rows.Close()

	bindings := []*domain.VlanBinding{}
	for rows.Next() {
		var binding domain.VlanBinding
		if err := rows.Scan(&binding.VlanID, &binding.VlanName, &binding.NetworkID); err != nil {
			return nil, errors.Wrap(err, "failed to scan vlan binding row")
		}
		bindings = append(bindings, &binding)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate vlan binding rows")
	}
	return bindings, nil
}

func (r *L2NetworkRepository) RemoveVlanBinding(ctx context.Context, networkID string) error {
	query := `DELETE FROM vlan_bindings WHERE network_id = $1`
	if _, err := r.db.ExecContext(ctx, query, networkID); err != nil {
		return errors.Wrap(err, "failed to remove vlan binding")
	}
	return nil
}

func (r *L2NetworkRepository) UpdateVlanBinding(ctx context.Context, networkID string, update domain.VlanBindingUpdate) (*domain.VlanBinding, error) {
	query := `
		UPDATE vlan_bindings
		SET vlan_id = COALESCE($2, vlan_id), vlan_name = COALESCE($3, vlan_name)
		WHERE network_id = $1
		RETURNING vlan_id, vlan_name, network_id
	`
	var binding domain.VlanBinding
	err := r.db.QueryRowContext(ctx, query, networkID, update.VlanID, update.VlanName).
		Scan(&binding.VlanID, &binding.VlanName, &binding.NetworkID)
	if err == sql.ErrNoRows {
		return nil, domain.NetworkNotFound(networkID)
	}
	if err != nil {
		if isUniqueViolation(err) && update.VlanID != nil {
			return nil, domain.NetworkVlanBindingAlreadyExists(*update.VlanID, networkID)
		}
		return nil, errors.Wrap(err, "failed to update vlan binding")
	}
	return &binding, nil
}
