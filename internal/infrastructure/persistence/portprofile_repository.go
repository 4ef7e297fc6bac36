package persistence

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
)

func (r *L2NetworkRepository) AddPortProfile(ctx context.Context, name string, vlanID int, qos string) (*domain.PortProfile, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, "SELECT uuid FROM portprofiles WHERE name = $1", name).Scan(&existing)
	if err != sql.ErrNoRows {
		if err == nil {
			return nil, domain.PortProfileAlreadyExists(name)
		}
		return nil, errors.Wrap(err, "failed to check port profile name")
	}

	profile := domain.PortProfile{
		UUID:   uuid.New().String(),
		Name:   name,
		VlanID: vlanID,
		QoS:    qos,
	}
	query := `INSERT INTO portprofiles (uuid, name, vlan_id, qos) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, profile.UUID, profile.Name, profile.VlanID, profile.QoS); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.PortProfileAlreadyExists(name)
		}
		return nil, errors.Wrap(err, "failed to add port profile")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	return &profile, nil
}

func (r *L2NetworkRepository) GetPortProfile(ctx context.Context, id string) (*domain.PortProfile, error) {
	query := `SELECT uuid, name, vlan_id, qos FROM portprofiles WHERE uuid = $1`
	var profile domain.PortProfile
	err := r.db.QueryRowContext(ctx, query, id).Scan(&profile.UUID, &profile.Name, &profile.VlanID, &profile.QoS)
	if err == sql.ErrNoRows {
		return nil, domain.PortProfileNotFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get port profile")
	}
	return &profile, nil
}

func (r *L2NetworkRepository) ListPortProfiles(ctx context.Context) ([]*domain.PortProfile, error) {
	query := `SELECT uuid, name, vlan_id, qos FROM portprofiles ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list port profiles")
	}
	defer rows.Close()

	profiles := []*domain.PortProfile{}
	for rows.Next() {
		var profile domain.PortProfile
		if err := rows.Scan(&profile.UUID, &profile.Name, &profile.VlanID, &profile.QoS); err != nil {
			return nil, errors.Wrap(err, "failed to scan port profile row")
		}
		profiles = append(profiles, &profile)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate port profile rows")
	}
	return profiles, nil
}

func (r *L2NetworkRepository) RemovePortProfile(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM portprofiles WHERE uuid = $1`, id); err != nil {
		return errors.Wrap(err, "failed to remove port profile")
	}
	return nil
}

func (r *L2NetworkRepository) UpdatePortProfile(ctx context.Context, id string, update domain.PortProfileUpdate) (*domain.PortProfile, error) {
	query := `
		UPDATE portprofiles
		SET name = COALESCE($2, name), vlan_id = COALESCE($3, vlan_id), qos = COALESCE($4, qos)
		WHERE uuid = $1
		RETURNING uuid, name, vlan_id, qos
	`
	var profile domain.PortProfile
	err := r.db.QueryRowContext(ctx, query, id, update.Name, update.VlanID, update.QoS).
		Scan(&profile.UUID, &profile.Name, &profile.VlanID, &profile.QoS)
	if err == sql.ErrNoRows {
		return nil, domain.PortProfileNotFound(id)
	}
	if err != nil {
		if isUniqueViolation(err) && update.Name != nil {
			return nil, domain.PortProfileAlreadyExists(*update.Name)
		}
		return nil, errors.Wrap(err, "failed to update port profile")
	}
	return &profile, nil
}

func (r *L2NetworkRepository) AddPortProfileBinding(ctx context.Context, tenantID, portID, portProfileID string, isDefault bool) (*domain.PortProfileBinding, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, "SELECT port_id FROM portprofile_bindings WHERE portprofile_id = $1", portProfileID).Scan(&existing)
	if err != sql.ErrNoRows {
		if err == nil {
			return nil, domain.PortProfileBindingAlreadyExists(portProfileID, portID)
		}
		return nil, errors.Wrap(err, "failed to check port profile binding")
	}

	query := `INSERT INTO portprofile_bindings (tenant_id, port_id, portprofile_id, "default") VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, tenantID, portID, portProfileID, isDefault); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.PortProfileBindingAlreadyExists(portProfileID, portID)
		}
		return nil, errors.Wrap(err, "failed to add port profile binding")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	return &domain.PortProfileBinding{
		TenantID:      tenantID,
		PortID:        portID,
		PortProfileID: portProfileID,
		Default:       isDefault,
	}, nil
}

func (r *L2NetworkRepository) GetPortProfileBinding(ctx context.Context, portProfileID string) (*domain.PortProfileBinding, error) {
	query := `SELECT tenant_id, port_id, portprofile_id, "default" FROM portprofile_bindings WHERE portprofile_id = $1`
	var binding domain.PortProfileBinding
	err := r.db.QueryRowContext(ctx, query, portProfileID).
		Scan(&binding.TenantID, &binding.PortID, &binding.PortProfileID, &binding.Default)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get port profile binding")
	}
	return &binding, nil
}

func (r *L2NetworkRepository) ListPortProfileBindings(ctx context.Context) ([]*domain.PortProfileBinding, error) {
	query := `SELECT tenant_id, port_id, portprofile_id, "default" FROM portprofile_bindings ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list port profile bindings")
	}
	defer rows.Close()

	bindings := []*domain.PortProfileBinding{}
	for rows.Next() {
		var binding domain.PortProfileBinding
		if err := rows.Scan(&binding.TenantID, &binding.PortID, &binding.PortProfileID, &binding.Default); err != nil {
			return nil, errors.Wrap(err, "failed to scan port profile binding row")
		}
		bindings = append(bindings, &binding)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate port profile binding rows")
	}
	return bindings, nil
}

func (r *L2NetworkRepository) RemovePortProfileBinding(ctx context.Context, portProfileID, portID string) error {
	query := `DELETE FROM portprofile_bindings WHERE portprofile_id = $1 AND port_id = $2`
	if _, err := r.db.ExecContext(ctx, query, portProfileID, portID); err != nil {
		return errors.Wrap(err, "failed to remove port profile binding")
	}
	return nil
}

func (r *L2NetworkRepository) UpdatePortProfileBinding(ctx context.Context, portProfileID string, update domain.PortProfileBindingUpdate) (*domain.PortProfileBinding, error) {
	query := `
		UPDATE portprofile_bindings
		SET tenant_id = COALESCE($2, tenant_id), port_id = COALESCE($3, port_id), "default" = COALESCE($4, "default")
		WHERE portprofile_id = $1
		RETURNING tenant_id, port_id, portprofile_id, "default"
	`
	var binding domain.PortProfileBinding
	err := r.db.QueryRowContext(ctx, query, portProfileID, update.TenantID, update.PortID, update.Default).
		Scan(&binding.TenantID, &binding.PortID, &binding.PortProfileID, &binding.Default)
	if err == sql.ErrNoRows {
		return nil, domain.PortProfileNotFound(portProfileID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to update port profile binding")
	}
	return &binding, nil
}
