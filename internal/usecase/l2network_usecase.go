package usecase

import (
	"context"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
	"github.com/zinrai/l2network-mvp-go/internal/logger"
	"github.com/zinrai/l2network-mvp-go/internal/metrics"
)

type L2NetworkUseCase struct {
	repo domain.L2NetworkRepository
}

func NewL2NetworkUseCase(repo domain.L2NetworkRepository) *L2NetworkUseCase {
	return &L2NetworkUseCase{repo: repo}
}

func (uc *L2NetworkUseCase) InitializeVlanPool(ctx context.Context, start, end int) error {
	return uc.repo.InitializeVlanIDs(ctx, start, end)
}

func (uc *L2NetworkUseCase) ListVlanIDs(ctx context.Context) ([]*domain.VlanID, error) {
	return uc.repo.ListVlanIDs(ctx)
}

func (uc *L2NetworkUseCase) IsVlanIDUsed(ctx context.Context, vlanID int) (bool, error) {
	return uc.repo.IsVlanIDUsed(ctx, vlanID)
}

func (uc *L2NetworkUseCase) ReserveVlanID(ctx context.Context) (int, error) {
	vlanID, err := uc.repo.ReserveVlanID(ctx)
	switch {
	case err == nil:
		metrics.VlanReservations.WithLabelValues(metrics.OutcomeReserved).Inc()
		logger.G(ctx).WithField("vlan_id", vlanID).Info("Reserved VLAN ID")
	case domain.IsResourceExhausted(err):
		metrics.VlanReservations.WithLabelValues(metrics.OutcomeExhausted).Inc()
		logger.G(ctx).Warn("VLAN pool exhausted")
	default:
		metrics.VlanReservations.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return vlanID, err
}

func (uc *L2NetworkUseCase) ReleaseVlanID(ctx context.Context, vlanID int) error {
	if err := uc.repo.ReleaseVlanID(ctx, vlanID); err != nil {
		return err
	}
	metrics.VlanReleases.Inc()
	logger.G(ctx).WithField("vlan_id", vlanID).Info("Released VLAN ID")
	return nil
}

func (uc *L2NetworkUseCase) DeleteVlanID(ctx context.Context, vlanID int) error {
	return uc.repo.DeleteVlanID(ctx, vlanID)
}

func (uc *L2NetworkUseCase) AddVlanBinding(ctx context.Context, vlanID int, vlanName, networkID string) (*domain.VlanBinding, error) {
	if !domain.IsValidVlanID(vlanID) {
		return nil, domain.InvalidVlanRange(vlanID, vlanID)
	}
	return uc.repo.AddVlanBinding(ctx, vlanID, vlanName, networkID)
}

func (uc *L2NetworkUseCase) GetVlanBinding(ctx context.Context, networkID string) (*domain.VlanBinding, error) {
	return uc.repo.GetVlanBinding(ctx, networkID)
}

func (uc *L2NetworkUseCase) ListVlanBindings(ctx context.Context) ([]*domain.VlanBinding, error) {
	return uc.repo.ListVlanBindings(ctx)
}

func (uc *L2NetworkUseCase) RemoveVlanBinding(ctx context.Context, networkID string) error {
	return uc.repo.RemoveVlanBinding(ctx, networkID)
}

func (uc *L2NetworkUseCase) UpdateVlanBinding(ctx context.Context, networkID string, update domain.VlanBindingUpdate) (*domain.VlanBinding, error) {
	if update.VlanID != nil && !domain.IsValidVlanID(*update.VlanID) {
		return nil, domain.InvalidVlanRange(*update.VlanID, *update.VlanID)
	}
	return uc.repo.UpdateVlanBinding(ctx, networkID, update)
}

func (uc *L2NetworkUseCase) AddPortProfile(ctx context.Context, name string, vlanID int, qos string) (*domain.PortProfile, error) {
	return uc.repo.AddPortProfile(ctx, name, vlanID, qos)
}

func (uc *L2NetworkUseCase) GetPortProfile(ctx context.Context, id string) (*domain.PortProfile, error) {
	return uc.repo.GetPortProfile(ctx, id)
}

func (uc *L2NetworkUseCase) ListPortProfiles(ctx context.Context) ([]*domain.PortProfile, error) {
	return uc.repo.ListPortProfiles(ctx)
}

func (uc *L2NetworkUseCase) RemovePortProfile(ctx context.Context, id string) error {
	return uc.repo.RemovePortProfile(ctx, id)
}

func (uc *L2NetworkUseCase) UpdatePortProfile(ctx context.Context, id string, update domain.PortProfileUpdate) (*domain.PortProfile, error) {
	return uc.repo.UpdatePortProfile(ctx, id, update)
}

func (uc *L2NetworkUseCase) AddPortProfileBinding(ctx context.Context, tenantID, portID, portProfileID string, isDefault bool) (*domain.PortProfileBinding, error) {
	return uc.repo.AddPortProfileBinding(ctx, tenantID, portID, portProfileID, isDefault)
}

func (uc *L2NetworkUseCase) GetPortProfileBinding(ctx context.Context, portProfileID string) (*domain.PortProfileBinding, error) {
	return uc.repo.GetPortProfileBinding(ctx, portProfileID)
}

func (uc *L2NetworkUseCase) ListPortProfileBindings(ctx context.Context) ([]*domain.PortProfileBinding, error) {
	return uc.repo.ListPortProfileBindings(ctx)
}

func (uc *L2NetworkUseCase) RemovePortProfileBinding(ctx context.Context, portProfileID, portID string) error {
	return uc.repo.RemovePortProfileBinding(ctx, portProfileID, portID)
}

func (uc *L2NetworkUseCase) UpdatePortProfileBinding(ctx context.Context, portProfileID string, update domain.PortProfileBindingUpdate) (*domain.PortProfileBinding, error) {
	return uc.repo.UpdatePortProfileBinding(ctx, portProfileID, update)
}
