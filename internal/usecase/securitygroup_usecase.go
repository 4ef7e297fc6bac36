package usecase

import (
	"github.com/zinrai/l2network-mvp-go/internal/metrics"
	"github.com/zinrai/l2network-mvp-go/internal/nsx/securitygroup"
)

type SecurityGroupUseCase struct {
	scheduler *securitygroup.Scheduler
}

func NewSecurityGroupUseCase(scheduler *securitygroup.Scheduler) *SecurityGroupUseCase {
	return &SecurityGroupUseCase{scheduler: scheduler}
}

func (uc *SecurityGroupUseCase) AddPortToSecurityGroup(securityGroupID, memberID string) *securitygroup.Task {
	return uc.scheduler.AddPortToSecurityGroup(securityGroupID, memberID)
}

// RecordMemberTask is a securitygroup.WithObserver callback exporting task
// outcomes.
func RecordMemberTask(res securitygroup.Result) {
	metrics.MemberTasks.WithLabelValues(res.State.String()).Inc()
	metrics.MemberTaskAttempts.Observe(float64(res.Attempts))
}
