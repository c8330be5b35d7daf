package videosvc

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storia/internal/agents"
	basesvc "storia/internal/api/base/service"
	vmodels "storia/internal/api/video/models"
	"storia/internal/common"
	"storia/internal/global"
	"storia/internal/logger"
)

// AgentInvocationService ghi audit log cho từng attempt gọi agent
type AgentInvocationService struct {
	*basesvc.BaseServiceMongoImpl[vmodels.AgentInvocation]
}

// NewAgentInvocationService tạo mới AgentInvocationService
func NewAgentInvocationService() (*AgentInvocationService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.AgentInvocations)
	if !exist {
		return nil, fmt.Errorf("failed to get agent_invocations collection: %v", common.ErrNotFound)
	}
	return &AgentInvocationService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[vmodels.AgentInvocation](collection),
	}, nil
}

// Record ghi một attempt. Best-effort: lỗi chỉ log, không chặn invocation.
func (s *AgentInvocationService) Record(ctx context.Context, projectID primitive.ObjectID, rec agents.InvocationRecord) {
	_, err := s.InsertOne(ctx, vmodels.AgentInvocation{
		ProjectID:  projectID,
		AgentID:    rec.AgentID,
		Attempt:    rec.Attempt,
		Outcome:    rec.Outcome,
		Error:      rec.Error,
		DurationMs: rec.DurationMs,
	})
	if err != nil {
		logger.GetAppLogger().WithError(err).WithField("agentId", rec.AgentID).
			Warn("Không ghi được audit log agent invocation")
	}
}

// projectSink gắn một project ID cố định vào audit sink cho một request
type projectSink struct {
	svc       *AgentInvocationService
	projectID primitive.ObjectID
}

func (s projectSink) Record(ctx context.Context, rec agents.InvocationRecord) {
	s.svc.Record(ctx, s.projectID, rec)
}
