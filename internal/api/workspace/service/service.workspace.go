package wssvc

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	basesvc "storia/internal/api/base/service"
	wsmodels "storia/internal/api/workspace/models"
	"storia/internal/common"
	"storia/internal/global"
)

// WorkspaceService quản lý workspace và membership
type WorkspaceService struct {
	*basesvc.BaseServiceMongoImpl[wsmodels.Workspace]
	members *basesvc.BaseServiceMongoImpl[wsmodels.WorkspaceMember]
}

// NewWorkspaceService tạo mới WorkspaceService
func NewWorkspaceService() (*WorkspaceService, error) {
	wsCol, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.Workspaces)
	if !exist {
		return nil, fmt.Errorf("failed to get workspaces collection: %v", common.ErrNotFound)
	}
	memberCol, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.WorkspaceMembers)
	if !exist {
		return nil, fmt.Errorf("failed to get workspace_members collection: %v", common.ErrNotFound)
	}
	return &WorkspaceService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[wsmodels.Workspace](wsCol),
		members:              basesvc.NewBaseServiceMongo[wsmodels.WorkspaceMember](memberCol),
	}, nil
}

// Create tạo workspace mới và thêm người tạo làm owner
func (s *WorkspaceService) Create(ctx context.Context, name, ownerUserID string, flags map[string]bool) (wsmodels.Workspace, error) {
	ws := wsmodels.Workspace{
		Name:         name,
		FeatureFlags: flags,
		OwnerUserID:  ownerUserID,
	}
	created, err := s.InsertOne(ctx, ws)
	if err != nil {
		return created, err
	}

	_, err = s.AddMember(ctx, created.ID, ownerUserID, wsmodels.WorkspaceRoleOwner)
	return created, err
}

// AddMember thêm user vào workspace với vai trò cho trước
func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID primitive.ObjectID, userID, role string) (wsmodels.WorkspaceMember, error) {
	return s.members.InsertOne(ctx, wsmodels.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
	})
}

// IsMember kiểm tra user có thuộc workspace không.
// Đây là AccessDenied gate của toàn bộ project routes: fail là terminal,
// không retry.
func (s *WorkspaceService) IsMember(ctx context.Context, workspaceID primitive.ObjectID, userID string) (bool, error) {
	return s.members.DocumentExists(ctx, bson.M{
		"workspaceId": workspaceID,
		"userId":      userID,
	})
}

// RequireMember trả ErrAccessDenied khi user không thuộc workspace
func (s *WorkspaceService) RequireMember(ctx context.Context, workspaceID primitive.ObjectID, userID string) error {
	ok, err := s.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrAccessDenied
	}
	return nil
}

// FeatureFlags đọc feature flags của workspace, không bao giờ trả map nil
func (s *WorkspaceService) FeatureFlags(ctx context.Context, workspaceID primitive.ObjectID) (map[string]bool, error) {
	ws, err := s.FindOneById(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws.FeatureFlags == nil {
		return map[string]bool{}, nil
	}
	return ws.FeatureFlags, nil
}

// Touch cập nhật updatedAt của workspace (dùng khi đổi flags)
func (s *WorkspaceService) Touch(ctx context.Context, workspaceID primitive.ObjectID) error {
	_, err := s.UpdateById(ctx, workspaceID, &basesvc.UpdateData{
		Set: bson.M{"updatedAt": time.Now().UnixMilli()},
	})
	return err
}
