// Package videosvc chứa business logic của video project: CRUD, Step Data
// Store (CAS), và điều phối transition controller của pipeline.
package videosvc

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storia/internal/agents"
	basemodels "storia/internal/api/base/models"
	basesvc "storia/internal/api/base/service"
	videodto "storia/internal/api/video/dto"
	vmodels "storia/internal/api/video/models"
	"storia/internal/api/video/pipeline"
	wssvc "storia/internal/api/workspace/service"
	"storia/internal/common"
	"storia/internal/global"
	"storia/internal/logger"
)

// VideoProjectService quản lý video projects
type VideoProjectService struct {
	*basesvc.BaseServiceMongoImpl[vmodels.VideoProject]
	store      *mongoStepStore
	workspaces *wssvc.WorkspaceService
	audit      *AgentInvocationService
}

// NewVideoProjectService tạo mới VideoProjectService
func NewVideoProjectService() (*VideoProjectService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.VideoProjects)
	if !exist {
		return nil, fmt.Errorf("failed to get video_projects collection: %v", common.ErrNotFound)
	}

	workspaceService, err := wssvc.NewWorkspaceService()
	if err != nil {
		return nil, err
	}
	auditService, err := NewAgentInvocationService()
	if err != nil {
		return nil, err
	}

	base := basesvc.NewBaseServiceMongo[vmodels.VideoProject](collection)
	return &VideoProjectService{
		BaseServiceMongoImpl: base,
		store:                &mongoStepStore{base: base},
		workspaces:           workspaceService,
		audit:                auditService,
	}, nil
}

// Create tạo project mới ở step 1 với defaults của step setup
func (s *VideoProjectService) Create(ctx context.Context, workspaceID primitive.ObjectID, input videodto.VideoCreateInput) (vmodels.VideoProject, error) {
	var zero vmodels.VideoProject

	pl, err := pipeline.ForMode(input.Mode)
	if err != nil {
		return zero, common.NewError(common.ErrCodeValidationInput, err.Error(), common.StatusBadRequest, nil)
	}

	setupDef, _ := pl.StepByNumber(1)
	step1 := make(map[string]interface{}, len(setupDef.Defaults))
	for k, v := range setupDef.Defaults {
		step1[k] = v
	}

	return s.InsertOne(ctx, vmodels.VideoProject{
		Mode:           input.Mode,
		Name:           input.Name,
		CurrentStep:    1,
		CompletedSteps: []int{},
		Step1Data:      step1,
		PipelineState:  pipeline.NewState(),
		SchemaVersion:  vmodels.CurrentSchemaVersion,
		Status:         vmodels.VideoStatusDraft,
		WorkspaceID:    workspaceID,
	})
}

// loadAuthorized load project và enforce workspace membership gate.
// User không thuộc workspace sở hữu -> ErrAccessDenied, terminal.
func (s *VideoProjectService) loadAuthorized(ctx context.Context, projectID, userID string) (vmodels.VideoProject, error) {
	var zero vmodels.VideoProject

	oid, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return zero, common.ErrInvalidFormat
	}

	project, err := s.FindOneById(ctx, oid)
	if err != nil {
		return zero, err
	}

	if err := s.workspaces.RequireMember(ctx, project.WorkspaceID, userID); err != nil {
		return zero, err
	}
	return project, nil
}

// List trả về các project của một workspace, phân trang, mới nhất trước
func (s *VideoProjectService) List(ctx context.Context, workspaceID primitive.ObjectID, page, limit int64) (*basemodels.PaginateResult[vmodels.VideoProject], error) {
	return s.FindWithPagination(ctx, bson.M{"workspaceId": workspaceID}, page, limit)
}

// Get trả về project đầy đủ (mọi stepNData) sau khi qua access gate
func (s *VideoProjectService) Get(ctx context.Context, projectID, userID string) (vmodels.VideoProject, error) {
	return s.loadAuthorized(ctx, projectID, userID)
}

// PatchStep áp partial update (deep-merge, tombstone) vào step data.
// Không advance: đây là đường "save as you go" trước khi user bấm Continue.
func (s *VideoProjectService) PatchStep(ctx context.Context, projectID string, step int, patch map[string]interface{}, userID string) (vmodels.VideoProject, error) {
	var zero vmodels.VideoProject

	project, err := s.loadAuthorized(ctx, projectID, userID)
	if err != nil {
		return zero, err
	}

	if _, err := s.store.PatchStepData(ctx, project.ID.Hex(), step, patch); err != nil {
		return zero, err
	}
	return s.FindOneById(ctx, project.ID)
}

// controllerFor dựng transition controller cho một project đã load
func (s *VideoProjectService) controllerFor(ctx context.Context, project vmodels.VideoProject, allowFallback bool) (*pipeline.Controller, *pipeline.Project, error) {
	pl, err := pipeline.ForMode(project.Mode)
	if err != nil {
		return nil, nil, common.ErrInvalidState
	}

	flags, err := s.workspaces.FeatureFlags(ctx, project.WorkspaceID)
	if err != nil {
		flags = map[string]bool{}
	}

	cfg := global.ServerConfig
	llm := agents.NewHTTPProvider("llm", cfg.LLMBaseURL, cfg.LLMAPIKey)
	tts := agents.NewHTTPProvider("tts", cfg.TTSBaseURL, cfg.TTSAPIKey)

	var invoker pipeline.AgentInvoker = agents.NewInvoker(
		map[string]agents.Provider{
			pipeline.AgentNarrative:  llm,
			pipeline.AgentStoryboard: llm,
			pipeline.AgentVoiceover:  tts,
		},
		cfg.AgentMaxRetry,
		time.Duration(cfg.AgentBackoffMs)*time.Millisecond,
		projectSink{svc: s.audit, projectID: project.ID},
	)
	if allowFallback {
		invoker = agents.WithFallback(invoker)
	}

	return pipeline.NewController(pl, s.store, invoker), project.ToPipelineProject(flags), nil
}

// ContinueStep chạy state machine cho một lần "Continue":
// dirty check -> (confirm/reset) -> validate -> (submit render ở step cuối)
// -> (invoke agent) -> persist -> advance
func (s *VideoProjectService) ContinueStep(ctx context.Context, projectID string, step int, userID string, input videodto.StepContinueInput) (videodto.StepContinueResult, error) {
	var zero videodto.StepContinueResult

	project, err := s.loadAuthorized(ctx, projectID, userID)
	if err != nil {
		return zero, err
	}

	ctrl, pp, err := s.controllerFor(ctx, project, input.AllowFallback)
	if err != nil {
		return zero, err
	}

	// Dirty check và validation chạy TRƯỚC mọi side effect ngoài: step dirty
	// hoặc validation fail thì không bao giờ chạm đến render service trả phí.
	pre, err := ctrl.Preflight(pp, step)
	if err != nil {
		return zero, err
	}

	if pre.Phase == pipeline.PhaseAwaitingConfirmation {
		if !input.ConfirmReset {
			// Dừng lại, chờ user xác nhận "các step sau sẽ bị xóa"
			return videodto.StepContinueResult{
				RequiresConfirmation: true,
				DirtyStepID:          pre.DirtyStepID,
				DirtyStepNumber:      pre.DirtyStepNumber,
				CurrentStep:          pp.CurrentStep,
			}, nil
		}

		if err := ctrl.ResetFrom(ctx, pp, pre.DirtyStepNumber); err != nil {
			return zero, err
		}

		refreshed, err := s.FindOneById(ctx, project.ID)
		if err != nil {
			return zero, err
		}
		return videodto.StepContinueResult{
			CurrentStep: pp.CurrentStep,
			Project:     refreshed,
		}, nil
	}

	// Step render: các gate đã qua, giờ mới submit edit cho render service.
	// Không await: chỉ lưu renderId, trạng thái xem qua endpoint poll.
	if step == ctrl.Pipeline().TotalSteps() {
		if err := s.ensureRenderSubmitted(ctx, pp); err != nil {
			return zero, err
		}
	}

	res, err := ctrl.Advance(ctx, pp, step)
	if err != nil {
		return zero, err
	}

	refreshed, err := s.FindOneById(ctx, project.ID)
	if err != nil {
		return zero, err
	}
	return videodto.StepContinueResult{
		CurrentStep:  pp.CurrentStep,
		AgentInvoked: res.AgentInvoked,
		Completed:    res.ProjectDone,
		Project:      refreshed,
	}, nil
}

// EnterStep xử lý deferred auto-generation khi client vào một step
func (s *VideoProjectService) EnterStep(ctx context.Context, projectID string, step int, userID string) (bool, vmodels.VideoProject, error) {
	var zero vmodels.VideoProject

	project, err := s.loadAuthorized(ctx, projectID, userID)
	if err != nil {
		return false, zero, err
	}

	ctrl, pp, err := s.controllerFor(ctx, project, false)
	if err != nil {
		return false, zero, err
	}

	invoked, err := ctrl.EnterStep(ctx, pp, step)

	// Guard state (kể cả Failed) phải sống sót qua reload client
	if _, stateErr := s.UpdateById(ctx, project.ID, &basesvc.UpdateData{
		Set: bson.M{"pipelineState": pp.State},
		Inc: bson.M{"revision": 1},
	}); stateErr != nil {
		logger.GetAppLogger().WithError(stateErr).Warn("Không persist được auto-invocation state")
	}

	if err != nil {
		return false, zero, err
	}

	refreshed, err := s.FindOneById(ctx, project.ID)
	return invoked, refreshed, err
}

// LeaveStep reset auto-invocation guard khi client rời step không có artifact
func (s *VideoProjectService) LeaveStep(ctx context.Context, projectID string, step int, userID string) error {
	project, err := s.loadAuthorized(ctx, projectID, userID)
	if err != nil {
		return err
	}

	ctrl, pp, err := s.controllerFor(ctx, project, false)
	if err != nil {
		return err
	}

	ctrl.LeaveStep(pp, step)
	_, err = s.UpdateById(ctx, project.ID, &basesvc.UpdateData{
		Set: bson.M{"pipelineState": pp.State},
		Inc: bson.M{"revision": 1},
	})
	return err
}

// Update là generic update: đường cascade reset và đổi metadata
func (s *VideoProjectService) Update(ctx context.Context, projectID, userID string, input videodto.VideoUpdateInput) (vmodels.VideoProject, error) {
	var zero vmodels.VideoProject

	project, err := s.loadAuthorized(ctx, projectID, userID)
	if err != nil {
		return zero, err
	}

	if input.ResetFromStep != nil {
		ctrl, pp, err := s.controllerFor(ctx, project, false)
		if err != nil {
			return zero, err
		}
		if err := ctrl.ResetFrom(ctx, pp, *input.ResetFromStep); err != nil {
			return zero, err
		}
	}

	if input.Name != "" {
		if _, err := s.UpdateById(ctx, project.ID, &basesvc.UpdateData{
			Set: bson.M{"name": input.Name},
			Inc: bson.M{"revision": 1},
		}); err != nil {
			return zero, err
		}
	}

	return s.FindOneById(ctx, project.ID)
}

// Delete xóa project và dọn media ngoài được tham chiếu trong step data.
// Xóa media là best-effort: storage không cấu hình hoặc lỗi từng file
// không chặn việc xóa document.
func (s *VideoProjectService) Delete(ctx context.Context, projectID, userID string) error {
	project, err := s.loadAuthorized(ctx, projectID, userID)
	if err != nil {
		return err
	}

	if global.Blob != nil && global.Blob.Configured() {
		for _, url := range collectMediaURLs(&project) {
			if err := global.Blob.DeleteByURL(ctx, url); err != nil {
				logger.GetAppLogger().WithError(err).WithField("url", url).
					Warn("Không xóa được media ngoài khi xóa project")
			}
		}
	}

	return s.DeleteById(ctx, project.ID)
}

// Các key trong step data mang URL media do mình upload
var mediaURLKeys = map[string]bool{
	"imageUrl":        true,
	"voiceoverUrl":    true,
	"videoUrl":        true,
	"referenceImages": true,
}

// collectMediaURLs quét mọi step data, gom URL media tham chiếu ngoài
func collectMediaURLs(project *vmodels.VideoProject) []string {
	urls := []string{}
	for n := 1; n <= vmodels.TotalStepSlots; n++ {
		urls = append(urls, scanMediaURLs(project.StepData(n))...)
	}
	return urls
}

func scanMediaURLs(data map[string]interface{}) []string {
	urls := []string{}
	for key, v := range data {
		switch val := v.(type) {
		case string:
			if mediaURLKeys[key] && val != "" {
				urls = append(urls, val)
			}
		case map[string]interface{}:
			urls = append(urls, scanMediaURLs(val)...)
		case []interface{}:
			for _, item := range val {
				if m, ok := item.(map[string]interface{}); ok {
					urls = append(urls, scanMediaURLs(m)...)
					continue
				}
				if s, ok := item.(string); ok && mediaURLKeys[key] && s != "" {
					urls = append(urls, s)
				}
			}
		}
	}
	return urls
}

// UploadAsset nhận reference image: giữ trong staging, đẩy lên blob store,
// rồi patch URL vào step data. Nhiều upload chạy song song được CAS retry
// của Step Data Store bảo vệ.
func (s *VideoProjectService) UploadAsset(ctx context.Context, projectID string, step int, fileName, contentType string, data []byte, userID string) (videodto.AssetUploadResult, error) {
	var zero videodto.AssetUploadResult

	project, err := s.loadAuthorized(ctx, projectID, userID)
	if err != nil {
		return zero, err
	}

	stagingKey := global.Staging.Put(fileName, contentType, data)

	if global.Blob == nil || !global.Blob.Configured() {
		// File nằm lại staging đến khi bị sweep; client có thể thử lại
		return videodto.AssetUploadResult{StagingKey: stagingKey, FileName: fileName},
			common.ErrStorageNotConfigured
	}

	path := fmt.Sprintf("projects/%s/step%d/%s-%s", project.ID.Hex(), step, stagingKey, fileName)
	url, err := global.Blob.Put(ctx, path, data, contentType)
	if err != nil {
		return zero, err
	}

	// Append URL vào referenceImages qua vòng CAS của store: mảng được tính
	// lại từ data mới nhất trong từng attempt, upload song song không mất URL
	if _, err := s.store.AppendStepList(ctx, project.ID.Hex(), step, "referenceImages", url); err != nil {
		return zero, err
	}

	global.Staging.Remove(stagingKey)
	return videodto.AssetUploadResult{
		StagingKey: stagingKey,
		URL:        url,
		FileName:   fileName,
	}, nil
}

// RenderStatus poll trạng thái render của project
func (s *VideoProjectService) RenderStatus(ctx context.Context, projectID, userID string) (interface{}, error) {
	project, err := s.loadAuthorized(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	acc := project.ToPipelineProject(nil).Accumulated()
	renderID, ok := acc.Read(pipeline.LocRenderID)
	renderIDStr, _ := renderID.(string)
	if !ok || renderIDStr == "" {
		return nil, common.NewError(common.ErrCodeBusinessState,
			"Project chưa submit render", common.StatusBadRequest, nil)
	}

	if global.Renderer == nil {
		return nil, common.ErrRenderNotConfigured
	}
	return global.Renderer.Poll(ctx, renderIDStr)
}

// ensureRenderSubmitted submit edit cho render service nếu project chưa có
// renderId, và lưu renderId vào step data (cả persisted lẫn working copy)
func (s *VideoProjectService) ensureRenderSubmitted(ctx context.Context, pp *pipeline.Project) error {
	acc := pp.Accumulated()
	if v, ok := acc.Read(pipeline.LocRenderID); ok {
		if id, _ := v.(string); id != "" {
			return nil
		}
	}

	if global.Renderer == nil || !global.Renderer.Configured() {
		return common.ErrRenderNotConfigured
	}

	renderID, err := global.Renderer.Submit(ctx, buildRenderEdit(acc))
	if err != nil {
		return err
	}

	renderStep := len(pp.Steps)
	merged, err := s.store.PatchStepData(ctx, pp.ID, renderStep, map[string]interface{}{
		"renderId": renderID,
	})
	if err != nil {
		return err
	}
	pp.Steps[renderStep] = merged
	return nil
}

// buildRenderEdit dựng edit JSON cho render service từ dữ liệu tích lũy:
// một track hình từ scenes/shots, một track tiếng từ voiceover (nếu có)
func buildRenderEdit(acc pipeline.Accumulated) map[string]interface{} {
	clips := []interface{}{}
	start := float64(0)

	for _, raw := range acc.ReadSlice(pipeline.LocScenes) {
		scene, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		length, _ := scene["duration"].(float64)
		if length <= 0 {
			length = 12
		}

		src := ""
		if shots, ok := scene["shots"].([]interface{}); ok && len(shots) > 0 {
			if shot, ok := shots[0].(map[string]interface{}); ok {
				src, _ = shot["imageUrl"].(string)
			}
		}

		clips = append(clips, map[string]interface{}{
			"asset":  map[string]interface{}{"type": "image", "src": src},
			"start":  start,
			"length": length,
		})
		start += length
	}

	edit := map[string]interface{}{
		"timeline": map[string]interface{}{
			"tracks": []interface{}{
				map[string]interface{}{"clips": clips},
			},
		},
		"output": map[string]interface{}{"format": "mp4", "resolution": "hd"},
	}

	if v, ok := acc.Read(pipeline.LocVoiceoverURL); ok {
		if url, _ := v.(string); url != "" {
			edit["timeline"].(map[string]interface{})["soundtrack"] = map[string]interface{}{
				"src":    url,
				"effect": "fadeOut",
			}
		}
	}
	return edit
}
