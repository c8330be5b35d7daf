package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"storia/config"
	vmodels "storia/internal/api/video/models"
	"storia/internal/api/video/pipeline"
	wsmodels "storia/internal/api/workspace/models"
	"storia/internal/database"
	"storia/internal/global"
	"storia/internal/media"
	"storia/internal/render"
)

// Hàm khởi tạo các biến toàn cục
func InitGlobal() {
	initColNames()         // Khởi tạo tên các collection trong database
	initValidator()        // Khởi tạo validator
	initConfig()           // Khởi tạo cấu hình server
	initPipelines()        // Khởi tạo pipeline definitions (+ overrides nếu có)
	initDatabase_MongoDB() // Khởi tạo kết nối database
	initProviders()        // Khởi tạo các dịch vụ ngoài (staging, blob store, render)
}

// Hàm khởi tạo tên các collection trong database
func initColNames() {
	global.MongoDB_ColNames.VideoProjects = "video_projects"
	global.MongoDB_ColNames.Workspaces = "workspaces"
	global.MongoDB_ColNames.WorkspaceMembers = "workspace_members"
	global.MongoDB_ColNames.AgentInvocations = "agent_invocations"

	logrus.Info("Initialized collection names")
}

// Hàm khởi tạo validator (đăng ký custom validators: video_mode, video_duration)
func initValidator() {
	global.InitValidator()
	logrus.Info("Initialized validator")
}

// Hàm khởi tạo cấu hình server
func initConfig() {
	global.ServerConfig = config.NewConfig()
	if global.ServerConfig == nil {
		logrus.Fatalf("Failed to initialize config: config is nil")
	}
	logrus.Info("Initialized server config")
}

// Hàm khởi tạo pipeline definitions với overrides từ file yaml (nếu có)
func initPipelines() {
	if err := pipeline.LoadOverrides(global.ServerConfig.PipelinesConfigPath); err != nil {
		logrus.Fatalf("Failed to load pipelines config: %v", err)
	}
	logrus.Info("Initialized pipeline definitions")
}

// Hàm khởi tạo kết nối database
func initDatabase_MongoDB() {
	var err error
	global.MongoDB_Session, err = database.GetInstance(global.ServerConfig)
	if err != nil {
		logrus.Fatalf("Failed to get database instance: %v", err)
	}
	logrus.Info("Connected to MongoDB")

	// Khởi tạo các index cho các collection
	dbName := global.ServerConfig.MongoDB_DBName
	db := global.MongoDB_Session.Database(dbName)
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.VideoProjects), vmodels.VideoProject{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.Workspaces), wsmodels.Workspace{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.WorkspaceMembers), wsmodels.WorkspaceMember{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.AgentInvocations), vmodels.AgentInvocation{})
	logrus.Info("Ensured collection indexes")
}

// Hàm khởi tạo các dịch vụ ngoài. Tất cả đều optional: thiếu credential thì
// feature tương ứng trả lỗi cấu hình, không chặn các flow còn lại.
func initProviders() {
	cfg := global.ServerConfig

	global.Staging = media.NewStagingStore(time.Duration(cfg.StagingTTLSeconds) * time.Second)
	global.Blob = media.NewBunnyStorage(cfg.CDNBaseURL, cfg.CDNAPIKey, cfg.CDNPublicBase)
	global.Renderer = render.NewShotstackService(cfg.RenderBaseURL, cfg.RenderAPIKey)

	if !global.Blob.Configured() {
		logrus.Warn("CDN storage chưa được cấu hình, upload asset sẽ bị từ chối")
	}
	if !global.Renderer.Configured() {
		logrus.Warn("Render service chưa được cấu hình, step render sẽ bị từ chối")
	}
	logrus.Info("Initialized external providers")
}
