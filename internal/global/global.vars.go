package global

import (
	"storia/config"
	"storia/internal/media"
	"storia/internal/registry"
	"storia/internal/render"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

// CollectionNames chứa tên các collection trong MongoDB
type CollectionNames struct {
	VideoProjects    string // Collection cho video projects (document per project, chứa stepNData)
	Workspaces       string // Collection cho workspaces
	WorkspaceMembers string // Collection cho membership user-workspace
	AgentInvocations string // Collection audit log cho mỗi lần invoke agent
}

// Các biến toàn cục
var Validate *validator.Validate          // Validator dùng chung (custom validators đăng ký trong InitValidator)
var MongoDB_Session *mongo.Client         // Phiên kết nối tới MongoDB
var ServerConfig *config.Configuration    // Cấu hình của server
var MongoDB_ColNames = CollectionNames{}  // Tên các collection

// RegistryCollections chứa các collections đã khởi tạo, key theo tên collection
var RegistryCollections = registry.NewRegistry[*mongo.Collection]()

// Các dịch vụ ngoài và shared state process-level (khởi tạo trong cmd/server)
var Staging *media.StagingStore       // Upload staging in-memory, sweep theo TTL
var Blob *media.BunnyStorage          // Blob store CDN (nil-safe qua Configured())
var Renderer *render.ShotstackService // Render service (submit/poll)
