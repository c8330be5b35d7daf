package agents

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"storia/internal/api/video/pipeline"
	"storia/internal/common"
)

// Schema output của từng agent. Response parse được JSON nhưng sai schema
// được coi là thất bại và retry, không được chấp nhận im lặng.
type narrativeOutput struct {
	VisualBeats []beatPayload `json:"visualBeats" validate:"required,min=1,dive"`
}

type beatPayload struct {
	Description string  `json:"description" validate:"required"`
	Duration    float64 `json:"duration" validate:"omitempty,gt=0"`
}

type storyboardOutput struct {
	Scenes []scenePayload `json:"scenes" validate:"required,min=1,dive"`
}

type scenePayload struct {
	ID          string  `json:"id" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Duration    float64 `json:"duration" validate:"omitempty,gt=0"`
}

type voiceoverOutput struct {
	VoiceoverURL string `json:"voiceoverUrl" validate:"required,url"`
}

// schemaTargets map agent id sang struct schema tương ứng
func schemaTarget(agentID string) (interface{}, error) {
	switch agentID {
	case pipeline.AgentNarrative:
		return &narrativeOutput{}, nil
	case pipeline.AgentStoryboard:
		return &storyboardOutput{}, nil
	case pipeline.AgentVoiceover:
		return &voiceoverOutput{}, nil
	default:
		return nil, fmt.Errorf("agent không xác định: %q", agentID)
	}
}

// validateResponse parse body JSON và kiểm tra schema của agent.
// Trả về output dạng map (giữ nguyên mọi field phụ agent trả thêm)
// để merge thẳng vào step data.
func validateResponse(v *validator.Validate, agentID string, body []byte) (map[string]interface{}, error) {
	target, err := schemaTarget(agentID)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(body, target); err != nil {
		return nil, common.NewError(common.ErrCodeAgentSchema,
			"Response của agent không phải JSON hợp lệ", common.StatusBadGateway, err.Error())
	}
	if err := v.Struct(target); err != nil {
		return nil, common.NewError(common.ErrCodeAgentSchema,
			fmt.Sprintf("Response của agent %s sai schema", agentID), common.StatusBadGateway, err.Error())
	}

	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, common.NewError(common.ErrCodeAgentSchema,
			"Response của agent không phải JSON object", common.StatusBadGateway, err.Error())
	}
	return out, nil
}
