package videosvc

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	basesvc "storia/internal/api/base/service"
	vmodels "storia/internal/api/video/models"
	"storia/internal/api/video/pipeline"
	"storia/internal/common"
	"storia/internal/utility"
)

// Giới hạn retry của Step Data Store khi CAS theo revision thất bại.
// Backoff exponential: base << attempt.
const (
	patchMaxRetries  = 5
	patchBackoffBase = 25 * time.Millisecond
)

// mongoStepStore implement pipeline.StepStore trên collection video_projects.
// Toàn bộ step data của một project nằm trong MỘT document nên mọi commit
// là một atomic document update.
type mongoStepStore struct {
	base *basesvc.BaseServiceMongoImpl[vmodels.VideoProject]
}

// PatchStepData deep-merge patch vào step data với optimistic concurrency:
// đọc lại giá trị hiện tại ngay trước khi merge, ghi bằng CAS theo revision,
// conflict thì retry với backoff. Cần thiết vì flow upload ảnh bắn nhiều
// patch nhỏ đồng thời vào cùng một step.
func (st *mongoStepStore) PatchStepData(ctx context.Context, projectID string, step int, patch map[string]interface{}) (map[string]interface{}, error) {
	return st.updateStepData(ctx, projectID, step, func(current map[string]interface{}) map[string]interface{} {
		return pipeline.DeepMerge(current, patch)
	})
}

// AppendStepList nối một phần tử vào mảng tại key của step data. Không dùng
// PatchStepData cho việc này: DeepMerge ghi đè mảng nguyên khối, nên mảng
// phải được tính lại TỪ DATA MỚI NHẤT trong từng attempt của vòng CAS — hai
// upload song song mỗi bên đều thấy phần tử của bên kia sau retry, không bên
// nào bị mất URL.
func (st *mongoStepStore) AppendStepList(ctx context.Context, projectID string, step int, key string, value interface{}) (map[string]interface{}, error) {
	return st.updateStepData(ctx, projectID, step, func(current map[string]interface{}) map[string]interface{} {
		return appendStepValue(current, key, value)
	})
}

// appendStepValue trả về bản sao step data với value nối vào cuối mảng tại key
func appendStepValue(current map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(current)+1)
	for k, v := range current {
		out[k] = v
	}
	existing, _ := out[key].([]interface{})
	out[key] = append(append([]interface{}{}, existing...), value)
	return out
}

// updateStepData là vòng CAS chung: mỗi attempt đọc document mới nhất, áp
// build lên step data vừa đọc, ghi với filter revision. Build phải là hàm
// thuần trên current — nó được gọi lại với data mới sau mỗi conflict.
func (st *mongoStepStore) updateStepData(ctx context.Context, projectID string, step int, build func(current map[string]interface{}) map[string]interface{}) (map[string]interface{}, error) {
	if step < 1 || step > vmodels.TotalStepSlots {
		return nil, common.ErrInvalidOperation
	}
	oid := utility.String2ObjectID(projectID)

	for attempt := 0; attempt < patchMaxRetries; attempt++ {
		project, err := st.base.FindOneById(ctx, oid)
		if err != nil {
			return nil, err
		}

		next := build(project.StepData(step))

		_, err = st.base.FindOneAndUpdate(ctx,
			bson.M{"_id": oid, "revision": project.Revision},
			&basesvc.UpdateData{
				Set: bson.M{vmodels.StepFieldName(step): next},
				Inc: bson.M{"revision": 1},
			}, nil)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}

		// Revision đã bị writer khác tăng: đọc lại và thử lại
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(patchBackoffBase << attempt):
		}
	}

	return nil, common.ErrConcurrencyExhausted
}

// CommitAdvance ghi kết quả một lần advance trong một document update duy nhất
func (st *mongoStepStore) CommitAdvance(ctx context.Context, projectID string, commit pipeline.AdvanceCommit) error {
	set := bson.M{
		"completedSteps": commit.CompletedSteps,
		"currentStep":    commit.CurrentStep,
		"pipelineState":  commit.State,
	}
	if commit.StepData != nil {
		set[vmodels.StepFieldName(commit.Step)] = commit.StepData
	}
	if commit.MarkCompleted {
		set["status"] = vmodels.VideoStatusCompleted
	}

	_, err := st.base.UpdateById(ctx, utility.String2ObjectID(projectID), &basesvc.UpdateData{
		Set: set,
		Inc: bson.M{"revision": 1},
	})
	return err
}

// CommitReset ghi cascade reset trong một document update duy nhất:
// tombstone các step slot bị clear, truncate completedSteps, kéo con trỏ về.
// Crash giữa chừng không bao giờ để lại document claim completion của step
// đã mất data, vì tất cả nằm chung một write.
func (st *mongoStepStore) CommitReset(ctx context.Context, projectID string, commit pipeline.ResetCommit) error {
	unset := bson.M{}
	for _, step := range commit.ClearSteps {
		unset[vmodels.StepFieldName(step)] = ""
	}

	_, err := st.base.UpdateById(ctx, utility.String2ObjectID(projectID), &basesvc.UpdateData{
		Set: bson.M{
			"completedSteps": commit.CompletedSteps,
			"currentStep":    commit.CurrentStep,
			"pipelineState":  commit.State,
			"status":         vmodels.VideoStatusDraft,
		},
		Unset: unset,
		Inc:   bson.M{"revision": 1},
	})
	return err
}
