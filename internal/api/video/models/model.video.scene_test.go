package models

import (
	"reflect"
	"testing"
)

func TestContinuityGroups(t *testing.T) {
	shots := []Shot{
		{ID: "shot-1"},
		{ID: "shot-2", IsLinkedToPrevious: true},
		{ID: "shot-3", IsLinkedToPrevious: true},
		{ID: "shot-4"},
		{ID: "shot-5", IsLinkedToPrevious: true},
		{ID: "shot-6"},
	}

	groups := ContinuityGroups(shots)
	want := [][]int{{0, 1, 2}, {3, 4}}
	if !reflect.DeepEqual(groups, want) {
		t.Errorf("ContinuityGroups = %v, muốn %v", groups, want)
	}
}

func TestContinuityGroupsKhongCoGroupDon(t *testing.T) {
	// Shot đơn lẻ không bao giờ thành group (group cần >= 2 shot)
	shots := []Shot{
		{ID: "shot-1"},
		{ID: "shot-2"},
		{ID: "shot-3"},
	}
	if groups := ContinuityGroups(shots); len(groups) != 0 {
		t.Errorf("Toàn shot rời rạc nhưng có %d group: %v", len(groups), groups)
	}

	// Shot đầu tiên đánh dấu linked không có shot trước để nối
	shots = []Shot{
		{ID: "shot-1", IsLinkedToPrevious: true},
		{ID: "shot-2"},
	}
	if groups := ContinuityGroups(shots); len(groups) != 0 {
		t.Errorf("Shot đầu linked không hợp lệ nhưng tạo group: %v", groups)
	}
}

func TestContinuityGroupsChuoiDaiToanLinked(t *testing.T) {
	shots := []Shot{
		{ID: "shot-1"},
		{ID: "shot-2", IsLinkedToPrevious: true},
		{ID: "shot-3", IsLinkedToPrevious: true},
		{ID: "shot-4", IsLinkedToPrevious: true},
	}
	groups := ContinuityGroups(shots)
	if len(groups) != 1 || len(groups[0]) != 4 {
		t.Errorf("Chuỗi 4 shot nối liền phải là 1 group 4 phần tử, được: %v", groups)
	}
}

func TestStepFieldName(t *testing.T) {
	if got := StepFieldName(3); got != "step3Data" {
		t.Errorf("StepFieldName(3) = %q, muốn step3Data", got)
	}
}

func TestToPipelineProjectSaoChepDocLap(t *testing.T) {
	p := VideoProject{
		Mode:           "commerce",
		CurrentStep:    2,
		CompletedSteps: []int{1},
		Step1Data:      map[string]interface{}{"duration": int64(12)},
		Status:         VideoStatusDraft,
	}

	pp := p.ToPipelineProject(nil)
	if pp.State == nil {
		t.Fatal("PipelineState nil phải được thay bằng state mới")
	}
	if pp.Flags == nil {
		t.Fatal("Flags nil phải được thay bằng map rỗng")
	}

	// CompletedSteps là bản sao: mutate working copy không lan sang model
	pp.CompletedSteps = append(pp.CompletedSteps, 2)
	if len(p.CompletedSteps) != 1 {
		t.Errorf("Mutate working copy lan sang model: %v", p.CompletedSteps)
	}
}

func TestStepDataKhongBaoGioNil(t *testing.T) {
	var p VideoProject
	if p.StepData(5) == nil {
		t.Error("StepData của slot trống trả về nil")
	}
	if p.StepData(99) == nil {
		t.Error("StepData ngoài range trả về nil")
	}
}
