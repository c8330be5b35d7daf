package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"storia/internal/common"
)

// fakeAgent đếm số lần Invoke, trả output cố định hoặc lỗi
type fakeAgent struct {
	calls  int
	output map[string]interface{}
	err    error
}

func (f *fakeAgent) Invoke(_ context.Context, _ string, _ map[string]interface{}) (map[string]interface{}, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

// fakeStore ghi lại mọi commit; failErr bật chế độ persist luôn fail
type fakeStore struct {
	data       map[int]map[string]interface{}
	patchCalls int
	advances   []AdvanceCommit
	resets     []ResetCommit
	failErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[int]map[string]interface{})}
}

func (f *fakeStore) PatchStepData(_ context.Context, _ string, step int, patch map[string]interface{}) (map[string]interface{}, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.patchCalls++
	merged := DeepMerge(f.data[step], patch)
	f.data[step] = merged
	return merged, nil
}

func (f *fakeStore) CommitAdvance(_ context.Context, _ string, commit AdvanceCommit) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.advances = append(f.advances, commit)
	return nil
}

func (f *fakeStore) CommitReset(_ context.Context, _ string, commit ResetCommit) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.resets = append(f.resets, commit)
	return nil
}

func newTestProject(mode string) *Project {
	steps := make(map[int]map[string]interface{})
	for n := 1; n <= 6; n++ {
		steps[n] = map[string]interface{}{}
	}
	return &Project{
		ID:             "proj-1",
		Mode:           mode,
		CurrentStep:    1,
		CompletedSteps: []int{},
		Steps:          steps,
		State:          NewState(),
		Flags:          map[string]bool{},
		Status:         "draft",
	}
}

func validSetupData() map[string]interface{} {
	return map[string]interface{}{
		"customMotionInstructions": "orbit shot",
		"targetAudience":           "gen-z",
		"duration":                 float64(12),
	}
}

// Kịch bản cụ thể của flow tạo video: patch setup, advance, sửa duration,
// Continue ở step 2 phải bật confirm prompt cho step setup
func TestKichBanTaoVideo(t *testing.T) {
	agent := &fakeAgent{output: map[string]interface{}{"visualBeats": []interface{}{"beat-1"}}}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	p.Steps[1] = DeepMerge(p.Steps[1], validSetupData())

	if !CanAdvance(pl, StepSetup, p.Accumulated()) {
		t.Fatal("Setup đầy đủ phải advance được")
	}

	res, err := c.Advance(context.Background(), p, 1)
	if err != nil {
		t.Fatalf("Advance step 1 lỗi: %v", err)
	}
	if res.NextStep != 2 || p.CurrentStep != 2 {
		t.Errorf("currentStep phải là 2, got %d", p.CurrentStep)
	}
	if !reflect.DeepEqual(p.CompletedSteps, []int{1}) {
		t.Errorf("completedSteps phải là [1], got %v", p.CompletedSteps)
	}

	// User sửa duration của step 1 đã completed rồi bấm Continue ở step 2
	p.Steps[1]["duration"] = float64(24)

	res, err = c.Advance(context.Background(), p, 2)
	if err != nil {
		t.Fatalf("Advance step 2 lỗi: %v", err)
	}
	if res.Phase != PhaseAwaitingConfirmation {
		t.Errorf("Phải dừng ở AwaitingConfirmation, got %s", res.Phase)
	}
	if res.DirtyStepID != StepSetup {
		t.Errorf("Step dirty phải là setup, got %s", res.DirtyStepID)
	}
	if p.CurrentStep != 2 {
		t.Error("AwaitingConfirmation không được mutate currentStep")
	}
}

// Re-entry idempotent: artifact đã persist thì advance lần hai không gọi lại agent
func TestReEntryKhongGoiLaiAgent(t *testing.T) {
	agent := &fakeAgent{output: map[string]interface{}{"visualBeats": []interface{}{"beat-1", "beat-2"}}}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	p.Steps[1] = validSetupData()
	if _, err := c.Advance(context.Background(), p, 1); err != nil {
		t.Fatalf("Advance step 1 lỗi: %v", err)
	}

	p.Steps[2]["creativeSpark"] = "một ý tưởng đủ dài để pass"

	res, err := c.Advance(context.Background(), p, 2)
	if err != nil {
		t.Fatalf("Advance step 2 lần 1 lỗi: %v", err)
	}
	if !res.AgentInvoked || agent.calls != 1 {
		t.Fatalf("Lần đầu phải gọi agent đúng 1 lần, calls = %d", agent.calls)
	}
	if len(p.Steps[2]["visualBeats"].([]interface{})) != 2 {
		t.Error("Output agent phải được merge vào step data")
	}

	// Quay lại step 2 và Continue lần nữa: artifact đã có, không gọi agent
	res, err = c.Advance(context.Background(), p, 2)
	if err != nil {
		t.Fatalf("Advance step 2 lần 2 lỗi: %v", err)
	}
	if res.AgentInvoked {
		t.Error("Lần hai không được đánh dấu AgentInvoked")
	}
	if agent.calls != 1 {
		t.Errorf("Agent phải vẫn chỉ được gọi 1 lần, calls = %d", agent.calls)
	}
}

// Agent fail hết retry: không advance, completedSteps giữ nguyên
func TestAgentFailKhongAdvance(t *testing.T) {
	agent := &fakeAgent{err: common.ErrAgentInvocationFailed}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	p.Steps[1] = validSetupData()
	if _, err := c.Advance(context.Background(), p, 1); err != nil {
		t.Fatalf("Advance step 1 lỗi: %v", err)
	}
	p.Steps[2]["creativeSpark"] = "một ý tưởng đủ dài để pass"

	_, err := c.Advance(context.Background(), p, 2)
	if !errors.Is(err, common.ErrAgentInvocationFailed) {
		t.Fatalf("Phải trả ErrAgentInvocationFailed, got %v", err)
	}
	if p.IsCompleted(2) {
		t.Error("Step 2 không được vào completedSteps khi agent fail")
	}
	if p.CurrentStep != 2 {
		t.Error("currentStep không được nhảy khi agent fail")
	}
	if p.State.AutoState(StepScript) != AutoFailed {
		t.Errorf("Guard phải là failed, got %s", p.State.AutoState(StepScript))
	}
}

// Validation fail: ở nguyên Idle, không mutate, không gọi store
func TestValidationFailKhongMutate(t *testing.T) {
	agent := &fakeAgent{}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	// Setup thiếu targetAudience
	p.Steps[1]["customMotionInstructions"] = "orbit shot"
	p.Steps[1]["duration"] = float64(12)

	res, err := c.Advance(context.Background(), p, 1)
	if err == nil {
		t.Fatal("Setup thiếu field phải trả validation error")
	}
	var appErr *common.Error
	if !errors.As(err, &appErr) || appErr.Code != common.ErrCodeValidationStep {
		t.Errorf("Error code phải là %s, got %v", common.ErrCodeValidationStep, err)
	}
	if res.Phase != PhaseIdle {
		t.Errorf("Phải ở lại Idle, got %s", res.Phase)
	}
	if len(store.advances) != 0 {
		t.Error("Validation fail không được commit gì")
	}
	if len(p.CompletedSteps) != 0 || p.CurrentStep != 1 {
		t.Error("Validation fail không được mutate project")
	}
}

// Cascade reset đầy đủ: completed [1..5], reset từ 3
func TestCascadeResetDayDu(t *testing.T) {
	agent := &fakeAgent{}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	p.CompletedSteps = []int{1, 2, 3, 4, 5}
	p.CurrentStep = 6
	for n := 1; n <= 5; n++ {
		p.Steps[n] = map[string]interface{}{"k": n}
		def, _ := pl.StepByNumber(n)
		p.State.Snapshots[def.ID] = map[string]interface{}{"k": n}
	}

	if err := c.ResetFrom(context.Background(), p, 3); err != nil {
		t.Fatalf("ResetFrom lỗi: %v", err)
	}

	if !reflect.DeepEqual(p.CompletedSteps, []int{1, 2}) {
		t.Errorf("completedSteps phải là [1,2], got %v", p.CompletedSteps)
	}
	if p.CurrentStep != 3 {
		t.Errorf("currentStep phải về 3, got %d", p.CurrentStep)
	}
	for n := 3; n <= 5; n++ {
		if v, ok := p.Steps[n]["k"]; ok {
			t.Errorf("step%dData phải bị xóa, còn %v", n, v)
		}
	}
	if p.Steps[1]["k"] != 1 || p.Steps[2]["k"] != 2 {
		t.Error("step1Data/step2Data phải còn nguyên")
	}

	if len(store.resets) != 1 {
		t.Fatalf("Phải có đúng 1 reset commit, got %d", len(store.resets))
	}
	if !reflect.DeepEqual(store.resets[0].ClearSteps, []int{3, 4, 5, 6}) {
		t.Errorf("ClearSteps sai: %v", store.resets[0].ClearSteps)
	}

	// Snapshot vùng bị xóa phải mất, vùng giữ lại phải còn
	if p.State.Snapshots[StepStoryboard] != nil {
		t.Error("Snapshot storyboard phải bị clear")
	}
	if p.State.Snapshots[StepSetup] == nil || p.State.Snapshots[StepScript] == nil {
		t.Error("Snapshot setup/script phải còn")
	}

	// Defaults: step audio về voiceStyle mặc định
	if p.Steps[5]["voiceStyle"] != "narration" {
		t.Errorf("voiceStyle phải về default narration, got %v", p.Steps[5]["voiceStyle"])
	}
}

// Persist fail: reset không được áp dụng local (all-or-nothing)
func TestResetPersistFailKhongMutate(t *testing.T) {
	agent := &fakeAgent{}
	store := newFakeStore()
	store.failErr = common.ErrConnection
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	p.CompletedSteps = []int{1, 2, 3}
	p.CurrentStep = 4
	p.Steps[3] = map[string]interface{}{"scenes": []interface{}{"s1"}}
	p.State.Snapshots[StepStoryboard] = map[string]interface{}{"scenes": []interface{}{"s1"}}

	if err := c.ResetFrom(context.Background(), p, 3); err == nil {
		t.Fatal("Persist fail phải trả lỗi")
	}

	if !reflect.DeepEqual(p.CompletedSteps, []int{1, 2, 3}) {
		t.Error("completedSteps không được đổi khi persist fail")
	}
	if p.CurrentStep != 4 {
		t.Error("currentStep không được đổi khi persist fail")
	}
	if len(p.Steps[3]) == 0 {
		t.Error("step3Data không được xóa local khi persist fail")
	}
	if p.State.Snapshots[StepStoryboard] == nil {
		t.Error("Snapshot không được xóa local khi persist fail")
	}
}

// Auto-invoke: vào step storyboard lần đầu trigger agent đúng một lần
func TestAutoInvokeMotLanMoiLanVao(t *testing.T) {
	agent := &fakeAgent{output: map[string]interface{}{"scenes": []interface{}{map[string]interface{}{"id": "s1"}}}}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	invoked, err := c.EnterStep(context.Background(), p, 3)
	if err != nil {
		t.Fatalf("EnterStep lỗi: %v", err)
	}
	if !invoked || agent.calls != 1 {
		t.Fatalf("Lần vào đầu phải auto-invoke đúng 1 lần, calls = %d", agent.calls)
	}
	if len(p.Steps[3]["scenes"].([]interface{})) != 1 {
		t.Error("Artifact phải được persist vào step data")
	}

	// Remount/vào lại: artifact đã có, guard giữ Completed, không gọi lại
	invoked, err = c.EnterStep(context.Background(), p, 3)
	if err != nil {
		t.Fatalf("EnterStep lần 2 lỗi: %v", err)
	}
	if invoked || agent.calls != 1 {
		t.Errorf("Không được gọi lại agent khi artifact đã có, calls = %d", agent.calls)
	}
	if p.State.AutoState(StepStoryboard) != AutoCompleted {
		t.Errorf("Guard phải là completed, got %s", p.State.AutoState(StepStoryboard))
	}
}

// Guard chỉ được reset khi rời step mà KHÔNG có artifact
func TestAutoInvokeGuardResetKhiRoiStep(t *testing.T) {
	agent := &fakeAgent{err: common.ErrAgentInvocationFailed}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	if _, err := c.EnterStep(context.Background(), p, 3); err == nil {
		t.Fatal("Agent fail phải trả lỗi")
	}
	if p.State.AutoState(StepStoryboard) != AutoFailed {
		t.Errorf("Guard phải là failed, got %s", p.State.AutoState(StepStoryboard))
	}

	// Còn ở trong step: vào lại không được tự bắn tiếp
	if _, err := c.EnterStep(context.Background(), p, 3); err != nil {
		t.Fatalf("EnterStep khi guard failed không được gọi agent: %v", err)
	}
	if agent.calls != 1 {
		t.Errorf("Guard failed phải chặn auto-invoke, calls = %d", agent.calls)
	}

	// Rời step khi chưa có artifact: guard về not_started, lần vào sau được phép thử lại
	c.LeaveStep(p, 3)
	if p.State.AutoState(StepStoryboard) != AutoNotStarted {
		t.Errorf("Guard phải về not_started sau khi rời step, got %s", p.State.AutoState(StepStoryboard))
	}

	agent.err = nil
	agent.output = map[string]interface{}{"scenes": []interface{}{map[string]interface{}{"id": "s1"}}}
	if _, err := c.EnterStep(context.Background(), p, 3); err != nil {
		t.Fatalf("EnterStep sau reset guard lỗi: %v", err)
	}
	if agent.calls != 2 {
		t.Errorf("Sau reset guard phải được thử lại, calls = %d", agent.calls)
	}

	// Có artifact rồi thì LeaveStep không được đụng guard
	c.LeaveStep(p, 3)
	if p.State.AutoState(StepStoryboard) != AutoCompleted {
		t.Error("Guard phải giữ completed khi artifact đã tồn tại")
	}
}

// Optional step bị disable qua feature flag: advance nhảy qua
func TestSkipOptionalStepTheoFlag(t *testing.T) {
	agent := &fakeAgent{}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)
	p.Flags["voiceoverDisabled"] = true

	p.CurrentStep = 4
	p.Steps[4] = map[string]interface{}{
		"shots": []interface{}{
			map[string]interface{}{"id": "sh1", "imageUrl": "https://cdn.example.com/sh1.png"},
		},
	}

	res, err := c.Advance(context.Background(), p, 4)
	if err != nil {
		t.Fatalf("Advance step 4 lỗi: %v", err)
	}
	if res.NextStep != 6 {
		t.Errorf("Step audio bị disable phải bị skip, next = %d", res.NextStep)
	}

	if got := pl.NextEnabledStep(4, p.Flags); got != 6 {
		t.Errorf("NextEnabledStep(4) với voiceoverDisabled phải là 6, got %d", got)
	}
	if got := pl.NextEnabledStep(4, nil); got != 5 {
		t.Errorf("NextEnabledStep(4) không flag phải là 5, got %d", got)
	}
}

// Preflight ở step render với step trước đó dirty: dừng AwaitingConfirmation
// trước khi caller kịp chạm đến dịch vụ ngoài nào
func TestPreflightChanStepDirtyTruocSideEffect(t *testing.T) {
	agent := &fakeAgent{}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	p.CompletedSteps = []int{1, 2, 3, 4, 5}
	p.CurrentStep = 6
	p.Steps[1] = validSetupData()
	p.Steps[3] = map[string]interface{}{"scenes": []interface{}{map[string]interface{}{"id": "s1"}}}
	def, _ := pl.StepByNumber(1)
	p.State.Snapshots[def.ID] = validSetupData()
	// User sửa duration của step 1 đã completed rồi Continue ở step render
	p.Steps[1]["duration"] = float64(24)

	res, err := c.Preflight(p, 6)
	if err != nil {
		t.Fatalf("Preflight lỗi: %v", err)
	}
	if res.Phase != PhaseAwaitingConfirmation {
		t.Fatalf("Step 1 dirty phải chặn ở AwaitingConfirmation, got %s", res.Phase)
	}
	if res.DirtyStepID != StepSetup {
		t.Errorf("Step dirty phải là setup, got %s", res.DirtyStepID)
	}
	if agent.calls != 0 || store.patchCalls != 0 || len(store.advances) != 0 {
		t.Error("Preflight không được gọi agent hay ghi store")
	}
}

// Preflight ở step render khi chưa có scenes: validation error, không side effect
func TestPreflightValidationFailStepRender(t *testing.T) {
	agent := &fakeAgent{}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	p.CurrentStep = 6
	p.CompletedSteps = []int{1, 2, 3, 4, 5}
	// Không có scenes: render không thể dựng edit

	_, err := c.Preflight(p, 6)
	if err == nil {
		t.Fatal("Render không có scenes phải trả validation error")
	}
	var appErr *common.Error
	if !errors.As(err, &appErr) || appErr.Code != common.ErrCodeValidationStep {
		t.Errorf("Error code phải là %s, got %v", common.ErrCodeValidationStep, err)
	}
	if agent.calls != 0 || store.patchCalls != 0 || len(store.advances) != 0 {
		t.Error("Preflight fail không được để lại side effect nào")
	}
}

// Generation step chưa có artifact: Preflight hoãn validation cho Advance
// (artifact là input của validator, gọi sớm sẽ fail oan)
func TestPreflightHoanValidationChoGenerationStep(t *testing.T) {
	agent := &fakeAgent{}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	p.CompletedSteps = []int{1}
	p.CurrentStep = 2
	p.Steps[1] = validSetupData()
	def, _ := pl.StepByNumber(1)
	p.State.Snapshots[def.ID] = validSetupData()
	p.Steps[2]["creativeSpark"] = "một ý tưởng đủ dài để pass"
	// visualBeats chưa có: agent narrative sẽ sinh trong Advance

	res, err := c.Preflight(p, 2)
	if err != nil {
		t.Fatalf("Preflight step script phải hoãn validation, got %v", err)
	}
	if res.Phase != PhaseIdle {
		t.Errorf("Phase phải là Idle, got %s", res.Phase)
	}

	// Artifact đã tồn tại thì Preflight validate đầy đủ
	p.Steps[2]["visualBeats"] = []interface{}{"beat-1"}
	p.Steps[2]["creativeSpark"] = "ngắn"
	if _, err := c.Preflight(p, 2); err == nil {
		t.Error("Artifact đã có thì Preflight phải validate và fail với spark ngắn")
	}
}

// Qua step cuối: currentStep = totalSteps+1 và project chuyển completed
func TestHoanThanhStepCuoi(t *testing.T) {
	agent := &fakeAgent{}
	store := newFakeStore()
	pl, _ := ForMode(ModeCommerce)
	c := NewController(pl, store, agent)
	p := newTestProject(ModeCommerce)

	p.CurrentStep = 6
	p.CompletedSteps = []int{1, 2, 3, 4, 5}
	p.Steps[3] = map[string]interface{}{"scenes": []interface{}{map[string]interface{}{"id": "s1"}}}

	res, err := c.Advance(context.Background(), p, 6)
	if err != nil {
		t.Fatalf("Advance step cuối lỗi: %v", err)
	}
	if !res.ProjectDone {
		t.Error("Qua step cuối phải đánh dấu ProjectDone")
	}
	if p.CurrentStep != 7 {
		t.Errorf("currentStep phải là totalSteps+1, got %d", p.CurrentStep)
	}
	if p.Status != "completed" {
		t.Errorf("status phải là completed, got %s", p.Status)
	}
	if len(store.advances) != 1 || !store.advances[0].MarkCompleted {
		t.Error("Commit cuối phải mang MarkCompleted")
	}
}
