package pipeline

import (
	"context"

	"storia/internal/common"
)

// Phase là pha của state machine cho một lần advance
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseValidating           Phase = "validating"
	PhaseInvoking             Phase = "invoking"
	PhasePersisting           Phase = "persisting"
)

// StepStore là persistence contract mà controller cần.
// Tầng service (Mongo) implement; test dùng fake in-memory.
// Mọi Commit* phải atomic trên một document và chỉ trả nil khi đã ghi xong:
// controller chỉ mutate local state sau khi commit thành công (persist-first).
type StepStore interface {
	// PatchStepData deep-merge patch vào step data (tombstone semantics),
	// CAS theo revision, trả về data sau merge.
	PatchStepData(ctx context.Context, projectID string, step int, patch map[string]interface{}) (map[string]interface{}, error)

	// CommitAdvance ghi kết quả một lần advance trong MỘT write:
	// step data (nếu có), completedSteps, currentStep, pipeline state, status.
	CommitAdvance(ctx context.Context, projectID string, commit AdvanceCommit) error

	// CommitReset ghi cascade reset trong MỘT write: tombstone các step bị
	// clear, completedSteps đã truncate, currentStep, pipeline state đã dọn.
	CommitReset(ctx context.Context, projectID string, commit ResetCommit) error
}

// AgentInvoker là contract gọi external AI agent (retry/validation nằm bên trong adapter)
type AgentInvoker interface {
	Invoke(ctx context.Context, agentID string, input map[string]interface{}) (map[string]interface{}, error)
}

// AdvanceCommit là payload persist của pha Persisting
type AdvanceCommit struct {
	Step           int
	StepData       map[string]interface{} // Data sau merge của step vừa hoàn thành (nil = không đổi)
	CompletedSteps []int
	CurrentStep    int
	State          *State
	MarkCompleted  bool // Qua step cuối: status chuyển sang completed
}

// ResetCommit là payload persist của cascade reset
type ResetCommit struct {
	ClearSteps     []int // Các step number bị xóa data (from..totalSteps)
	CompletedSteps []int
	CurrentStep    int
	State          *State
}

// AdvanceResult là kết quả trả về cho handler sau một lần advance
type AdvanceResult struct {
	Phase           Phase  // PhaseIdle khi đã advance xong, PhaseAwaitingConfirmation khi cần user confirm
	DirtyStepID     string // Step bị dirty cần confirm reset (khi AwaitingConfirmation)
	DirtyStepNumber int
	NextStep        int  // currentStep mới sau advance
	AgentInvoked    bool // Lần advance này có gọi agent không (false khi artifact đã tồn tại)
	ProjectDone     bool // Đã qua step cuối, project chuyển completed
}

// Controller điều phối advance/reset cho một pipeline mode.
// Không giữ mutable state riêng: toàn bộ state nằm trong Project truyền vào.
type Controller struct {
	pipeline *Pipeline
	store    StepStore
	agents   AgentInvoker
}

// NewController tạo controller cho pipeline của mode
func NewController(p *Pipeline, store StepStore, agents AgentInvoker) *Controller {
	return &Controller{pipeline: p, store: store, agents: agents}
}

// Pipeline trả về definition mà controller đang chạy
func (c *Controller) Pipeline() *Pipeline {
	return c.pipeline
}

// dirtyCompletedStep tìm step completed đầu tiên (theo thứ tự pipeline,
// tính đến upTo) có tracked field đã thay đổi so với snapshot
func (c *Controller) dirtyCompletedStep(p *Project, upTo int) (StepDefinition, bool) {
	tracker := trackerOf(p.State)
	for _, def := range c.pipeline.Steps {
		if def.Number > upTo {
			break
		}
		if !p.IsCompleted(def.Number) {
			continue
		}
		if tracker.IsDirty(def.ID, def.DirtyFields, p.StepData(def.Number)) {
			return def, true
		}
	}
	return StepDefinition{}, false
}

// trackerOf bọc snapshots trong state thành DirtyTracker (share cùng map,
// mutation qua tracker phản ánh thẳng vào state để persist)
func trackerOf(s *State) *DirtyTracker {
	s.ensure()
	return &DirtyTracker{snapshots: s.Snapshots}
}

// Advance chạy state machine cho một lần "Continue" trên step hiện tại.
//
// Thứ tự pha:
//  1. Dirty check trên mọi completed step tính đến step hiện tại.
//     Có step dirty => trả AwaitingConfirmation, DỪNG (caller hiện confirm
//     prompt; user đồng ý thì gọi ResetFrom rồi làm lại từ step đó).
//  2. Validating: predicate thuần của step; fail => ValidationError, không mutate gì.
//  3. Invoking: chỉ khi step có agent VÀ artifact chưa tồn tại. Artifact đã
//     có từ lần chạy trước => bỏ qua thẳng đến Persisting, không gọi lại
//     agent trả phí (re-entry idempotent).
//  4. Persisting: MỘT write gồm step data + completedSteps + currentStep +
//     pipeline state; thành công mới mutate Project local.
func (c *Controller) Advance(ctx context.Context, p *Project, stepNumber int) (AdvanceResult, error) {
	def, ok := c.pipeline.StepByNumber(stepNumber)
	if !ok {
		return AdvanceResult{}, common.ErrNotFound
	}

	// Pha 1: dirty check
	if dirty, found := c.dirtyCompletedStep(p, stepNumber); found {
		return AdvanceResult{
			Phase:           PhaseAwaitingConfirmation,
			DirtyStepID:     dirty.ID,
			DirtyStepNumber: dirty.Number,
			NextStep:        p.CurrentStep,
		}, nil
	}

	acc := p.Accumulated()
	stepData := p.StepData(def.Number)

	// Pha 3 trước pha 2 đối với generation step: artifact là input của
	// validator (script validate cả visualBeats), nên khi artifact chưa có
	// thì gọi agent trước rồi mới validate trên dữ liệu đầy đủ.
	agentInvoked := false
	if def.AgentID != "" && !artifactExists(acc, def.Artifact) {
		output, err := c.invokeAgent(ctx, p, def)
		if err != nil {
			// Agent cạn retry: không advance, completedSteps giữ nguyên
			return AdvanceResult{Phase: PhaseIdle, NextStep: p.CurrentStep}, err
		}
		agentInvoked = true
		stepData = DeepMerge(stepData, output)
		acc = accWith(acc, def.Number, stepData)
	}

	// Pha 2: Validating
	if err := def.Validate(acc); err != nil {
		return AdvanceResult{Phase: PhaseIdle, NextStep: p.CurrentStep}, err
	}

	// Pha 4: Persisting. Mutate trên bản sao của state, commit fail thì
	// project local còn nguyên (persist-first).
	nextState := p.State.Clone()
	trackerOf(nextState).CaptureSnapshot(def.ID, def.DirtyFields, stepData)
	if def.AgentID != "" {
		nextState.SetAutoState(def.ID, AutoCompleted)
	}

	completed := withCompleted(p.CompletedSteps, def.Number)
	next := c.pipeline.NextEnabledStep(def.Number, p.Flags)
	done := next > c.pipeline.TotalSteps()

	commit := AdvanceCommit{
		Step:           def.Number,
		CompletedSteps: completed,
		CurrentStep:    next,
		State:          nextState,
		MarkCompleted:  done,
	}
	if agentInvoked {
		commit.StepData = stepData
	}
	if err := c.store.CommitAdvance(ctx, p.ID, commit); err != nil {
		return AdvanceResult{Phase: PhasePersisting, NextStep: p.CurrentStep}, err
	}

	// Persist xong mới mutate local
	p.State = nextState
	p.Steps[def.Number] = stepData
	p.CompletedSteps = completed
	p.CurrentStep = next
	if done {
		p.Status = "completed"
	}

	return AdvanceResult{
		Phase:        PhaseIdle,
		NextStep:     next,
		AgentInvoked: agentInvoked,
		ProjectDone:  done,
	}, nil
}

// Preflight chạy các gate KHÔNG side effect của một lần advance: dirty check
// rồi validation, không đụng store hay agent. Caller có side effect ngoài gắn
// với step (submit render trả phí) phải gọi Preflight trước: advance chắc
// chắn bị chặn thì không được chạm đến dịch vụ ngoài. Generation step chưa có
// artifact thì validation được hoãn cho Advance, vì artifact là input của
// validator.
func (c *Controller) Preflight(p *Project, stepNumber int) (AdvanceResult, error) {
	def, ok := c.pipeline.StepByNumber(stepNumber)
	if !ok {
		return AdvanceResult{}, common.ErrNotFound
	}

	if dirty, found := c.dirtyCompletedStep(p, stepNumber); found {
		return AdvanceResult{
			Phase:           PhaseAwaitingConfirmation,
			DirtyStepID:     dirty.ID,
			DirtyStepNumber: dirty.Number,
			NextStep:        p.CurrentStep,
		}, nil
	}

	acc := p.Accumulated()
	if def.AgentID == "" || artifactExists(acc, def.Artifact) {
		if err := def.Validate(acc); err != nil {
			return AdvanceResult{Phase: PhaseIdle, NextStep: p.CurrentStep}, err
		}
	}
	return AdvanceResult{Phase: PhaseIdle, NextStep: p.CurrentStep}, nil
}

// invokeAgent chạy pha Invoking với guard state chuyển InFlight -> Completed/Failed
func (c *Controller) invokeAgent(ctx context.Context, p *Project, def StepDefinition) (map[string]interface{}, error) {
	p.State.SetAutoState(def.ID, AutoInFlight)
	output, err := c.agents.Invoke(ctx, def.AgentID, c.agentInput(p, def))
	if err != nil {
		p.State.SetAutoState(def.ID, AutoFailed)
		return nil, err
	}
	p.State.SetAutoState(def.ID, AutoCompleted)
	return output, nil
}

// agentInput dựng input JSON cho agent: mode, step đang chạy và toàn bộ
// dữ liệu tích lũy đến step đó, key theo step id
func (c *Controller) agentInput(p *Project, def StepDefinition) map[string]interface{} {
	steps := make(map[string]interface{}, len(p.Steps))
	for _, sd := range c.pipeline.Steps {
		if sd.Number > def.Number {
			break
		}
		if data, ok := p.Steps[sd.Number]; ok && data != nil {
			steps[sd.ID] = data
		}
	}
	return map[string]interface{}{
		"mode":  p.Mode,
		"step":  def.ID,
		"steps": steps,
	}
}

// artifactExists kiểm tra artifact của step đã tồn tại ở bất kỳ vị trí ứng viên nào chưa
func artifactExists(acc Accumulated, candidates []Location) bool {
	if len(candidates) == 0 {
		return false
	}
	v, ok := acc.Read(candidates)
	if !ok {
		return false
	}
	if s, isSlice := v.([]interface{}); isSlice {
		return len(s) > 0
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

// accWith trả về Accumulated mới với data của một step được thay
func accWith(acc Accumulated, step int, data map[string]interface{}) Accumulated {
	steps := make(map[int]map[string]interface{}, len(acc.Steps)+1)
	for n, d := range acc.Steps {
		steps[n] = d
	}
	steps[step] = data
	return Accumulated{Mode: acc.Mode, Steps: steps}
}

// EnterStep xử lý deferred auto-generation khi user vào một step.
// Chỉ trigger khi: step khai báo AutoInvoke, artifact chưa tồn tại, và guard
// đang NotStarted. Artifact đã có => guard giữ Completed vĩnh viễn, không bao
// giờ gọi lại agent kể cả khi client remount.
func (c *Controller) EnterStep(ctx context.Context, p *Project, stepNumber int) (bool, error) {
	def, ok := c.pipeline.StepByNumber(stepNumber)
	if !ok {
		return false, common.ErrNotFound
	}
	if !def.AutoInvoke || def.AgentID == "" {
		return false, nil
	}

	acc := p.Accumulated()
	if artifactExists(acc, def.Artifact) {
		p.State.SetAutoState(def.ID, AutoCompleted)
		return false, nil
	}
	if p.State.AutoState(def.ID) != AutoNotStarted {
		return false, nil
	}

	output, err := c.invokeAgent(ctx, p, def)
	if err != nil {
		return false, err
	}

	merged, err := c.store.PatchStepData(ctx, p.ID, def.Number, output)
	if err != nil {
		return false, err
	}
	p.Steps[def.Number] = merged
	return true, nil
}

// LeaveStep reset auto-invocation guard khi user rời step mà KHÔNG có artifact
// (lần vào sau được phép auto-trigger lại). Artifact đã tồn tại => guard giữ nguyên.
func (c *Controller) LeaveStep(p *Project, stepNumber int) {
	def, ok := c.pipeline.StepByNumber(stepNumber)
	if !ok || !def.AutoInvoke {
		return
	}
	if !artifactExists(p.Accumulated(), def.Artifact) {
		p.State.SetAutoState(def.ID, AutoNotStarted)
	}
}

// ResetFrom là Cascade Reset Engine: xóa data của step from..totalSteps,
// truncate completedSteps, dọn snapshots + auto-invocation guards của vùng
// bị xóa, kéo currentStep về from. Persist-first: ghi MỘT atomic update
// trước, thành công mới mutate Project local (all-or-nothing, tránh
// client/server divergence). Confirm prompt là việc của caller.
func (c *Controller) ResetFrom(ctx context.Context, p *Project, from int) error {
	if from < 1 || from > c.pipeline.TotalSteps() {
		return common.ErrInvalidOperation
	}

	clearSteps := make([]int, 0, c.pipeline.TotalSteps()-from+1)
	for n := from; n <= c.pipeline.TotalSteps(); n++ {
		clearSteps = append(clearSteps, n)
	}

	nextState := p.State.Clone()
	tracker := trackerOf(nextState)
	for _, n := range clearSteps {
		def, _ := c.pipeline.StepByNumber(n)
		tracker.Clear(def.ID)
		delete(nextState.AutoInvocation, def.ID)
	}

	completed := completedBelow(p.CompletedSteps, from)
	commit := ResetCommit{
		ClearSteps:     clearSteps,
		CompletedSteps: completed,
		CurrentStep:    from,
		State:          nextState,
	}
	if err := c.store.CommitReset(ctx, p.ID, commit); err != nil {
		return err
	}

	// Persist xong: reset local về defaults đã khai báo của từng step
	p.State = nextState
	for _, n := range clearSteps {
		def, _ := c.pipeline.StepByNumber(n)
		fresh := make(map[string]interface{}, len(def.Defaults))
		for k, v := range def.Defaults {
			fresh[k] = v
		}
		p.Steps[n] = fresh
	}
	p.CompletedSteps = completed
	p.CurrentStep = from
	p.Status = "draft"
	return nil
}
