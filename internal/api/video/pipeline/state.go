package pipeline

// AutoInvocationState là trạng thái của auto-generation guard cho một step.
// Thay cho one-shot boolean flag: enum được persist cùng project nên
// inspect và test được, và sống sót qua reload.
type AutoInvocationState string

const (
	AutoNotStarted AutoInvocationState = "not_started"
	AutoInFlight   AutoInvocationState = "in_flight"
	AutoCompleted  AutoInvocationState = "completed"
	AutoFailed     AutoInvocationState = "failed"
)

// State là phần controller state được persist trong project document:
// dirty snapshots per step và auto-invocation guard per step.
type State struct {
	Snapshots      map[string]map[string]interface{} `json:"snapshots" bson:"snapshots"`
	AutoInvocation map[string]AutoInvocationState    `json:"autoInvocation" bson:"autoInvocation"`
}

// NewState tạo state rỗng cho project mới
func NewState() *State {
	return &State{
		Snapshots:      make(map[string]map[string]interface{}),
		AutoInvocation: make(map[string]AutoInvocationState),
	}
}

// ensure vá các map nil sau khi decode từ BSON (document cũ có thể thiếu field)
func (s *State) ensure() {
	if s.Snapshots == nil {
		s.Snapshots = make(map[string]map[string]interface{})
	}
	if s.AutoInvocation == nil {
		s.AutoInvocation = make(map[string]AutoInvocationState)
	}
}

// Clone tạo bản sao độc lập của state. Controller mutate bản sao, persist,
// rồi mới gán lại vào project: commit fail thì state gốc còn nguyên.
func (s *State) Clone() *State {
	s.ensure()
	out := NewState()
	for stepID, snap := range s.Snapshots {
		copied := make(map[string]interface{}, len(snap))
		for k, v := range snap {
			copied[k] = v
		}
		out.Snapshots[stepID] = copied
	}
	for stepID, st := range s.AutoInvocation {
		out.AutoInvocation[stepID] = st
	}
	return out
}

// AutoState trả về guard state của step, mặc định NotStarted
func (s *State) AutoState(stepID string) AutoInvocationState {
	s.ensure()
	if st, ok := s.AutoInvocation[stepID]; ok {
		return st
	}
	return AutoNotStarted
}

// SetAutoState cập nhật guard state của step
func (s *State) SetAutoState(stepID string, st AutoInvocationState) {
	s.ensure()
	s.AutoInvocation[stepID] = st
}

// Project là working copy của một video project mà controller thao tác lên.
// Tầng service load từ Mongo, controller mutate local SAU KHI persist thành công.
type Project struct {
	ID             string
	Mode           string
	CurrentStep    int
	CompletedSteps []int
	Steps          map[int]map[string]interface{} // stepNumber -> step data
	State          *State
	Flags          map[string]bool // feature flags của workspace sở hữu
	Status         string
}

// IsCompleted kiểm tra step đã thuộc completedSteps chưa
func (p *Project) IsCompleted(step int) bool {
	for _, s := range p.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// Accumulated dựng view dữ liệu tích lũy cho validator
func (p *Project) Accumulated() Accumulated {
	return Accumulated{Mode: p.Mode, Steps: p.Steps}
}

// StepData trả về data của step, không bao giờ nil
func (p *Project) StepData(step int) map[string]interface{} {
	if d, ok := p.Steps[step]; ok && d != nil {
		return d
	}
	return map[string]interface{}{}
}

// withCompleted trả về completedSteps mới có thêm step (giữ set semantics)
func withCompleted(completed []int, step int) []int {
	for _, s := range completed {
		if s == step {
			return completed
		}
	}
	out := make([]int, len(completed), len(completed)+1)
	copy(out, completed)
	return append(out, step)
}

// completedBelow trả về các completed step nhỏ hơn from (dùng khi cascade reset)
func completedBelow(completed []int, from int) []int {
	out := make([]int, 0, len(completed))
	for _, s := range completed {
		if s < from {
			out = append(out, s)
		}
	}
	return out
}
