package models

// Beat là một đoạn kể có thời lượng cố định trong visualBeats do agent narrative sinh
type Beat struct {
	Description string  `json:"description" bson:"description"`
	Duration    float64 `json:"duration,omitempty" bson:"duration,omitempty"` // Giây
}

// Scene là một cảnh trong storyboard, chứa các shot theo thứ tự
type Scene struct {
	ID          string  `json:"id" bson:"id"`
	Description string  `json:"description" bson:"description"`
	Duration    float64 `json:"duration,omitempty" bson:"duration,omitempty"`
	Shots       []Shot  `json:"shots,omitempty" bson:"shots,omitempty"`
}

// Shot là một cú máy trong scene. IsLinkedToPrevious nối shot này với shot
// liền trước thành continuity group (chuyển cảnh liền mạch khi render).
type Shot struct {
	ID                 string `json:"id" bson:"id"`
	ImageURL           string `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	IsLinkedToPrevious bool   `json:"isLinkedToPrevious,omitempty" bson:"isLinkedToPrevious,omitempty"`
}

// ContinuityGroups tính các continuity group từ danh sách shot theo thứ tự:
// một group là maximal run gồm >= 2 shot nối nhau qua isLinkedToPrevious.
// Trả về index của shot trong từng group.
func ContinuityGroups(shots []Shot) [][]int {
	groups := [][]int{}
	current := []int{}

	for i, shot := range shots {
		if i > 0 && shot.IsLinkedToPrevious {
			if len(current) == 0 {
				current = []int{i - 1}
			}
			current = append(current, i)
			continue
		}
		if len(current) >= 2 {
			groups = append(groups, current)
		}
		current = nil
	}
	if len(current) >= 2 {
		groups = append(groups, current)
	}
	return groups
}
