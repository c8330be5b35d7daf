package basemodels

// PaginateResult chứa kết quả phân trang cho một model bất kỳ
type PaginateResult[T any] struct {
	Items      []T   `json:"items"`      // Danh sách items của trang hiện tại
	Page       int64 `json:"page"`       // Trang hiện tại (1-based)
	Limit      int64 `json:"limit"`      // Số items mỗi trang
	ItemCount  int64 `json:"itemCount"`  // Số items của trang hiện tại
	TotalCount int64 `json:"totalCount"` // Tổng số items thỏa filter
	TotalPages int64 `json:"totalPages"` // Tổng số trang
}
