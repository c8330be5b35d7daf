// Package pipeline chứa state machine của wizard tạo video:
// deep-merge step data, validator per-step, dirty tracking, cascade reset
// và transition controller. Toàn bộ package này thuần logic, không I/O;
// persistence đi qua interface StepStore do tầng service cung cấp.
package pipeline

// DeepMerge áp partial patch lên dữ liệu hiện có của một step và trả về kết quả.
// Ngữ nghĩa từng key trong patch:
//   - value == nil: tombstone, key bị XÓA khỏi dữ liệu (khác với key vắng mặt = no-op)
//   - value là map lồng (không phải array): merge đệ quy
//   - còn lại: ghi đè
//
// dst không bị mutate; kết quả là map mới.
func DeepMerge(dst map[string]interface{}, patch map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(dst)+len(patch))
	for k, v := range dst {
		result[k] = v
	}

	for k, v := range patch {
		if v == nil {
			// Tombstone: xóa key
			delete(result, k)
			continue
		}

		patchMap, patchIsMap := v.(map[string]interface{})
		if !patchIsMap {
			result[k] = v
			continue
		}

		existingMap, existingIsMap := result[k].(map[string]interface{})
		if !existingIsMap {
			// Kiểu hiện tại không phải map (hoặc key chưa có): ghi đè,
			// nhưng vẫn phải xử lý tombstone bên trong patch map
			result[k] = DeepMerge(map[string]interface{}{}, patchMap)
			continue
		}

		result[k] = DeepMerge(existingMap, patchMap)
	}

	return result
}
