package database

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storia/internal/logger"
)

// CreateIndexes tạo index cho collection dựa trên struct tag `index` của model.
// Các dạng tag hỗ trợ:
//   - `index:"single:1"` / `index:"single:-1"` - index đơn theo chiều tăng/giảm
//   - `index:"unique"` - index unique
//   - `index:"unique,sparse"` - unique + sparse (bỏ qua document không có field)
//   - `index:"text"` - text index
//
// Index đã tồn tại với cùng tên sẽ được giữ nguyên.
func CreateIndexes(ctx context.Context, collection *mongo.Collection, model interface{}) error {
	modelType := reflect.TypeOf(model)
	if modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}

	// Lấy danh sách index hiện có để không tạo trùng
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		return fmt.Errorf("không thể lấy danh sách index: %w", err)
	}
	defer cursor.Close(ctx)

	existing := map[string]bool{}
	for cursor.Next(ctx) {
		var info bson.M
		if err := cursor.Decode(&info); err != nil {
			return fmt.Errorf("không thể giải mã thông tin index: %w", err)
		}
		if name, ok := info["name"].(string); ok {
			existing[name] = true
		}
	}

	var models []mongo.IndexModel

	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		tag, ok := field.Tag.Lookup("index")
		if !ok {
			continue
		}

		bsonField := strings.Split(field.Tag.Get("bson"), ",")[0]
		if bsonField == "" || bsonField == "-" {
			continue
		}

		switch {
		case strings.HasPrefix(tag, "single:"):
			order := 1
			if strings.HasSuffix(tag, "-1") {
				order = -1
			}
			name := bsonField + "_single"
			if !existing[name] {
				models = append(models, mongo.IndexModel{
					Keys:    bson.D{{Key: bsonField, Value: order}},
					Options: options.Index().SetName(name),
				})
			}

		case strings.HasPrefix(tag, "unique"):
			name := bsonField + "_unique"
			if !existing[name] {
				opts := options.Index().SetName(name).SetUnique(true)
				if strings.Contains(tag, "sparse") {
					opts = opts.SetSparse(true)
				}
				models = append(models, mongo.IndexModel{
					Keys:    bson.D{{Key: bsonField, Value: 1}},
					Options: opts,
				})
			}

		case tag == "text":
			name := bsonField + "_text"
			if !existing[name] {
				models = append(models, mongo.IndexModel{
					Keys:    bson.D{{Key: bsonField, Value: "text"}},
					Options: options.Index().SetName(name),
				})
			}
		}
	}

	if len(models) == 0 {
		return nil
	}

	if _, err := collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("không thể tạo index cho collection %s: %w", collection.Name(), err)
	}

	logger.GetAppLogger().WithField("collection", collection.Name()).
		Infof("Created %d indexes", len(models))
	return nil
}
