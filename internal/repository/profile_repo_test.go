package repository

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scenergy_visualizer/internal/model"
)

func setupProfileTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(&model.SettingProfile{}, &model.Bubble{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}

	return db
}

func TestProfileRepo_Create_DerivesLevel(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewSettingProfileRepository(db)
	ctx := context.Background()

	cases := []struct {
		name    string
		profile model.SettingProfile
		want    string
	}{
		{"仅客户", model.SettingProfile{ClientID: 1}, model.LevelClient},
		{"品类", model.SettingProfile{ClientID: 1, CategoryID: 2}, model.LevelCategory},
		{"品类+场景", model.SettingProfile{ClientID: 1, CategoryID: 2, SceneID: 3}, model.LevelCategoryScene},
		{"系列", model.SettingProfile{ClientID: 1, CollectionID: 4}, model.LevelCollection},
		{"系列+品类", model.SettingProfile{ClientID: 1, CollectionID: 4, CategoryID: 2}, model.LevelCollectionCategory},
		{"系列+场景", model.SettingProfile{ClientID: 1, CollectionID: 4, SceneID: 3}, model.LevelCollectionScene},
		{"Flow", model.SettingProfile{ClientID: 1, FlowID: 9}, model.LevelFlow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.profile
			if err := repo.Create(ctx, &p); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if p.Level != tc.want {
				t.Errorf("Level = %s, want %s", p.Level, tc.want)
			}
		})
	}
}

func TestProfileRepo_Create_InvalidCombination(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewSettingProfileRepository(db)
	ctx := context.Background()

	// Flow 档案不能再绑其他维度
	err := repo.Create(ctx, &model.SettingProfile{ClientID: 1, FlowID: 9, CategoryID: 2})
	if err != model.ErrInvalidLevel {
		t.Errorf("err = %v, want ErrInvalidLevel", err)
	}

	// 场景不能单独出现
	err = repo.Create(ctx, &model.SettingProfile{ClientID: 1, SceneID: 3})
	if err != model.ErrInvalidLevel {
		t.Errorf("err = %v, want ErrInvalidLevel", err)
	}
}

func TestProfileRepo_FindApplicable(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewSettingProfileRepository(db)
	ctx := context.Background()

	// 布满全部七层
	seed := []model.SettingProfile{
		{ClientID: 1},
		{ClientID: 1, CategoryID: 2},
		{ClientID: 1, CategoryID: 2, SceneID: 3},
		{ClientID: 1, CollectionID: 4},
		{ClientID: 1, CollectionID: 4, CategoryID: 2},
		{ClientID: 1, CollectionID: 4, SceneID: 3},
		{ClientID: 1, FlowID: 9},
	}
	// 不应命中的干扰行：别的品类、别的客户
	noise := []model.SettingProfile{
		{ClientID: 1, CategoryID: 99},
		{ClientID: 2, CategoryID: 2},
		{ClientID: 2},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("写入第 %d 个档案失败: %v", i, err)
		}
	}
	for i := range noise {
		if err := repo.Create(ctx, &noise[i]); err != nil {
			t.Fatalf("写入干扰档案失败: %v", err)
		}
	}

	profiles, err := repo.FindApplicable(ctx, ApplicableQuery{
		ClientID:     1,
		CategoryID:   2,
		SceneID:      3,
		CollectionID: 4,
		FlowID:       9,
	})
	if err != nil {
		t.Fatalf("FindApplicable() error = %v", err)
	}

	if len(profiles) != 7 {
		t.Fatalf("命中档案数 = %d, want 7", len(profiles))
	}

	levels := make(map[string]bool)
	for _, p := range profiles {
		levels[p.Level] = true
	}
	for _, want := range []string{
		model.LevelClient, model.LevelCategory, model.LevelCategoryScene,
		model.LevelCollection, model.LevelCollectionCategory,
		model.LevelCollectionScene, model.LevelFlow,
	} {
		if !levels[want] {
			t.Errorf("缺少层级 %s", want)
		}
	}
}

func TestProfileRepo_FindApplicable_PartialDims(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewSettingProfileRepository(db)
	ctx := context.Background()

	seed := []model.SettingProfile{
		{ClientID: 1},
		{ClientID: 1, CategoryID: 2},
		{ClientID: 1, CategoryID: 2, SceneID: 3},
		{ClientID: 1, CollectionID: 4},
	}
	for i := range seed {
		repo.Create(ctx, &seed[i])
	}

	// 没有场景和系列维度，category_scene / collection 不应命中
	profiles, err := repo.FindApplicable(ctx, ApplicableQuery{
		ClientID:   1,
		CategoryID: 2,
	})
	if err != nil {
		t.Fatalf("FindApplicable() error = %v", err)
	}

	if len(profiles) != 2 {
		t.Fatalf("命中档案数 = %d, want 2", len(profiles))
	}
	for _, p := range profiles {
		if p.Level != model.LevelClient && p.Level != model.LevelCategory {
			t.Errorf("不应命中层级 %s", p.Level)
		}
	}
}

func TestProfileRepo_FindApplicable_PreloadsBubbles(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewSettingProfileRepository(db)
	bubbles := NewBubbleRepository(db)
	ctx := context.Background()

	profile := model.SettingProfile{ClientID: 1}
	repo.Create(ctx, &profile)
	bubbles.Create(ctx, &model.Bubble{
		ProfileID: profile.ID,
		Type:      model.BubbleTypeStyle,
		Prompt:    "minimalist product photography",
	})

	profiles, err := repo.FindApplicable(ctx, ApplicableQuery{ClientID: 1})
	if err != nil {
		t.Fatalf("FindApplicable() error = %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("命中档案数 = %d, want 1", len(profiles))
	}
	if len(profiles[0].Bubbles) != 1 {
		t.Fatalf("气泡应随档案带出, got %d", len(profiles[0].Bubbles))
	}
	if profiles[0].Bubbles[0].Prompt != "minimalist product photography" {
		t.Errorf("气泡内容不匹配: %s", profiles[0].Bubbles[0].Prompt)
	}
}

func TestProfileRepo_Delete_RemovesBubbles(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewSettingProfileRepository(db)
	bubbles := NewBubbleRepository(db)
	ctx := context.Background()

	profile := model.SettingProfile{ClientID: 1}
	repo.Create(ctx, &profile)
	bubbles.Create(ctx, &model.Bubble{ProfileID: profile.ID, Type: model.BubbleTypeStyle, Prompt: "warm light"})

	if err := repo.Delete(ctx, profile.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := repo.GetByID(ctx, profile.ID); err != gorm.ErrRecordNotFound {
		t.Errorf("档案应已删除, err = %v", err)
	}
	remaining, _ := bubbles.GetByProfileID(ctx, profile.ID)
	if len(remaining) != 0 {
		t.Errorf("气泡应随档案删除, 剩余 %d", len(remaining))
	}
}
