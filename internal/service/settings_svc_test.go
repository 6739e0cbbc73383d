package service

import (
	"testing"

	"scenergy_visualizer/internal/model"
)

func profileAt(id int64, level string, bubbles ...model.Bubble) model.SettingProfile {
	p := model.SettingProfile{
		ClientID: 1,
		Level:    level,
		Bubbles:  bubbles,
	}
	p.ID = id
	return p
}

func bubble(bt model.BubbleType, prompt string) model.Bubble {
	return model.Bubble{Type: bt, Prompt: prompt}
}

func TestMergeProfiles_HigherLevelWinsPerType(t *testing.T) {
	profiles := []model.SettingProfile{
		profileAt(1, model.LevelClient,
			bubble(model.BubbleTypeStyle, "minimalist"),
			bubble(model.BubbleTypeLighting, "soft daylight"),
		),
		profileAt(2, model.LevelCategoryScene,
			bubble(model.BubbleTypeStyle, "scandinavian"),
		),
	}

	merged := MergeProfiles(profiles)

	styles := merged.Bubbles[model.BubbleTypeStyle]
	if len(styles) != 1 || styles[0].Prompt != "scandinavian" {
		t.Errorf("style 应被高层级整组覆盖, got %+v", styles)
	}
	// 高层级未出现的类型沿用低层级
	lighting := merged.Bubbles[model.BubbleTypeLighting]
	if len(lighting) != 1 || lighting[0].Prompt != "soft daylight" {
		t.Errorf("lighting 应沿用 client 层, got %+v", lighting)
	}
}

func TestMergeProfiles_TypeReplacedAsWholeGroup(t *testing.T) {
	profiles := []model.SettingProfile{
		profileAt(1, model.LevelClient,
			bubble(model.BubbleTypeStyle, "a"),
			bubble(model.BubbleTypeStyle, "b"),
		),
		profileAt(2, model.LevelFlow,
			bubble(model.BubbleTypeStyle, "c"),
		),
	}

	merged := MergeProfiles(profiles)

	styles := merged.Bubbles[model.BubbleTypeStyle]
	if len(styles) != 1 || styles[0].Prompt != "c" {
		t.Errorf("高层级应整组替换而非追加, got %+v", styles)
	}
}

func TestMergeProfiles_NegativeAccumulates(t *testing.T) {
	profiles := []model.SettingProfile{
		profileAt(1, model.LevelClient,
			bubble(model.BubbleTypeNegative, "blurry"),
			bubble(model.BubbleTypeNegative, "watermark"),
		),
		profileAt(2, model.LevelCollection,
			bubble(model.BubbleTypeNegative, "blurry"), // 重复
			bubble(model.BubbleTypeNegative, "text overlay"),
		),
	}

	merged := MergeProfiles(profiles)

	want := []string{"blurry", "watermark", "text overlay"}
	if len(merged.Negative) != len(want) {
		t.Fatalf("negative 数量 = %d, 期望 %d: %v", len(merged.Negative), len(want), merged.Negative)
	}
	for i, w := range want {
		if merged.Negative[i] != w {
			t.Errorf("negative[%d] = %q, 期望 %q", i, merged.Negative[i], w)
		}
	}
}

func TestMergeProfiles_ScalarFieldwise(t *testing.T) {
	low := profileAt(1, model.LevelClient)
	low.Model = "gemini-2.5-flash-image"
	low.AspectRatio = "1:1"
	low.ImageCount = 4

	high := profileAt(2, model.LevelFlow)
	high.AspectRatio = "16:9" // 只覆盖宽高比

	merged := MergeProfiles([]model.SettingProfile{low, high})

	if merged.AspectRatio != "16:9" {
		t.Errorf("AspectRatio = %q, 期望高层级覆盖值 16:9", merged.AspectRatio)
	}
	if merged.Model != "gemini-2.5-flash-image" {
		t.Errorf("Model = %q, 未覆盖字段应沿用低层级", merged.Model)
	}
	if merged.ImageCount != 4 {
		t.Errorf("ImageCount = %d, 未覆盖字段应沿用低层级", merged.ImageCount)
	}
}

func TestMergeProfiles_SevenLevelOrder(t *testing.T) {
	levels := []string{
		model.LevelClient,
		model.LevelCategory,
		model.LevelCategoryScene,
		model.LevelCollection,
		model.LevelCollectionCategory,
		model.LevelCollectionScene,
		model.LevelFlow,
	}

	// 乱序输入，每层设置一个不同的 style
	profiles := []model.SettingProfile{
		profileAt(3, levels[4], bubble(model.BubbleTypeStyle, levels[4])),
		profileAt(1, levels[0], bubble(model.BubbleTypeStyle, levels[0])),
		profileAt(7, levels[6], bubble(model.BubbleTypeStyle, levels[6])),
		profileAt(5, levels[2], bubble(model.BubbleTypeStyle, levels[2])),
		profileAt(2, levels[1], bubble(model.BubbleTypeStyle, levels[1])),
		profileAt(6, levels[5], bubble(model.BubbleTypeStyle, levels[5])),
		profileAt(4, levels[3], bubble(model.BubbleTypeStyle, levels[3])),
	}

	merged := MergeProfiles(profiles)

	styles := merged.Bubbles[model.BubbleTypeStyle]
	if len(styles) != 1 || styles[0].Prompt != model.LevelFlow {
		t.Errorf("七级齐备时 flow 层应胜出, got %+v", styles)
	}
	for i, level := range merged.Levels {
		if level != levels[i] {
			t.Errorf("Levels[%d] = %q, 期望 %q", i, level, levels[i])
		}
	}
}

func TestMergeProfiles_SameLevelLaterWins(t *testing.T) {
	profiles := []model.SettingProfile{
		profileAt(5, model.LevelClient, bubble(model.BubbleTypeStyle, "old")),
		profileAt(9, model.LevelClient, bubble(model.BubbleTypeStyle, "new")),
	}

	merged := MergeProfiles(profiles)

	styles := merged.Bubbles[model.BubbleTypeStyle]
	if len(styles) != 1 || styles[0].Prompt != "new" {
		t.Errorf("同层级应取后创建的档案, got %+v", styles)
	}
}

func TestMergedSettings_BuildPrompt(t *testing.T) {
	merged := MergeProfiles([]model.SettingProfile{
		profileAt(1, model.LevelClient,
			bubble(model.BubbleTypeBackground, "marble countertop"),
			bubble(model.BubbleTypeStyle, "product photography"),
			bubble(model.BubbleTypeNegative, "blurry"),
		),
	})

	got := merged.BuildPrompt("ceramic vase")
	// style 在固定顺序中先于 background
	want := "ceramic vase, product photography, marble countertop"
	if got != want {
		t.Errorf("BuildPrompt = %q, 期望 %q", got, want)
	}
	if merged.NegativePrompt() != "blurry" {
		t.Errorf("NegativePrompt = %q", merged.NegativePrompt())
	}
}

func TestMergedSettings_SnapshotRoundTrip(t *testing.T) {
	merged := MergeProfiles([]model.SettingProfile{
		profileAt(1, model.LevelClient, bubble(model.BubbleTypeStyle, "studio")),
	})
	merged.AspectRatio = "4:3"

	raw, err := merged.Snapshot()
	if err != nil {
		t.Fatalf("生成快照失败: %v", err)
	}

	restored, err := SettingsFromSnapshot(raw)
	if err != nil {
		t.Fatalf("还原快照失败: %v", err)
	}
	if restored.AspectRatio != "4:3" {
		t.Errorf("还原后 AspectRatio = %q", restored.AspectRatio)
	}
	if len(restored.Bubbles[model.BubbleTypeStyle]) != 1 {
		t.Error("还原后气泡丢失")
	}
}
