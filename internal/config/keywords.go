package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/hitoshi/forumwatch/internal/matcher"
)

// KeywordFile はKEYWORDS_FILEから読み込むキーワードと論壇の定義。
type KeywordFile struct {
	Keywords []string `mapstructure:"keywords"`
	Forums   []Forum  `mapstructure:"forums"`
}

// LoadKeywordFile はキーワード定義ファイルを読み込む。
// 形式は拡張子から判定する（yaml/json/toml）。
// 論壇は順序を保持するためリスト形式（key, name）で記述する。
func LoadKeywordFile(path string) (*KeywordFile, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("キーワードファイルの読み込みに失敗しました: %w", err)
	}

	kf := &KeywordFile{}
	if err := v.UnmarshalKey("keywords", &kf.Keywords); err != nil {
		return nil, fmt.Errorf("keywordsの解析に失敗しました: %w", err)
	}
	if err := v.UnmarshalKey("forums", &kf.Forums); err != nil {
		return nil, fmt.Errorf("forumsの解析に失敗しました: %w", err)
	}

	kf.Keywords = matcher.Normalize(kf.Keywords)
	for i, f := range kf.Forums {
		if f.Name == "" {
			kf.Forums[i].Name = f.Key
		}
	}
	return kf, nil
}

// DefaultForums は既定の監視対象論壇を返す。
func DefaultForums() []Forum {
	return []Forum{
		{Key: "jewelry", Name: "珠寶版"},
		{Key: "marriage", Name: "結婚版"},
		{Key: "girl", Name: "女孩版"},
	}
}

// DefaultKeywords は既定の監視キーワード（金工・珠寶関連）を返す。
func DefaultKeywords() []string {
	return []string{
		// 金工・珠寶
		"金工", "銀工", "手作金工", "金工教學", "金工課程", "金工工作室",
		"珠寶", "珠寶設計", "珠寶製作", "首飾", "首飾設計", "手作首飾",

		// 技法
		"鑲嵌", "寶石鑲嵌", "維修", "珠寶維修", "首飾維修", "改圍",
		"拋光", "電鍍", "焊接", "雕蠟", "鑄造",

		// 素材
		"K金", "18K", "14K", "白金", "黃金", "玫瑰金", "純銀", "925銀",
		"鑽石", "寶石", "翡翠", "珍珠", "紅寶石", "藍寶石", "祖母綠",

		// 製品
		"戒指", "項鍊", "手鍊", "耳環", "婚戒", "對戒", "求婚戒指", "情侶戒",

		// サービス
		"訂做", "客製", "訂製", "推薦", "分享", "評價", "開箱",
	}
}
