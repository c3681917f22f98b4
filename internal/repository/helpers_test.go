package repository

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/hitoshi/forumwatch/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func testRecord(forum, id string, foundAt time.Time) model.MatchRecord {
	post := model.Post{
		ID:             id,
		Forum:          forum,
		Title:          "訂製鑽石戒指分享",
		Excerpt:        "想請問<推薦>的工作室",
		Author:         "台大 資工",
		URL:            "https://www.dcard.tw/f/" + forum + "/p/" + id,
		LikeCount:      12,
		CommentCount:   3,
		SourceStrategy: "direct",
	}
	return model.NewMatchRecord(post, "珠寶版", []string{"戒指", "鑽石"}, foundAt)
}
