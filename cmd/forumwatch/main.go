// Command forumwatch は論壇の新着記事をキーワードで監視し、一致した記事を保存・通知する。
package main

import (
	"errors"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/hitoshi/forumwatch/internal/app"
	"github.com/hitoshi/forumwatch/internal/model"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		var fatal *model.FatalInitError
		if errors.As(err, &fatal) {
			slog.Error("fatal initialization error",
				slog.String("component", fatal.Component),
				slog.String("error", err.Error()),
				slog.String("stack", string(debug.Stack())),
			)
		} else {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
