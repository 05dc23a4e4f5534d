package main

import (
	"fmt"
	"io"
	"strings"

	"inkwell/internal/api"
	"inkwell/internal/thread"
	"inkwell/internal/utils"
)

func formatCounters(c api.Counters) string {
	return fmt.Sprintf("comments=%d top-level=%d likes=%d", c.TotalComments, c.TotalParentComments, c.TotalLikes)
}

// render 按层级缩进打印评论，未加载的回复和分页给出提示
func render(w io.Writer, v *thread.View) error {
	if _, err := fmt.Fprintf(w, "%s\n", formatCounters(v.Counters())); err != nil {
		return err
	}

	for i := 0; i < v.Len(); i++ {
		e := v.At(i)
		indent := strings.Repeat("  ", e.Level)
		body := strings.Join(strings.Fields(utils.CleanText(e.Comment.Body)), " ")

		line := fmt.Sprintf("%s- [%s] %s: %s", indent, e.Comment.ID, e.Comment.AuthorID, body)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}

		if rest := e.Comment.ChildCount - v.LoadedChildren(e.Comment.ID); rest > 0 {
			if _, err := fmt.Fprintf(w, "%s  … %d more replies\n", indent, rest); err != nil {
				return err
			}
		}
	}

	if v.HasMoreTopLevel() {
		_, err := fmt.Fprintf(w, "… more comments (next skip %d)\n", v.TopLevelSkip())
		return err
	}
	return nil
}
