package reconcile_test

import (
	"fmt"
	"time"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/reconcile"
)

func ExampleMerge() {
	t1 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	remote := []*model.Note{
		{RemoteID: "r1", Title: "Roadmap", UpdatedAt: t2},
	}
	local := []*model.Note{
		{RemoteID: "r1", Title: "Roadmap (stale)", UpdatedAt: t1},
		{Title: "Offline draft", UpdatedAt: t1},
	}

	for _, n := range reconcile.Merge(remote, local) {
		fmt.Println(n.Title)
	}
	// Output:
	// Roadmap
	// Offline draft
}
