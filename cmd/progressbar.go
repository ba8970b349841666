package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/JakeFAU/docbridge/internal/progress"
)

// barRenderer draws progress updates on a terminal bar. The bar is created
// lazily because the total is only known from the first update.
type barRenderer struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
	total       int
}

func newBarRenderer(w io.Writer, description string) *barRenderer {
	return &barRenderer{w: w, description: description}
}

// Deliver satisfies progress.DeliverFunc.
func (r *barRenderer) Deliver(_ context.Context, u progress.Update) error {
	if u.Total <= 0 {
		return nil
	}
	if r.bar == nil {
		r.bar = progressbar.NewOptions(
			u.Total,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetDescription(r.description),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(r.w)
			}),
		)
	} else if r.total != u.Total {
		r.bar.ChangeMax(u.Total)
	}
	r.total = u.Total
	if err := r.bar.Set(u.Current); err != nil {
		return fmt.Errorf("render progress: %w", err)
	}
	return nil
}

// Finish completes the bar when one was drawn.
func (r *barRenderer) Finish(succeeded bool) {
	if r.bar == nil {
		return
	}
	if succeeded {
		_ = r.bar.Finish()
		return
	}
	fmt.Fprintln(r.w)
}
