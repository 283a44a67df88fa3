package casal

import (
	"context"
	"fmt"

	"github.com/gosuri/uiprogress"
)

// RunVerbose is Run with a console progress bar over model years
func (m *Model) RunVerbose(ctx context.Context) (*Result, error) {
	uiprogress.Start()
	year := make(chan string, 1)
	bar := uiprogress.AddBar(m.LastYear - m.StartYear + 1).AppendCompleted().PrependElapsed()
	last := fmt.Sprint(m.StartYear)
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		select {
		case y := <-year:
			last = y
		default:
		}
		return last
	})

	r, err := m.run(ctx, func(y int) {
		select {
		case year <- fmt.Sprint(y):
		default:
		}
		bar.Incr()
	})
	uiprogress.Stop()
	return r, err
}
