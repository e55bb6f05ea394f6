package main

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progress draws one bar while collecting and another while predicting.
type progress struct {
	w       io.Writer
	target  int
	collect *progressbar.ProgressBar
	predict *progressbar.ProgressBar
}

func newProgress(w io.Writer, target int) *progress {
	return &progress{w: w, target: target}
}

func (p *progress) bar(max int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progress) OnObserve(n, total int) {
	if p.collect == nil {
		p.collect = p.bar(total, "collecting")
	}
	p.collect.Set(n)
	if n == total {
		p.collect.Finish()
	}
}

func (p *progress) OnGuess(round, _ int) {
	if p.predict == nil {
		p.predict = p.bar(p.target, "predicting")
	}
	p.predict.Set(round)
}

func (p *progress) Finish() {
	if p.predict != nil {
		p.predict.Finish()
	}
}
