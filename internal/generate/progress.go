package generate

import (
	"github.com/schollz/progressbar/v3"
)

// ProgressBarFeedback renders the generator's loading progress on the
// terminal.
type ProgressBarFeedback struct {
	bar *progressbar.ProgressBar
}

func (f *ProgressBarFeedback) Init(nbTotalAssets int) {
	f.bar = progressbar.NewOptions(nbTotalAssets,
		progressbar.OptionSetDescription("loading organization"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (f *ProgressBarFeedback) LoadingAsset(entity string, nb int) {
	if f.bar != nil {
		_ = f.bar.Add(nb)
	}
}
