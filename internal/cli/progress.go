package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/mgpai22/revoice/internal/pipeline"
)

var stageLabels = map[pipeline.State]string{
	pipeline.StateExtracting:   "Extract audio",
	pipeline.StateTranscribing: "Transcribe",
	pipeline.StateSynthesizing: "Synthesize",
	pipeline.StateAligning:     "Align",
	pipeline.StateRemuxing:     "Remux",
}

func stageLabel(s pipeline.State) string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return s.String()
}

// prints a status line as each stage starts and finishes
func progressObserver(w io.Writer, colorize bool) pipeline.Observer {
	var stageStart time.Time
	return func(e pipeline.Event) {
		if _, working := stageLabels[e.From]; working {
			elapsed := e.At.Sub(stageStart).Round(10 * time.Millisecond)
			if e.To == pipeline.StateFailed {
				msg := "failed"
				if e.Err != nil {
					msg = string(e.Err.Kind)
					if e.Err.Timeout {
						msg += ", timed out"
					}
				}
				fmt.Fprintln(w, renderStatusLine(stageLabel(e.From), statusError, fmt.Sprintf("%s after %s", msg, elapsed), colorize))
				return
			}
			fmt.Fprintln(w, renderStatusLine(stageLabel(e.From), statusOK, elapsed.String(), colorize))
		}
		if _, working := stageLabels[e.To]; working {
			stageStart = e.At
			if colorize {
				fmt.Fprintln(w, renderStatusLine(stageLabel(e.To), statusInfo, "", colorize))
			}
		}
	}
}
