package watcher

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/Darkness4/go-remux/notify"
	"github.com/Darkness4/go-remux/utils"
)

// Job is the remux of one input into one output.
type Job struct {
	Input     string
	Output    string
	Extension string
	AudioOnly bool
	Labels    map[string]string
	Detected  time.Time
}

func (j *Job) notification() notify.Job {
	return notify.Job{
		Input:  j.Input,
		Output: j.Output,
		Format: j.Extension,
		Labels: j.Labels,
	}
}

func outputPath(input string, d *Directory, ext string) string {
	dir := filepath.Dir(input)
	if d.Output != "" {
		rel, err := filepath.Rel(d.Path, dir)
		if err != nil {
			rel = "."
		}
		dir = filepath.Join(d.Output, rel)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, utils.SanitizeFilename(stem)+"."+ext)
}

// jobsFor returns the jobs of input.
func jobsFor(input string, d *Directory) []*Job {
	now := time.Now()
	jobs := []*Job{{
		Input:     input,
		Output:    outputPath(input, d, d.Format),
		Extension: d.Format,
		AudioOnly: d.AudioOnly,
		Labels:    d.Labels,
		Detected:  now,
	}}
	if d.ExtractAudio {
		jobs = append(jobs, &Job{
			Input:     input,
			Output:    outputPath(input, d, "m4a"),
			Extension: "m4a",
			AudioOnly: true,
			Labels:    d.Labels,
			Detected:  now,
		})
	}
	return jobs
}

// key identifies a job in the ledger and the state.
func (j *Job) key() string {
	return j.Output
}
