package speech

import (
	"context"
	"fmt"

	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/jobs"
)

// HandleJob is the jobs.JobHandler that speaks a queued answer into the
// cache and records its digest on the job.
func (c *Cache) HandleJob(ctx context.Context, job jobs.Job) error {
	j, ok := job.(*jobs.SynthesizeSpeechJob)
	if !ok {
		return fmt.Errorf("HandleJob: unsupported job type %s", job.GetType())
	}

	lang := advisory.Language(j.Language)
	if !lang.Valid() {
		lang = advisory.DefaultLanguage
	}

	digest, err := c.Ensure(ctx, j.Text, lang)
	if err != nil {
		return fmt.Errorf("HandleJob %s: %w", j.JobID, err)
	}
	j.Digest = digest
	return nil
}
