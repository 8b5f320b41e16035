package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// SweepReport lists upload files no row references.
type SweepReport struct {
	Orphans []string `json:"orphans"`
	Bytes   int64    `json:"bytes"`
	Removed int      `json:"removed"`
}

// SweepOrphans finds files in the upload directory that no image or
// certificate row references and are older than minAge. Files younger than
// minAge may belong to an upload still in flight. With dryRun nothing is
// deleted.
func (s *Service) SweepOrphans(ctx context.Context, minAge time.Duration, dryRun bool) (SweepReport, error) {
	files, err := s.files.List()
	if err != nil {
		return SweepReport{}, err
	}
	refs, err := s.st.ReferencedRefs(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	cutoff := time.Now().Add(-minAge)
	var rep SweepReport
	for _, f := range files {
		if refs[f.Ref] || f.ModTime.After(cutoff) {
			continue
		}
		rep.Orphans = append(rep.Orphans, f.Ref)
		rep.Bytes += f.Size
	}
	if !dryRun {
		rep.Removed = s.files.RemoveAll(rep.Orphans)
	}
	s.log.WithFields(logrus.Fields{"orphans": len(rep.Orphans), "bytes": rep.Bytes, "removed": rep.Removed, "dry_run": dryRun}).Info("orphan sweep finished")
	return rep, nil
}
