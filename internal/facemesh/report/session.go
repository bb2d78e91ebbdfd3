package report

import (
	"errors"
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"

	"github.com/banshee-data/facemotion/internal/facemesh/pipeline"
	"github.com/banshee-data/facemotion/internal/fsutil"
	"github.com/banshee-data/facemotion/internal/security"
)

// WriteSession writes every report the result has data for into dir,
// named after session: <session>_rmsd.png, <session>_displacement.png and
// <session>_deviation.html. session is sanitised before use. It returns the
// paths written.
func WriteSession(fsys fsutil.FileSystem, dir, session string, res *pipeline.Result) ([]string, error) {
	var written []string
	stem := security.SanitizeFilename(session)

	plots := []struct {
		suffix string
		build  func() (*plot.Plot, error)
	}{
		{"_rmsd.png", func() (*plot.Plot, error) { return RMSDPlot(res.Frames) }},
		{"_displacement.png", func() (*plot.Plot, error) {
			if res.Features == nil {
				return nil, ErrNoData
			}
			return DisplacementPlot(res.Features)
		}},
	}
	for _, pl := range plots {
		p, err := pl.build()
		if errors.Is(err, ErrNoData) {
			continue
		}
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, stem+pl.suffix)
		if err := SavePNG(fsys, p, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if res.Colouring != nil && len(res.Colouring.Deviations) > 0 {
		path := filepath.Join(dir, stem+"_deviation.html")
		if err := writeDeviationFile(fsys, path, session, res); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeDeviationFile(fsys fsutil.FileSystem, path, session string, res *pipeline.Result) (err error) {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := DeviationPage(f, session, res.Colouring); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
