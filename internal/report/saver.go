package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/nao1215/sentinel/internal/model"
)

// filenameTimeLayout is the timestamp layout used in report file names.
const filenameTimeLayout = "20060102_150405"

// FileSaver saves JSON reports as <dir>/<chain>_<0xabcd>_<timestamp>.json.
type FileSaver struct {
	dir string
}

// NewFileSaver creates a FileSaver writing under dir.
func NewFileSaver(dir string) *FileSaver {
	return &FileSaver{dir: dir}
}

// Path returns where report would be saved. The timestamp is the scan time
// in local time.
func (s *FileSaver) Path(report *model.ContractReport) string {
	name := fmt.Sprintf("%s_%s_%s.json",
		report.Chain,
		report.Address.Short(),
		report.DateScanned.Local().Format(filenameTimeLayout),
	)
	return filepath.Join(s.dir, name)
}

// Save writes the report as indented JSON and returns the file path.
// The file is replaced atomically, so readers never see a partial report.
func (s *FileSaver) Save(report *model.ContractReport) (path string, err error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path = s.Path(report)
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if cleanupErr := pending.Cleanup(); cleanupErr != nil && err == nil {
			err = fmt.Errorf("failed to clean up report file: %w", cleanupErr)
		}
	}()

	if _, err := NewJSONWriter(pending, WithPrettyPrint()).Write(report); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}
