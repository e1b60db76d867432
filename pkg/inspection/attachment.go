package inspection

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"liyu1981.xyz/safety-inspection-service/pkg/common"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

// AttachmentStore persists uploaded blobs keyed by generated filename
// and hands back the metadata the inspection record keeps.
type AttachmentStore interface {
	Save(kind models.AttachmentKind, originalName, contentType string, r io.Reader) (*models.Attachment, error)
	Open(filename string) (io.ReadCloser, error)
	Remove(filenames ...string) error
}

type DiskAttachmentStore struct {
	Dir string
}

func NewDiskAttachmentStore(dir string) (*DiskAttachmentStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create upload directory %q: %w", dir, err)
	}
	return &DiskAttachmentStore{Dir: dir}, nil
}

func (s *DiskAttachmentStore) Save(kind models.AttachmentKind, originalName, contentType string, r io.Reader) (*models.Attachment, error) {
	filename := uuid.NewString() + path.Ext(originalName)

	f, err := os.Create(filepath.Join(s.Dir, filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filepath.Join(s.Dir, filename))
		return nil, err
	}

	return &models.Attachment{
		Kind:         kind,
		Filename:     filename,
		ContentType:  contentType,
		Size:         size,
		OriginalName: originalName,
	}, nil
}

func (s *DiskAttachmentStore) Open(filename string) (io.ReadCloser, error) {
	// stored filenames are generated, so anything with a separator is
	// a traversal attempt
	if strings.ContainsAny(filename, `/\`) || filename != filepath.Base(filename) {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(s.Dir, filename))
}

func (s *DiskAttachmentStore) Remove(filenames ...string) error {
	logger := common.GetLoggerWith(
		common.LoggerNameInspectionCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryAttachment),
	)

	var firstErr error
	for _, name := range filenames {
		if name != filepath.Base(name) {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove stored attachment", zap.String("filename", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
