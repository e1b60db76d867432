package inspection

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/safety-inspection-service/pkg/common"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
	_ "liyu1981.xyz/safety-inspection-service/pkg/testing"
)

func TestDiskAttachmentStore(t *testing.T) {
	common.SetTestLoggerNop()

	dir := t.TempDir()
	store, err := NewDiskAttachmentStore(dir)
	require.NoError(t, err)

	meta, err := store.Save(models.AttachmentKindPhoto, "gauge.jpg", "image/jpeg", strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentKindPhoto, meta.Kind)
	assert.Equal(t, "gauge.jpg", meta.OriginalName)
	assert.Equal(t, int64(len("pixels")), meta.Size)
	// generated name keeps the extension but not the original name
	assert.True(t, strings.HasSuffix(meta.Filename, ".jpg"))
	assert.NotEqual(t, "gauge.jpg", meta.Filename)

	_, err = os.Stat(filepath.Join(dir, meta.Filename))
	require.NoError(t, err)

	r, err := store.Open(meta.Filename)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(content))

	require.NoError(t, store.Remove(meta.Filename))
	_, err = os.Stat(filepath.Join(dir, meta.Filename))
	assert.True(t, os.IsNotExist(err))

	// removing something already gone is not an error
	assert.NoError(t, store.Remove(meta.Filename))
}

func TestDiskAttachmentStore_TraversalGuard(t *testing.T) {
	common.SetTestLoggerNop()

	store, err := NewDiskAttachmentStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("../../etc/passwd")
	assert.Error(t, err)

	_, err = store.Open("sub/dir.jpg")
	assert.Error(t, err)
}
