package service

import (
	"context"
	"path/filepath"
	"testing"

	"tcees-validator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestValidateMany_Empty(t *testing.T) {
	svc := newTestService(&mockDriver{}, &mockConfig{}, nil)

	res := svc.ValidateMany(context.Background(), nil, domain.ValidateOptions{})

	require.NotNil(t, res)
	assert.Empty(t, res)
}

func TestValidateMany_TruncatesAndKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writePDF(t, dir, "a.pdf"),
		writePDF(t, dir, "b.pdf"),
		writePDF(t, dir, "c.pdf"),
		writePDF(t, dir, "d.pdf"),
	}
	driver := &mockDriver{}
	svc := newTestService(driver, &mockConfig{maxParallel: 2}, nil)

	res := svc.ValidateMany(context.Background(), paths, domain.ValidateOptions{})

	require.Len(t, res, domain.MaxBatchSize)
	for i, r := range res {
		require.NotNil(t, r)
		assert.Equal(t, filepath.Base(paths[i]), r.FileName)
		assert.Equal(t, domain.VerdictValid, r.Verdict)
	}
	assert.Equal(t, domain.MaxBatchSize, driver.opened)
}

func TestValidateMany_MixedResults(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writePDF(t, dir, "ok.pdf"), filepath.Join(dir, "missing.pdf")}
	svc := newTestService(&mockDriver{}, &mockConfig{}, nil)

	res := svc.ValidateMany(context.Background(), paths, domain.ValidateOptions{QuickMode: true})

	require.Len(t, res, 2)
	assert.Equal(t, domain.VerdictValid, res[0].Verdict)
	assert.Equal(t, domain.CodeFileNotFound, res[1].ErrorCode)
}
