package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, ParseDuration("2s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("-1s", time.Minute))
	assert.Equal(t, time.Duration(0), ParseDuration("0s", time.Minute))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"email", "address"}, SplitList(" email, ,address,"))
	assert.Empty(t, SplitList(""))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "1a2b3c4d", ShortID("1a2b3c4d-5e6f"))
	assert.Equal(t, "abc", ShortID("abc"))
}

func TestOutputManager(t *testing.T) {
	base := t.TempDir()
	om := NewOutputManager(base)

	path, err := om.GetOutputFilePath("job-1", "../../etc/out.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "job-1", "out.csv"), path)

	now := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	path, err = om.DefaultExportPath("1a2b3c4d-5e6f", ".XLSX", now)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "enriched_1a2b3c4d_2024-01-02_15-04-05.xlsx"), path)

	assert.Equal(t, "/api/v1/jobs/job-1/export?format=csv", om.GetDownloadURL("job-1", "csv"))

	require.NoError(t, om.RemoveJobOutput("job-1"))
	_, err = os.Stat(filepath.Join(base, "job-1"))
	assert.True(t, os.IsNotExist(err))
}
