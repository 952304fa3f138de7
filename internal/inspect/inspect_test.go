package inspect_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/edfreplay/internal/edf"
	"github.com/banshee-data/edfreplay/internal/fsutil"
	"github.com/banshee-data/edfreplay/internal/inspect"
)

// writeRamp stores a recording whose channel ch holds rec*spr+i+100*ch at
// sample i of record rec, calibrated onto itself.
func writeRamp(t *testing.T, mfs *fsutil.MemoryFileSystem, path string, records int, spr ...int) {
	t.Helper()
	signals := make([]edf.SignalSpec, len(spr))
	for i, n := range spr {
		signals[i] = edf.SignalSpec{
			Label:             fmt.Sprintf("CH%d", i),
			PhysicalDimension: "uV",
			PhysicalMin:       -2048,
			PhysicalMax:       2047,
			DigitalMin:        -2048,
			DigitalMax:        2047,
			SamplesPerRecord:  n,
		}
	}
	hdr := edf.NewHeader(edf.MainHeader{
		PatientID:      "X X X X",
		StartDate:      "01.03.22",
		StartTime:      "13.45.10",
		NumDataRecords: records,
		RecordDuration: 1,
	}, signals)

	var buf bytes.Buffer
	enc, err := edf.NewEncoder(&buf, hdr)
	require.NoError(t, err)
	for rec := 0; rec < records; rec++ {
		samples := make([][]int16, len(spr))
		for ch, n := range spr {
			samples[ch] = make([]int16, n)
			for i := range samples[ch] {
				samples[ch][i] = int16(rec*n + i + 100*ch)
			}
		}
		require.NoError(t, enc.WriteRecord(samples))
	}
	require.NoError(t, enc.Flush())
	require.NoError(t, mfs.WriteFile(path, buf.Bytes(), 0644))
}

func loadRamp(t *testing.T, records, limit int, spr ...int) *inspect.Recording {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	writeRamp(t, mfs, "/rec.edf", records, spr...)
	rec, err := inspect.Load(mfs, "/rec.edf", limit)
	require.NoError(t, err)
	return rec
}

func TestLoad(t *testing.T) {
	rec := loadRamp(t, 3, 0, 4, 4, 2)

	assert.Equal(t, 3, rec.Records)
	assert.InDelta(t, 250000.0, rec.PeriodUS, 1e-9)
	assert.Equal(t, []int{0, 1}, rec.Streamed())
	assert.Len(t, rec.Signals[0], 12)
	assert.Equal(t, 100.0, rec.Signals[1][0])
	assert.Equal(t, 111.0, rec.Signals[1][11])
	assert.Nil(t, rec.Signals[2], "rejected channel carries no samples")
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, rec.Times()[:4])
}

func TestLoad_RecordLimit(t *testing.T) {
	rec := loadRamp(t, 5, 2, 4)
	assert.Equal(t, 2, rec.Records)
	assert.Len(t, rec.Signals[0], 8)
}

func TestLoad_Errors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	_, err := inspect.Load(mfs, "/missing.edf", 1)
	assert.Error(t, err)

	require.NoError(t, mfs.WriteFile("/short.edf", []byte("0       "), 0644))
	_, err = inspect.Load(mfs, "/short.edf", 1)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	rec := loadRamp(t, 3, 0, 4, 4, 2)
	sums := inspect.Summarize(rec)
	require.Len(t, sums, 3)

	s := sums[0]
	assert.Equal(t, "CH0", s.Label)
	assert.Equal(t, 0, s.Slot)
	assert.Equal(t, 12, s.Count)
	assert.InDelta(t, 5.5, s.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(13), s.StdDev, 1e-9)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 11.0, s.Max)
	assert.InDelta(t, 1.0, s.CalMultiplier, 1e-12)

	assert.Equal(t, 1, sums[1].Slot)
	assert.InDelta(t, 105.5, sums[1].Mean, 1e-9)

	assert.False(t, sums[2].Accepted)
	assert.Equal(t, -1, sums[2].Slot)
	assert.Zero(t, sums[2].Count)
}

func TestWriteReport(t *testing.T) {
	rec := loadRamp(t, 3, 0, 4, 4, 2)
	var out strings.Builder
	require.NoError(t, inspect.WriteReport(&out, rec, inspect.Summarize(rec)))

	report := out.String()
	assert.Contains(t, report, "/rec.edf")
	assert.Contains(t, report, "3 (2 streamed)")
	assert.Contains(t, report, "4.00 Hz")
	assert.Contains(t, report, "CH0")
	assert.Contains(t, report, "skipped")
}

func TestRenderPNG(t *testing.T) {
	rec := loadRamp(t, 2, 0, 16, 16)
	var buf bytes.Buffer
	require.NoError(t, inspect.RenderPNG(&buf, rec))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")), "output is not a PNG image")
}

func TestRenderHTML(t *testing.T) {
	rec := loadRamp(t, 2, 0, 16, 16)
	var buf bytes.Buffer
	require.NoError(t, inspect.RenderHTML(&buf, rec))
	page := buf.String()
	assert.Contains(t, page, "CH0")
	assert.Contains(t, page, "CH1")
	assert.Contains(t, page, "echarts")
}

func TestRender_NoSamples(t *testing.T) {
	rec := loadRamp(t, 0, 0, 4)
	assert.Zero(t, rec.Records)
	assert.ErrorIs(t, inspect.RenderPNG(io.Discard, rec), inspect.ErrNoSamples)
	assert.ErrorIs(t, inspect.RenderHTML(io.Discard, rec), inspect.ErrNoSamples)
}

func TestAttachAdminRoutes(t *testing.T) {
	rec := loadRamp(t, 2, 0, 8, 8)
	mux := http.NewServeMux()
	rec.AttachAdminRoutes(mux)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:12345"
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	w := get("/debug/preview")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = get("/debug/summary")
	require.Equal(t, http.StatusOK, w.Code)
	var sums []inspect.ChannelSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sums))
	require.Len(t, sums, 2)
	assert.Equal(t, 16, sums[0].Count)
}
