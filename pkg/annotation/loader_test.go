package annotation

import (
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

const sampleNDJSON = `{"data_time": 5000, "data_id": "a1", "annotations": [{"bbox": [0.5, 0.5, 0.1, 0.1], "category": "person", "subcategory": "adult", "object_id": 1}, {"bbox": [0.2, 0.3, 0.1, 0.2], "category": "furniture", "subcategory": "sofa", "object_id": 2}]}

this line is not json
{"data_time": 6000, "data_id": "a2", "annotations": [{"bbox": [0.5, 0.5, 0.0, 0.1], "category": "object", "subcategory": "cup", "object_id": 1}, {"bbox": [0.6, 0.6, 0.1, 0.1], "category": "person", "subcategory": "adult", "object_id": 7}]}
{"data_time": 4000, "data_id": "a3", "annotations": []}
`

func TestRead(t *testing.T) {
	log := logs.NewTestingLog(t)
	reg := NewRegistry()
	records, stats, err := Read(log, strings.NewReader(sampleNDJSON), reg)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, 3, stats.Records)
	require.Equal(t, 1, stats.SkippedLines)
	require.Equal(t, 1, stats.DroppedObjects)

	require.Equal(t, int64(5000), records[0].DataTime)
	require.Equal(t, "a1", records[0].DataID)
	require.Len(t, records[0].Objects, 2)
	require.Equal(t, BBox{0.5, 0.5, 0.1, 0.1}, records[0].Objects[0].BBox)
	require.Equal(t, "person/adult", records[0].Objects[0].Key())

	// The zero-width cup was dropped, and never registered
	require.Len(t, records[1].Objects, 1)
	require.Equal(t, 7, records[1].Objects[0].ObjectID)
	require.Equal(t, []string{"person/adult", "furniture/sofa"}, reg.Names())

	require.Equal(t, []int64{5000, 6000, 4000}, Times(records))
	require.Equal(t, map[string]int{"person/adult": 2, "furniture/sofa": 1}, CountInstances(records))

	start, end, ok := TimeRange(records, DefaultTimeBuffer)
	require.True(t, ok)
	require.Equal(t, int64(-1000), start)
	require.Equal(t, int64(11000), end)

	_, _, ok = TimeRange(nil, time.Second)
	require.False(t, ok)
}

func TestValidate(t *testing.T) {
	good := Object{BBox: BBox{0.5, 0.5, 0.2, 0.2}}
	require.NoError(t, good.Validate())
	require.Error(t, (&Object{BBox: BBox{1.2, 0.5, 0.2, 0.2}}).Validate())
	require.Error(t, (&Object{BBox: BBox{0.5, -0.1, 0.2, 0.2}}).Validate())
	require.Error(t, (&Object{BBox: BBox{0.5, 0.5, 0.2, 0}}).Validate())
}
