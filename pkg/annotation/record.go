package annotation

import (
	"fmt"
	"time"
)

// Object is one annotated object instance inside a Record
type Object struct {
	BBox        BBox   `json:"bbox"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	ObjectID    int    `json:"object_id"`
}

// Key is the "category/subcategory" name that the Registry assigns ids to
func (o *Object) Key() string {
	return CategoryKey(o.Category, o.Subcategory)
}

// Validate checks that the box is normalized, and not empty
func (o *Object) Validate() error {
	for i, v := range o.BBox {
		if v < 0 || v > 1 {
			return fmt.Errorf("bbox[%v] = %v is outside [0,1]", i, v)
		}
	}
	if o.BBox.W() <= 0 || o.BBox.H() <= 0 {
		return fmt.Errorf("bbox %v has zero area", o.BBox)
	}
	return nil
}

// Record is one annotation event: all of the objects that were labelled at DataTime
type Record struct {
	DataTime int64    `json:"data_time"` // Unix milliseconds
	DataID   string   `json:"data_id"`
	Objects  []Object `json:"annotations"`
}

func (r *Record) Time() time.Time {
	return time.UnixMilli(r.DataTime).UTC()
}

// Times returns the DataTime of every record, in order
func Times(records []Record) []int64 {
	t := make([]int64, len(records))
	for i := range records {
		t[i] = records[i].DataTime
	}
	return t
}

// DefaultTimeBuffer is the padding that TimeRange adds to each side of the annotated span
const DefaultTimeBuffer = 5 * time.Second

// TimeRange returns the span of DataTime covered by records, widened by buffer on both sides.
// The result is in Unix milliseconds. ok is false if there are no records.
func TimeRange(records []Record, buffer time.Duration) (startMS, endMS int64, ok bool) {
	if len(records) == 0 {
		return 0, 0, false
	}
	startMS = records[0].DataTime
	endMS = records[0].DataTime
	for _, r := range records[1:] {
		startMS = min(startMS, r.DataTime)
		endMS = max(endMS, r.DataTime)
	}
	return startMS - buffer.Milliseconds(), endMS + buffer.Milliseconds(), true
}

// CountInstances returns the number of objects per category key
func CountInstances(records []Record) map[string]int {
	counts := map[string]int{}
	for _, r := range records {
		for i := range r.Objects {
			counts[r.Objects[i].Key()]++
		}
	}
	return counts
}
