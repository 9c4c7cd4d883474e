package annotation

import (
	flatbush "github.com/bmharper/flatbush-go"
)

// Boxes are indexed on a fixed integer grid, which is fine enough for IoU comparisons
const overlapGrid = 10000

// Overlap is a pair of boxes in one record that probably label the same thing twice
type Overlap struct {
	DataID  string
	ObjectA int
	ObjectB int
	Key     string
	IOU     float64
}

// FindOverlaps returns pairs of same-category objects within a record whose IoU is at least minIoU.
// These are usually duplicate labels.
func FindOverlaps(records []Record, minIoU float64) []Overlap {
	overlaps := []Overlap{}
	nearby := []int{}
	for _, rec := range records {
		if len(rec.Objects) < 2 {
			continue
		}
		rects := make([]Rect, len(rec.Objects))
		fb := flatbush.NewFlatbush[int32]()
		fb.Reserve(len(rec.Objects))
		for i := range rec.Objects {
			r := rec.Objects[i].BBox.ToPixels(overlapGrid, overlapGrid)
			rects[i] = r
			fb.Add(int32(r.X), int32(r.Y), int32(r.X2()), int32(r.Y2()))
		}
		fb.Finish()

		for i := range rec.Objects {
			a := &rec.Objects[i]
			nearby = fb.SearchFast(int32(rects[i].X), int32(rects[i].Y), int32(rects[i].X2()), int32(rects[i].Y2()), nearby)
			for _, j := range nearby {
				// Each pair is visited from both sides, so only keep i < j
				if j <= i {
					continue
				}
				b := &rec.Objects[j]
				if a.Key() != b.Key() {
					continue
				}
				iou := rects[i].IOU(rects[j])
				if iou >= minIoU {
					overlaps = append(overlaps, Overlap{
						DataID:  rec.DataID,
						ObjectA: a.ObjectID,
						ObjectB: b.ObjectID,
						Key:     a.Key(),
						IOU:     iou,
					})
				}
			}
		}
	}
	return overlaps
}
