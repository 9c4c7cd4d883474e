package framecache

import (
	"fmt"
	"io"
	"os"

	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/fxamacker/cbor/v2"
)

const snapshotVersion = 1

// On-disk representation. Keys are short, because there may be tens of thousands of frames.
type snapshotFrame struct {
	TimeMS int64     `cbor:"t"`
	Width  int       `cbor:"w"`
	Height int       `cbor:"h"`
	Unit   int       `cbor:"u"`
	Pixels []float32 `cbor:"p"`
}

type snapshot struct {
	Version int             `cbor:"v"`
	Frames  []snapshotFrame `cbor:"f"`
}

// Save writes every cached frame to w, as CBOR
func (f *FrameCache) Save(w io.Writer) error {
	snap := snapshot{
		Version: snapshotVersion,
		Frames:  make([]snapshotFrame, 0, len(f.frames)),
	}
	for _, t := range f.Times() {
		fr := f.frames[t]
		snap.Frames = append(snap.Frames, snapshotFrame{
			TimeMS: t,
			Width:  fr.Width,
			Height: fr.Height,
			Unit:   int(fr.Unit),
			Pixels: fr.Pixels,
		})
	}
	return cbor.NewEncoder(w).Encode(&snap)
}

// Load adds the frames of a snapshot written by Save
func (f *FrameCache) Load(r io.Reader) error {
	snap := snapshot{}
	if err := cbor.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("Failed to decode frame cache snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("Unsupported frame cache snapshot version %v", snap.Version)
	}
	for _, sf := range snap.Frames {
		if len(sf.Pixels) != sf.Width*sf.Height {
			return fmt.Errorf("Frame at %v has %v pixels, but is %vx%v", sf.TimeMS, len(sf.Pixels), sf.Width, sf.Height)
		}
		f.AddFrame(sf.TimeMS, &thermal.Frame{
			Width:        sf.Width,
			Height:       sf.Height,
			Unit:         thermal.Unit(sf.Unit),
			Pixels:       sf.Pixels,
			Timestamp:    float64(sf.TimeMS) / 1000,
			HasTimestamp: true,
		})
	}
	return nil
}

func (f *FrameCache) SaveFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := f.Save(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (f *FrameCache) LoadFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return f.Load(file)
}
