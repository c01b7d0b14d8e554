package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/ljmd/internal/dynamo"
)

type ExportData struct {
	Run    RunMetadata   `json:"run"`
	Frames []ExportFrame `json:"frames"`
}

type ExportFrame struct {
	Step int     `json:"step"`
	Temp float64 `json:"temp"`
	Ekin float64 `json:"ekin"`
	Epot float64 `json:"epot"`
	Etot float64 `json:"etot"`
}

func ExportJSON(w io.Writer, meta RunMetadata, frames []dynamo.State) error {
	data := ExportData{Run: meta, Frames: make([]ExportFrame, len(frames))}
	for i, f := range frames {
		data.Frames[i] = ExportFrame{Step: f.Step, Temp: f.Temp, Ekin: f.Ekin, Epot: f.Epot, Etot: f.Etot()}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
