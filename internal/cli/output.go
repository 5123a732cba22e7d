package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ieee0824/melody-go"
	"github.com/ieee0824/melody-go/midifile"
)

type resultWriter struct {
	ext   string
	write func(w io.Writer, res *melody.Result, opt midifile.Options) error
}

var writers = map[string]resultWriter{
	"midi": {".mid", writeMIDI},
	"json": {".json", writeJSON},
	"text": {".txt", writeText},
}

func writeMIDI(w io.Writer, res *melody.Result, opt midifile.Options) error {
	return midifile.Write(w, res.Notes, res.Tempo, opt)
}

func writeJSON(w io.Writer, res *melody.Result, _ midifile.Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// writeText prints one note per line: onset, offset, name, MIDI number.
func writeText(w io.Writer, res *melody.Result, _ midifile.Options) error {
	for _, n := range res.Notes {
		if _, err := fmt.Fprintf(w, "%.3f\t%.3f\t%s\t%d\n", n.Onset, n.Offset, n.Name(), n.Pitch); err != nil {
			return err
		}
	}
	return nil
}
