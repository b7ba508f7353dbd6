package snapshot

import (
	"encoding/gob"
	"os"
)

// Load reads the current snapshot for symbol. A missing file is not an
// error: recovery then replays the log from sequence zero.
func Load(dir, symbol string) (*Snapshot, error) {
	f, err := os.Open(path(dir, symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{Symbol: symbol}, nil
		}
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
