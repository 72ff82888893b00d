package storage

import (
	"os"
)

// SizeBytes returns the on-disk size of the archive, including the WAL and
// shared-memory files SQLite keeps beside it.
func (s *SQLiteStorage) SizeBytes() (int64, error) {
	return fileSizes(s.path, s.path+"-wal", s.path+"-shm")
}

// fileSizes sums the sizes of regular files. Missing paths contribute 0.
func fileSizes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
	}
	return total, nil
}
