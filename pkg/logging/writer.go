package logging

import "os"

// newSyncWriter returns the sink logs are written to: always stdout,
// matching the teacher's container-friendly logging convention (let the
// platform collect stdout, no file rotation in-process).
func newSyncWriter() *os.File {
	return os.Stdout
}
