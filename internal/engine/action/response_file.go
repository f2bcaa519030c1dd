package action

import (
	"os"

	"go.trai.ch/zerr"
)

// writeResponseFile stores args in a temporary file. The returned function
// removes the file and is safe to defer on every path.
func writeResponseFile(args []string) (path string, remove func(), err error) {
	f, err := os.CreateTemp("", "anvil-*.rsp")
	if err != nil {
		return "", func() {}, zerr.Wrap(err, "failed to create response file")
	}
	path = f.Name()
	remove = func() {
		_ = os.Remove(path)
	}

	if _, err := f.WriteString(responseFileContent(args)); err != nil {
		_ = f.Close()
		remove()
		return "", func() {}, zerr.With(zerr.Wrap(err, "failed to write response file"), "path", path)
	}
	if err := f.Close(); err != nil {
		remove()
		return "", func() {}, zerr.With(zerr.Wrap(err, "failed to close response file"), "path", path)
	}
	return path, remove, nil
}
