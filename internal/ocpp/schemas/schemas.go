// Package schemas ships the OCPP payload schema documents embedded in the
// binary and loads them into a validator. Files are laid out as
// <version>/<Action>.<direction>.json.
package schemas

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/voltbench/ocpp-sim/internal/ocpp"
)

//go:embed v16 v201
var files embed.FS

var versionDirs = map[string]ocpp.Version{
	"v16":  ocpp.V16,
	"v201": ocpp.V201,
}

// Register compiles every embedded schema into v.
func Register(v *ocpp.SchemaValidator) error {
	return fs.WalkDir(files, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		dir, name, _ := strings.Cut(path, "/")
		ver, ok := versionDirs[dir]
		if !ok {
			return fmt.Errorf("schemas: unexpected directory in %s", path)
		}
		parts := strings.Split(strings.TrimSuffix(name, ".json"), ".")
		if len(parts) != 2 {
			return fmt.Errorf("schemas: unexpected file name %s", path)
		}
		data, err := files.ReadFile(path)
		if err != nil {
			return err
		}
		if err := v.Register(ver, parts[0], ocpp.Direction(parts[1]), data); err != nil {
			return err
		}
		return nil
	})
}
