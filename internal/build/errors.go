package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrStage               = errors.New("payload staging failed")
	ErrDependency          = errors.New("dependency installation failed")
	ErrExport              = errors.New("image export failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
)
