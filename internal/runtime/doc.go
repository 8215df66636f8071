// Package runtime manages build containers backed by containerd.
//
// A [Runtime] connects to a containerd daemon and turns local image archives
// into running build containers. Archives are imported into the content
// store, tagged with a deterministic content hash, unpacked for the target
// platform, and used to create containers with overlayfs snapshots and a
// long-running task that subsequent execs attach to.
//
// Each [Container] wraps one build container. The pipeline executes commands
// inside it, streams files in as tar archives, and finally commits the
// snapshot diff as a new layer, exporting the result as an OCI archive with
// the image config rewritten to carry the build's working directory,
// environment, and exposed port. Containers must be destroyed when the build
// finishes to release their snapshots and tasks.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "wharfd")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	ctr, err := rt.StartContainer(ctx, "base.tar", "build-1", "linux/amd64")
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
//
//	result, err := ctr.Exec(ctx, "/bin/sh", "pip install -r requirements.txt", nil, "/app")
//	if err != nil {
//	    return err
//	}
//
//	err = ctr.Export(ctx, "dist", runtime.ExportConfig{Workdir: "/app"})
package runtime
