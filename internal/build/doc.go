// Package build orchestrates the image build pipeline.
//
// A build turns a descriptor into a runnable OCI image through a fixed
// sequence of phases: the pinned base image is resolved and a build
// container started from it, the application payload is staged into the
// image filesystem, the working directory is established, and the dependency
// manifest is installed into the image's interpreter environment. The final
// container filesystem is committed and exported as an OCI archive whose
// config carries the working directory, environment, and exposed port.
//
// Phases run strictly in declaration order and the first failure aborts the
// whole build: no later phase is attempted, no image is produced, and the
// build container is destroyed. There is no retry and no partial output.
//
// Container operations are delegated to the runtime package through narrow
// interfaces, and the image configuration is threaded through the phases as
// an explicit value rather than ambient state.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, build.Options{
//	    Descriptor: desc,
//	    Name:       "my-service",
//	    Output:     "dist",
//	    Context:    ".",
//	    Platforms:  []string{"linux/amd64"},
//	})
//	if err != nil {
//	    return err
//	}
package build
