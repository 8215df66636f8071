// Package registry pulls base images from container registries.
//
// A [Client] resolves an image reference to its manifest digest, pulls the
// platform-specific image when it is not already cached, and materializes it
// as a local archive that the runtime package can import into containerd.
// Archives are cached by digest, so repeated builds against the same pinned
// base skip the pull.
package registry
