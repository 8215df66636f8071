// Package requirements parses flat Python dependency manifests.
//
// A manifest lists one package per line with an optional version constraint,
// extras, and environment marker (the requirements.txt convention). The
// pipeline parses the manifest before handing it to the installer so that a
// malformed file aborts the build with a line-numbered diagnostic instead of
// an opaque installer failure, and so that the declared packages can be
// logged as part of the build record.
package requirements
