// Package descriptor defines the declarative build descriptor.
//
// A descriptor is a small YAML document describing how to assemble a service
// image: the pinned base image providing the language runtime and process
// manager, the host directory whose contents become the application payload,
// the in-image working directory, and the dependency manifest installed into
// the image's interpreter environment.
//
// Example descriptor:
//
//	base: tiangolo/uvicorn-gunicorn-fastapi:python3.9
//	app: ./app
//	workdir: /app
//	requirements: requirements.txt
//	port: 80
//
// Parsing is strict: unknown fields fail the load, and validation enforces
// the build contract (pinned base tag, absolute workdir containing the
// payload destination, workdir-relative manifest path) before any container
// operation starts.
package descriptor
