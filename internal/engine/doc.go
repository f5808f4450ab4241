// Package engine provisions the container engine and retrieves the ARM
// image.
//
// RuntimeInstaller treats an engine already on PATH as success, otherwise
// fetches the vendor bootstrap script and runs it with sh. Either way the
// service account is added to the engine's access group and the engine
// service is restarted. Image references are validated with
// distribution/reference and pulled through the Docker Engine API.
package engine
