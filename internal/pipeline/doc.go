// Package pipeline orchestrates one web-bundle to APK conversion: icon
// rasterization, content staging, project scaffolding, Gradle configuration,
// the build strategy chain, publication and cleanup.
//
// A run either returns the published artifact (possibly with advisories)
// or a single terminal *errors.ClassifiedError. Cleanup always runs.
package pipeline
