// Package gradle owns the Gradle side of the generated Android project:
// offline distribution detection, repository mirrors, gradle.properties,
// the wrapper pointer and the app version.
//
// Configuration is best-effort. Every failure is returned as an advisory
// and the build proceeds with whatever configuration exists.
package gradle
